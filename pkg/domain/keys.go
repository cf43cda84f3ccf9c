package domain

import "fmt"

// Object store layout. Keys are deterministic so readers and writers agree
// without coordination.
const (
	TranscriptContentType = "text/plain; charset=utf-8"
	ArtifactContentType   = "application/json; charset=utf-8"
)

// TranscriptKey is the object key for a recording's transcript text.
func TranscriptKey(recordingID string) string {
	return fmt.Sprintf("transcripts/%s.txt", recordingID)
}

// ArtifactKey is the object key for one generated artifact JSON.
func ArtifactKey(recordingID string, t ArtifactType, jobID string) string {
	return fmt.Sprintf("ai/%s/%s/%s.json", recordingID, t, jobID)
}
