package store

import "lectureflow/pkg/domain"

// Store defines persistence operations for recordings and AI jobs.
//
// Every status setter assigns the server-side timestamp for that field
// itself, so callers never write client clocks into status records.
type Store interface {
	// recordings
	SaveRecording(rec domain.Recording) error
	GetRecording(id string) (domain.Recording, bool, error)
	ListRecordingsByOwner(ownerID string) ([]domain.Recording, error)
	SetTranscriptStatus(id string, status domain.TranscriptStatus, errMsg string) error
	SetTranscriptResult(id, path, preview string) error
	SetArtifactStatus(id string, t domain.ArtifactType, status domain.ArtifactStatus) error
	SetArtifactResult(id string, t domain.ArtifactType, path, preview string) error

	// jobs
	SaveJob(job domain.AiJob) error
	GetJob(id string) (domain.AiJob, bool, error)
	SetJobStatus(id string, status domain.JobStatus, errMsg string) error
	SetJobResult(id, outputPath, preview string) error
}
