package domain

import "time"

// TranscriptStatus tracks the transcription lifecycle of a recording.
type TranscriptStatus string

const (
	TranscriptNone       TranscriptStatus = "none"
	TranscriptPending    TranscriptStatus = "pending"
	TranscriptProcessing TranscriptStatus = "processing"
	TranscriptDone       TranscriptStatus = "done"
	TranscriptError      TranscriptStatus = "error"
)

// transcriptTransitions is the closed set of allowed transcript status moves.
// Anything not listed here is ignored rather than trusted.
var transcriptTransitions = map[TranscriptStatus][]TranscriptStatus{
	TranscriptNone:       {TranscriptPending},
	TranscriptPending:    {TranscriptProcessing},
	TranscriptProcessing: {TranscriptDone, TranscriptError},
	TranscriptDone:       {TranscriptPending},
	TranscriptError:      {TranscriptPending},
}

// CanTransition reports whether a transcript status move is allowed.
func (s TranscriptStatus) CanTransition(to TranscriptStatus) bool {
	for _, next := range transcriptTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// JobStatus tracks the lifecycle of an AI job. A job makes at most one
// pending -> processing -> done|error pass.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobProcessing},
	JobProcessing: {JobDone, JobError},
}

// CanTransition reports whether a job status move is allowed.
func (s JobStatus) CanTransition(to JobStatus) bool {
	for _, next := range jobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ArtifactStatus is the per-type derivation status carried on a recording.
// It mirrors the job lifecycle but starts at "none" before any job has run.
type ArtifactStatus string

const (
	ArtifactNone       ArtifactStatus = "none"
	ArtifactPending    ArtifactStatus = "pending"
	ArtifactProcessing ArtifactStatus = "processing"
	ArtifactDone       ArtifactStatus = "done"
	ArtifactError      ArtifactStatus = "error"
)

// ArtifactType names the structured outputs derivable from a transcript.
type ArtifactType string

const (
	ArtifactSummary ArtifactType = "summary"
	ArtifactNotes   ArtifactType = "notes"
	ArtifactQuiz    ArtifactType = "quiz"
)

// ParseArtifactType validates a caller-supplied type string.
func ParseArtifactType(s string) (ArtifactType, bool) {
	switch ArtifactType(s) {
	case ArtifactSummary, ArtifactNotes, ArtifactQuiz:
		return ArtifactType(s), true
	}
	return "", false
}

// ArtifactTypes lists all supported artifact types.
func ArtifactTypes() []ArtifactType {
	return []ArtifactType{ArtifactSummary, ArtifactNotes, ArtifactQuiz}
}

// ArtifactState is the per-type derivation state carried on a recording.
type ArtifactState struct {
	Status    ArtifactStatus `json:"status"`
	Path      string         `json:"path,omitempty"`
	Preview   string         `json:"preview,omitempty"`
	UpdatedAt *time.Time     `json:"updatedAt,omitempty"`
}

// Recording is one captured lecture audio and its derived state.
// StorageKey locates the raw audio object, e.g. "recordings/<filename>".
type Recording struct {
	ID         string            `json:"id"`
	OwnerID    string            `json:"ownerId"`
	Filename   string            `json:"filename"`
	StorageKey string            `json:"-"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	TranscriptStatus    TranscriptStatus `json:"transcriptStatus"`
	TranscriptError     string           `json:"transcriptError,omitempty"`
	TranscriptPreview   string           `json:"transcriptPreview,omitempty"`
	TranscriptPath      string           `json:"transcriptPath,omitempty"`
	TranscriptUpdatedAt *time.Time       `json:"transcriptUpdatedAt,omitempty"`

	Artifacts map[ArtifactType]ArtifactState `json:"artifacts,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Artifact returns the state for one artifact type, defaulting to "none".
func (r Recording) Artifact(t ArtifactType) ArtifactState {
	if s, ok := r.Artifacts[t]; ok {
		return s
	}
	return ArtifactState{Status: ArtifactNone}
}

// AiJob is a one-shot request to derive an artifact from a transcript.
type AiJob struct {
	ID          string       `json:"id"`
	Type        ArtifactType `json:"type"`
	RecordingID string       `json:"recordingId"`
	OwnerID     string       `json:"ownerId"`
	Status      JobStatus    `json:"status"`
	Error       string       `json:"error,omitempty"`
	OutputPath  string       `json:"outputPath,omitempty"`
	Preview     string       `json:"preview,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}
