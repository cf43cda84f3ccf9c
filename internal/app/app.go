package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"lectureflow/internal/media"
	"lectureflow/internal/util"
	"lectureflow/pkg/ai"
	"lectureflow/pkg/domain"
	"lectureflow/pkg/storage"
	"lectureflow/pkg/store"
	"lectureflow/pkg/trigger"
)

const defaultSegmentSeconds = 600

// Converter turns an audio file into canonical 16 kHz mono WAV.
type Converter interface {
	Convert(ctx context.Context, inputPath string) (string, error)
}

// Segmenter splits an audio file into fixed-duration ordered parts.
type Segmenter interface {
	Segment(ctx context.Context, inputPath string, segmentSeconds int) ([]media.Part, error)
}

// Config wires the pipeline's collaborators.
type Config struct {
	Store          store.Store
	Objects        storage.ObjectStore
	Dispatcher     trigger.Dispatcher
	Transcriber    ai.Transcriber
	Generator      ai.TextGenerator
	Converter      Converter
	Segmenter      Segmenter
	SegmentSeconds int
	Logger         *slog.Logger
}

// App orchestrates transcription runs and artifact generation jobs.
type App struct {
	store          store.Store
	objects        storage.ObjectStore
	dispatcher     trigger.Dispatcher
	transcriber    ai.Transcriber
	generator      ai.TextGenerator
	converter      Converter
	segmenter      Segmenter
	segmentSeconds int
	logger         *slog.Logger
}

// New validates the config and constructs the app.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if cfg.Transcriber == nil {
		return nil, fmt.Errorf("transcriber required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator required")
	}
	if cfg.Converter == nil || cfg.Segmenter == nil {
		return nil, fmt.Errorf("media tools required")
	}
	segmentSeconds := cfg.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = defaultSegmentSeconds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		store:          cfg.Store,
		objects:        cfg.Objects,
		dispatcher:     cfg.Dispatcher,
		transcriber:    cfg.Transcriber,
		generator:      cfg.Generator,
		converter:      cfg.Converter,
		segmenter:      cfg.Segmenter,
		segmentSeconds: segmentSeconds,
		logger:         logger,
	}, nil
}

// Handlers exposes the trigger handlers for dispatcher registration.
func (a *App) Handlers() trigger.Handlers {
	return trigger.Handlers{
		RecordingUpdated: a.HandleRecordingUpdated,
		JobCreated:       a.HandleJobCreated,
	}
}

// RequestTranscription flips a recording to "pending" and publishes the
// update event. This is also the operator's re-drive mechanism after an
// error: resetting to pending starts a fresh run.
func (a *App) RequestTranscription(ctx context.Context, callerID, recordingID string) (domain.Recording, error) {
	rec, ok, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.Recording{}, err
	}
	if !ok {
		return domain.Recording{}, ErrRecordingNotFound
	}
	if rec.OwnerID != callerID {
		return domain.Recording{}, ErrPermissionDenied
	}
	if !rec.TranscriptStatus.CanTransition(domain.TranscriptPending) {
		return domain.Recording{}, ErrTranscriptionActive
	}
	before := rec
	if err := a.store.SetTranscriptStatus(recordingID, domain.TranscriptPending, ""); err != nil {
		return domain.Recording{}, err
	}
	after, _, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.Recording{}, err
	}
	if err := a.dispatcher.PublishRecordingUpdate(ctx, before, after); err != nil {
		return domain.Recording{}, fmt.Errorf("publish recording update: %w", err)
	}
	return after, nil
}

// CreateJob registers a pending AI job and publishes its creation event.
// Job creation is never blocked on transcript readiness; a job created too
// early fails later with a "transcript missing" error.
func (a *App) CreateJob(ctx context.Context, callerID, recordingID, artifactType string) (domain.AiJob, error) {
	t, ok := domain.ParseArtifactType(artifactType)
	if !ok {
		return domain.AiJob{}, ErrInvalidArtifactType
	}
	rec, found, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.AiJob{}, err
	}
	if !found {
		return domain.AiJob{}, ErrRecordingNotFound
	}
	if rec.OwnerID != callerID {
		return domain.AiJob{}, ErrPermissionDenied
	}
	now := time.Now().UTC()
	job := domain.AiJob{
		ID:          util.NewID(),
		Type:        t,
		RecordingID: recordingID,
		OwnerID:     callerID,
		Status:      domain.JobPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.SaveJob(job); err != nil {
		return domain.AiJob{}, err
	}
	if err := a.dispatcher.PublishJobCreated(ctx, job); err != nil {
		return domain.AiJob{}, fmt.Errorf("publish job created: %w", err)
	}
	return job, nil
}

// Job returns a job snapshot, owner-checked.
func (a *App) Job(callerID, jobID string) (domain.AiJob, error) {
	job, ok, err := a.store.GetJob(jobID)
	if err != nil {
		return domain.AiJob{}, err
	}
	if !ok {
		return domain.AiJob{}, ErrJobNotFound
	}
	if job.OwnerID != callerID {
		return domain.AiJob{}, ErrPermissionDenied
	}
	return job, nil
}

// TranscriptText fetches the private transcript text for a recording.
// Existence is checked before ownership so a denied caller learns nothing
// beyond what not-found already reveals.
func (a *App) TranscriptText(ctx context.Context, callerID, recordingID string) (string, error) {
	rec, ok, err := a.store.GetRecording(recordingID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrRecordingNotFound
	}
	if rec.OwnerID != callerID {
		return "", ErrPermissionDenied
	}
	key := domain.TranscriptKey(recordingID)
	exists, err := a.objects.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ErrTranscriptNotFound
	}
	data, err := a.objects.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ArtifactOutput is the payload returned for a generated artifact.
type ArtifactOutput struct {
	Type        domain.ArtifactType `json:"type"`
	RecordingID string              `json:"recordingId"`
	Path        string              `json:"path"`
	Preview     string              `json:"preview,omitempty"`
	Data        any                 `json:"data"`
}

// Artifact fetches a named artifact's parsed JSON plus its stored preview.
func (a *App) Artifact(ctx context.Context, callerID, recordingID, artifactType string) (ArtifactOutput, error) {
	t, ok := domain.ParseArtifactType(artifactType)
	if !ok {
		return ArtifactOutput{}, ErrInvalidArtifactType
	}
	rec, found, err := a.store.GetRecording(recordingID)
	if err != nil {
		return ArtifactOutput{}, err
	}
	if !found {
		return ArtifactOutput{}, ErrRecordingNotFound
	}
	if rec.OwnerID != callerID {
		return ArtifactOutput{}, ErrPermissionDenied
	}
	state := rec.Artifact(t)
	if state.Path == "" {
		return ArtifactOutput{}, ErrArtifactNotFound
	}
	exists, err := a.objects.Exists(ctx, state.Path)
	if err != nil {
		return ArtifactOutput{}, err
	}
	if !exists {
		return ArtifactOutput{}, ErrArtifactNotFound
	}
	raw, err := a.objects.Get(ctx, state.Path)
	if err != nil {
		return ArtifactOutput{}, err
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		// Stored object should always be JSON; surface it raw if not.
		data = map[string]string{"raw": string(raw)}
	}
	return ArtifactOutput{
		Type:        t,
		RecordingID: recordingID,
		Path:        state.Path,
		Preview:     state.Preview,
		Data:        data,
	}, nil
}

// ListRecordings returns all of the caller's recordings.
func (a *App) ListRecordings(callerID string) ([]domain.Recording, error) {
	return a.store.ListRecordingsByOwner(callerID)
}

// Recording returns a recording snapshot, owner-checked.
func (a *App) Recording(callerID, recordingID string) (domain.Recording, error) {
	rec, ok, err := a.store.GetRecording(recordingID)
	if err != nil {
		return domain.Recording{}, err
	}
	if !ok {
		return domain.Recording{}, ErrRecordingNotFound
	}
	if rec.OwnerID != callerID {
		return domain.Recording{}, ErrPermissionDenied
	}
	return rec, nil
}
