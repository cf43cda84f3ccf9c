package store

import (
	"fmt"
	"sync"
	"time"

	"lectureflow/pkg/domain"
)

// MemoryStore keeps recordings and jobs in-process. It backs tests and
// single-node development setups.
type MemoryStore struct {
	mu         sync.RWMutex
	recordings map[string]domain.Recording
	jobs       map[string]domain.AiJob
	order      []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recordings: make(map[string]domain.Recording),
		jobs:       make(map[string]domain.AiJob),
	}
}

// cloneRecording deep-copies the maps a Recording carries, so stored rows
// never alias caller-held snapshots. Matches GormStore's value semantics.
func cloneRecording(rec domain.Recording) domain.Recording {
	if rec.Metadata != nil {
		meta := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			meta[k] = v
		}
		rec.Metadata = meta
	}
	if rec.Artifacts != nil {
		artifacts := make(map[domain.ArtifactType]domain.ArtifactState, len(rec.Artifacts))
		for k, v := range rec.Artifacts {
			artifacts[k] = v
		}
		rec.Artifacts = artifacts
	}
	return rec
}

// SaveRecording stores or replaces a recording and tracks insertion order.
func (m *MemoryStore) SaveRecording(rec domain.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.TranscriptStatus == "" {
		rec.TranscriptStatus = domain.TranscriptNone
	}
	if _, exists := m.recordings[rec.ID]; !exists {
		m.order = append(m.order, rec.ID)
	}
	m.recordings[rec.ID] = cloneRecording(rec)
	return nil
}

// GetRecording returns a snapshot of a recording by id.
func (m *MemoryStore) GetRecording(id string) (domain.Recording, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recordings[id]
	return cloneRecording(rec), ok, nil
}

// ListRecordingsByOwner returns snapshots of an owner's recordings in
// insertion order.
func (m *MemoryStore) ListRecordingsByOwner(ownerID string) ([]domain.Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Recording, 0)
	for _, id := range m.order {
		if rec, ok := m.recordings[id]; ok && rec.OwnerID == ownerID {
			res = append(res, cloneRecording(rec))
		}
	}
	return res, nil
}

// SetTranscriptStatus updates the transcript status with a server timestamp.
func (m *MemoryStore) SetTranscriptStatus(id string, status domain.TranscriptStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordings[id]
	if !ok {
		return fmt.Errorf("update recording: %s not found", id)
	}
	now := time.Now().UTC()
	rec.TranscriptStatus = status
	rec.TranscriptError = errMsg
	rec.TranscriptUpdatedAt = &now
	rec.UpdatedAt = now
	m.recordings[id] = rec
	return nil
}

// SetTranscriptResult marks the transcript done with path and preview.
func (m *MemoryStore) SetTranscriptResult(id, path, preview string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordings[id]
	if !ok {
		return fmt.Errorf("update recording: %s not found", id)
	}
	now := time.Now().UTC()
	rec.TranscriptStatus = domain.TranscriptDone
	rec.TranscriptError = ""
	rec.TranscriptPath = path
	rec.TranscriptPreview = preview
	rec.TranscriptUpdatedAt = &now
	rec.UpdatedAt = now
	m.recordings[id] = rec
	return nil
}

// SetArtifactStatus updates one artifact-type status with a timestamp.
func (m *MemoryStore) SetArtifactStatus(id string, t domain.ArtifactType, status domain.ArtifactStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordings[id]
	if !ok {
		return fmt.Errorf("update recording: %s not found", id)
	}
	now := time.Now().UTC()
	state := rec.Artifact(t)
	state.Status = status
	state.UpdatedAt = &now
	if rec.Artifacts == nil {
		rec.Artifacts = make(map[domain.ArtifactType]domain.ArtifactState)
	}
	rec.Artifacts[t] = state
	rec.UpdatedAt = now
	m.recordings[id] = rec
	return nil
}

// SetArtifactResult marks one artifact type done with path and preview.
func (m *MemoryStore) SetArtifactResult(id string, t domain.ArtifactType, path, preview string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordings[id]
	if !ok {
		return fmt.Errorf("update recording: %s not found", id)
	}
	now := time.Now().UTC()
	state := rec.Artifact(t)
	state.Status = domain.ArtifactDone
	state.Path = path
	state.Preview = preview
	state.UpdatedAt = &now
	if rec.Artifacts == nil {
		rec.Artifacts = make(map[domain.ArtifactType]domain.ArtifactState)
	}
	rec.Artifacts[t] = state
	rec.UpdatedAt = now
	m.recordings[id] = rec
	return nil
}

// SaveJob stores or replaces a job.
func (m *MemoryStore) SaveJob(job domain.AiJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

// GetJob returns a job by id.
func (m *MemoryStore) GetJob(id string) (domain.AiJob, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok, nil
}

// SetJobStatus updates a job's status and error message.
func (m *MemoryStore) SetJobStatus(id string, status domain.JobStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("update job: %s not found", id)
	}
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	m.jobs[id] = job
	return nil
}

// SetJobResult finalizes a successful job.
func (m *MemoryStore) SetJobResult(id, outputPath, preview string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("update job: %s not found", id)
	}
	now := time.Now().UTC()
	job.Status = domain.JobDone
	job.Error = ""
	job.OutputPath = outputPath
	job.Preview = preview
	job.UpdatedAt = now
	job.CompletedAt = &now
	m.jobs[id] = job
	return nil
}
