package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"lectureflow/pkg/domain"
)

const migrateLockID int64 = 52815281

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&RecordingModel{}, &AiJobModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// withMigrationLock serializes schema changes across replicas using a
// Postgres advisory lock.
func withMigrationLock(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		return fn(tx)
	})
}

// SaveRecording inserts or replaces a recording row.
func (s *GormStore) SaveRecording(rec domain.Recording) error {
	model, err := recordingToModel(rec)
	if err != nil {
		return err
	}
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	return nil
}

// GetRecording fetches a recording by id.
func (s *GormStore) GetRecording(id string) (domain.Recording, bool, error) {
	var model RecordingModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Recording{}, false, nil
	}
	if err != nil {
		return domain.Recording{}, false, fmt.Errorf("get recording: %w", err)
	}
	rec, err := recordingFromModel(model)
	if err != nil {
		return domain.Recording{}, false, err
	}
	return rec, true, nil
}

// ListRecordingsByOwner returns an owner's recordings, newest first.
func (s *GormStore) ListRecordingsByOwner(ownerID string) ([]domain.Recording, error) {
	var models []RecordingModel
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	recs := make([]domain.Recording, 0, len(models))
	for _, m := range models {
		rec, err := recordingFromModel(m)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// SetTranscriptStatus writes a transcript status plus its server timestamp.
func (s *GormStore) SetTranscriptStatus(id string, status domain.TranscriptStatus, errMsg string) error {
	now := time.Now().UTC()
	return s.updateRecording(id, map[string]any{
		"transcript_status":     string(status),
		"transcript_error":      errMsg,
		"transcript_updated_at": &now,
	})
}

// SetTranscriptResult marks the transcript done with its path and preview.
func (s *GormStore) SetTranscriptResult(id, path, preview string) error {
	now := time.Now().UTC()
	return s.updateRecording(id, map[string]any{
		"transcript_status":     string(domain.TranscriptDone),
		"transcript_error":      "",
		"transcript_path":       path,
		"transcript_preview":    preview,
		"transcript_updated_at": &now,
	})
}

// SetArtifactStatus writes one artifact-type status plus its timestamp.
func (s *GormStore) SetArtifactStatus(id string, t domain.ArtifactType, status domain.ArtifactStatus) error {
	now := time.Now().UTC()
	return s.updateRecording(id, map[string]any{
		artifactColumn(t, "status"):     string(status),
		artifactColumn(t, "updated_at"): &now,
	})
}

// SetArtifactResult marks one artifact type done with its path and preview.
func (s *GormStore) SetArtifactResult(id string, t domain.ArtifactType, path, preview string) error {
	now := time.Now().UTC()
	return s.updateRecording(id, map[string]any{
		artifactColumn(t, "status"):     string(domain.ArtifactDone),
		artifactColumn(t, "path"):       path,
		artifactColumn(t, "preview"):    preview,
		artifactColumn(t, "updated_at"): &now,
	})
}

func (s *GormStore) updateRecording(id string, fields map[string]any) error {
	res := s.db.Model(&RecordingModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update recording: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update recording: %s not found", id)
	}
	return nil
}

func artifactColumn(t domain.ArtifactType, suffix string) string {
	return string(t) + "_" + suffix
}

// SaveJob inserts or replaces a job row.
func (s *GormStore) SaveJob(job domain.AiJob) error {
	model := jobToModel(job)
	if err := s.db.Save(&model).Error; err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// GetJob fetches a job by id.
func (s *GormStore) GetJob(id string) (domain.AiJob, bool, error) {
	var model AiJobModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.AiJob{}, false, nil
	}
	if err != nil {
		return domain.AiJob{}, false, fmt.Errorf("get job: %w", err)
	}
	return jobFromModel(model), true, nil
}

// SetJobStatus writes the job status, error message and update timestamp.
func (s *GormStore) SetJobStatus(id string, status domain.JobStatus, errMsg string) error {
	return s.updateJob(id, map[string]any{
		"status":     string(status),
		"error":      errMsg,
		"updated_at": time.Now().UTC(),
	})
}

// SetJobResult finalizes a successful job.
func (s *GormStore) SetJobResult(id, outputPath, preview string) error {
	now := time.Now().UTC()
	return s.updateJob(id, map[string]any{
		"status":       string(domain.JobDone),
		"error":        "",
		"output_path":  outputPath,
		"preview":      preview,
		"updated_at":   now,
		"completed_at": &now,
	})
}

func (s *GormStore) updateJob(id string, fields map[string]any) error {
	res := s.db.Model(&AiJobModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update job: %s not found", id)
	}
	return nil
}

func recordingToModel(rec domain.Recording) (RecordingModel, error) {
	var meta datatypes.JSON
	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return RecordingModel{}, fmt.Errorf("encode recording metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	model := RecordingModel{
		ID:                  rec.ID,
		OwnerID:             rec.OwnerID,
		Filename:            rec.Filename,
		StorageKey:          rec.StorageKey,
		Metadata:            meta,
		TranscriptStatus:    string(statusOrNone(rec.TranscriptStatus)),
		TranscriptError:     rec.TranscriptError,
		TranscriptPreview:   rec.TranscriptPreview,
		TranscriptPath:      rec.TranscriptPath,
		TranscriptUpdatedAt: rec.TranscriptUpdatedAt,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
	summary := rec.Artifact(domain.ArtifactSummary)
	model.SummaryStatus = string(summary.Status)
	model.SummaryPath = summary.Path
	model.SummaryPreview = summary.Preview
	model.SummaryUpdatedAt = summary.UpdatedAt
	notes := rec.Artifact(domain.ArtifactNotes)
	model.NotesStatus = string(notes.Status)
	model.NotesPath = notes.Path
	model.NotesPreview = notes.Preview
	model.NotesUpdatedAt = notes.UpdatedAt
	quiz := rec.Artifact(domain.ArtifactQuiz)
	model.QuizStatus = string(quiz.Status)
	model.QuizPath = quiz.Path
	model.QuizPreview = quiz.Preview
	model.QuizUpdatedAt = quiz.UpdatedAt
	return model, nil
}

func recordingFromModel(model RecordingModel) (domain.Recording, error) {
	var meta map[string]string
	if len(model.Metadata) > 0 {
		if err := json.Unmarshal(model.Metadata, &meta); err != nil {
			return domain.Recording{}, fmt.Errorf("decode recording metadata: %w", err)
		}
	}
	rec := domain.Recording{
		ID:                  model.ID,
		OwnerID:             model.OwnerID,
		Filename:            model.Filename,
		StorageKey:          model.StorageKey,
		Metadata:            meta,
		TranscriptStatus:    domain.TranscriptStatus(model.TranscriptStatus),
		TranscriptError:     model.TranscriptError,
		TranscriptPreview:   model.TranscriptPreview,
		TranscriptPath:      model.TranscriptPath,
		TranscriptUpdatedAt: model.TranscriptUpdatedAt,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
		Artifacts: map[domain.ArtifactType]domain.ArtifactState{
			domain.ArtifactSummary: {
				Status:    artifactStatusOrNone(model.SummaryStatus),
				Path:      model.SummaryPath,
				Preview:   model.SummaryPreview,
				UpdatedAt: model.SummaryUpdatedAt,
			},
			domain.ArtifactNotes: {
				Status:    artifactStatusOrNone(model.NotesStatus),
				Path:      model.NotesPath,
				Preview:   model.NotesPreview,
				UpdatedAt: model.NotesUpdatedAt,
			},
			domain.ArtifactQuiz: {
				Status:    artifactStatusOrNone(model.QuizStatus),
				Path:      model.QuizPath,
				Preview:   model.QuizPreview,
				UpdatedAt: model.QuizUpdatedAt,
			},
		},
	}
	return rec, nil
}

func statusOrNone(s domain.TranscriptStatus) domain.TranscriptStatus {
	if s == "" {
		return domain.TranscriptNone
	}
	return s
}

func artifactStatusOrNone(s string) domain.ArtifactStatus {
	if s == "" {
		return domain.ArtifactNone
	}
	return domain.ArtifactStatus(s)
}

func jobToModel(job domain.AiJob) AiJobModel {
	return AiJobModel{
		ID:          job.ID,
		Type:        string(job.Type),
		RecordingID: job.RecordingID,
		OwnerID:     job.OwnerID,
		Status:      string(job.Status),
		Error:       job.Error,
		OutputPath:  job.OutputPath,
		Preview:     job.Preview,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
}

func jobFromModel(model AiJobModel) domain.AiJob {
	return domain.AiJob{
		ID:          model.ID,
		Type:        domain.ArtifactType(model.Type),
		RecordingID: model.RecordingID,
		OwnerID:     model.OwnerID,
		Status:      domain.JobStatus(model.Status),
		Error:       model.Error,
		OutputPath:  model.OutputPath,
		Preview:     model.Preview,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		CompletedAt: model.CompletedAt,
	}
}
