package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type RecordingModel struct {
	ID         string         `gorm:"primaryKey"`
	OwnerID    string         `gorm:"not null;index"`
	Filename   string         `gorm:"not null"`
	StorageKey string         `gorm:"not null"`
	Metadata   datatypes.JSON `gorm:"type:jsonb"`

	TranscriptStatus    string `gorm:"not null;default:none"`
	TranscriptError     string
	TranscriptPreview   string `gorm:"type:text"`
	TranscriptPath      string
	TranscriptUpdatedAt *time.Time

	SummaryStatus    string `gorm:"not null;default:none"`
	SummaryPath      string
	SummaryPreview   string `gorm:"type:text"`
	SummaryUpdatedAt *time.Time

	NotesStatus    string `gorm:"not null;default:none"`
	NotesPath      string
	NotesPreview   string `gorm:"type:text"`
	NotesUpdatedAt *time.Time

	QuizStatus    string `gorm:"not null;default:none"`
	QuizPath      string
	QuizPreview   string `gorm:"type:text"`
	QuizUpdatedAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type AiJobModel struct {
	ID          string    `gorm:"primaryKey"`
	Type        string    `gorm:"not null"`
	RecordingID string    `gorm:"not null;index"`
	OwnerID     string    `gorm:"not null;index"`
	Status      string    `gorm:"not null"`
	Error       string
	OutputPath  string
	Preview     string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
}
