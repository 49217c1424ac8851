package models

import (
	"time"

	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobModel is the persistence model for durable replication jobs.
type JobModel struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Kind        string         `gorm:"type:varchar(64);not null;index"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null"`
	Status      string         `gorm:"type:varchar(20);not null;default:PENDING;index:idx_jobs_status_available,priority:1"`
	Attempts    int            `gorm:"not null;default:0"`
	MaxAttempts int            `gorm:"not null;default:5"`
	LastError   string         `gorm:"type:text"`
	AvailableAt time.Time      `gorm:"not null;index:idx_jobs_status_available,priority:2"`
	ProcessedAt *time.Time
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (JobModel) TableName() string {
	return "replication_jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *JobModel) ToDomain() *job.Job {
	return &job.Job{
		ID:          m.ID,
		Kind:        job.Kind(m.Kind),
		Payload:     []byte(m.Payload),
		Status:      job.Status(m.Status),
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		LastError:   m.LastError,
		AvailableAt: m.AvailableAt,
		ProcessedAt: m.ProcessedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Job
func (m *JobModel) FromDomain(j *job.Job) {
	m.ID = j.ID
	m.Kind = string(j.Kind)
	m.Payload = datatypes.JSON(j.Payload)
	m.Status = string(j.Status)
	m.Attempts = j.Attempts
	m.MaxAttempts = j.MaxAttempts
	m.LastError = j.LastError
	m.AvailableAt = j.AvailableAt
	m.ProcessedAt = j.ProcessedAt
	m.CreatedAt = j.CreatedAt
	m.UpdatedAt = j.UpdatedAt
}

// JobModelFromDomain creates a new persistence model from a domain Job
func JobModelFromDomain(j *job.Job) *JobModel {
	m := &JobModel{}
	m.FromDomain(j)
	return m
}
