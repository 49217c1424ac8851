package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/catalogmirror/backend/internal/domain/job"
	"github.com/catalogmirror/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormJobRepository implements job.Repository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GORM-based job repository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormJobRepository) WithTx(tx *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: tx}
}

// Save persists one or more jobs
func (r *GormJobRepository) Save(ctx context.Context, jobs ...*job.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	rows := make([]*models.JobModel, len(jobs))
	for i, j := range jobs {
		rows[i] = models.JobModelFromDomain(j)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// Enqueue implements job.Enqueuer
func (r *GormJobRepository) Enqueue(ctx context.Context, jobs ...*job.Job) error {
	return r.Save(ctx, jobs...)
}

// ClaimDue locks due jobs with FOR UPDATE SKIP LOCKED so concurrent workers
// never claim the same row, then marks them processing. A processing row whose
// updated_at is older than staleAfter belongs to a worker that died mid-run
// and is claimed again.
func (r *GormJobRepository) ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, limit int) ([]*job.Job, error) {
	var claimed []*job.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		due := tx.Where("status IN ? AND available_at <= ?", []string{
			string(job.StatusPending),
			string(job.StatusFailed),
		}, now)
		if staleAfter > 0 {
			due = due.Or("status = ? AND updated_at < ?", string(job.StatusProcessing), now.Add(-staleAfter))
		}

		var rows []models.JobModel
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where(due).
			Order("available_at ASC").
			Limit(limit).
			Find(&rows).Error; err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}

		updatedAt := time.Now()
		if err := tx.Model(&models.JobModel{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":     string(job.StatusProcessing),
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": updatedAt,
			}).Error; err != nil {
			return err
		}

		claimed = make([]*job.Job, 0, len(rows))
		for i := range rows {
			j := rows[i].ToDomain()
			claim := j.MarkProcessing
			if j.Status == job.StatusProcessing {
				claim = j.Reclaim
			}
			if err := claim(); err != nil {
				return err
			}
			j.UpdatedAt = updatedAt
			claimed = append(claimed, j)
		}
		return nil
	})

	return claimed, err
}

// Update updates an existing job
func (r *GormJobRepository) Update(ctx context.Context, j *job.Job) error {
	j.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(models.JobModelFromDomain(j)).Error
}

// FindByID retrieves a single job by ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	var model models.JobModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, job.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDead retrieves dead jobs with pagination
func (r *GormJobRepository) FindDead(ctx context.Context, page, pageSize int) ([]*job.Job, int64, error) {
	var rows []models.JobModel
	var total int64

	if err := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("status = ?", string(job.StatusDead)).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(job.StatusDead)).
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]*job.Job, len(rows))
	for i := range rows {
		jobs[i] = rows[i].ToDomain()
	}
	return jobs, total, nil
}

// DeleteCompletedBefore deletes completed jobs processed before the cutoff
func (r *GormJobRepository) DeleteCompletedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", string(job.StatusCompleted), before).
		Delete(&models.JobModel{})
	return result.RowsAffected, result.Error
}

// CountByStatus returns count of jobs for each status
func (r *GormJobRepository) CountByStatus(ctx context.Context) (map[job.Status]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[job.Status]int64)
	for _, r := range results {
		counts[job.Status(r.Status)] = r.Count
	}
	return counts, nil
}

var (
	_ job.Repository = (*GormJobRepository)(nil)
	_ job.Enqueuer   = (*GormJobRepository)(nil)
)
