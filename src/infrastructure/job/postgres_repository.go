package job

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresJobRepository persists jobs in PostgreSQL. The gorm.DB must be
// opened with TranslateError so duplicate keys surface as
// gorm.ErrDuplicatedKey.
type PostgresJobRepository struct {
	db *gorm.DB
}

func NewPostgresJobRepository(db *gorm.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

func (r *PostgresJobRepository) Create(ctx context.Context, jobID string) (*Job, error) {
	j := &Job{
		JobID:     jobID,
		Status:    JobStatusPending,
		Progress:  "Job created",
		CreatedAt: time.Now().UTC(),
	}

	result := r.db.WithContext(ctx).Create(j)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, result.Error
	}

	return j, nil
}

func (r *PostgresJobRepository) Update(ctx context.Context, jobID string, upd Update) (*Job, error) {
	var j Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&j, "job_id = ?", jobID)
		if result.Error != nil {
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return result.Error
		}

		j.apply(upd, time.Now().UTC())
		return tx.Save(&j).Error
	})
	if err != nil {
		return nil, err
	}

	return &j, nil
}

func (r *PostgresJobRepository) Get(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	result := r.db.WithContext(ctx).First(&j, "job_id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}

	return &j, nil
}

func (r *PostgresJobRepository) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var jobs []*Job
	result := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}

	return jobs, nil
}

func (r *PostgresJobRepository) Delete(ctx context.Context, jobID string) error {
	result := r.db.WithContext(ctx).Delete(&Job{}, "job_id = ?", jobID)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
