package job

import (
	"context"
	"errors"
	"time"
)

// JobStatus defines the lifecycle state of a clip job
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusTrimming    JobStatus = "trimming"
	JobStatusUploading   JobStatus = "uploading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

// Terminal reports whether a status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

var (
	ErrNotFound = errors.New("job not found")
	ErrConflict = errors.New("job already exists")
)

// WatchURL derives the public video URL for a published video ID.
func WatchURL(videoID string) string {
	return "https://youtube.com/watch?v=" + videoID
}

// Job represents one run of the clip-and-publish pipeline
type Job struct {
	JobID       string     `gorm:"column:job_id;primaryKey" json:"job_id"`
	Status      JobStatus  `gorm:"column:status" json:"status"`
	Progress    string     `gorm:"column:progress" json:"progress"`
	VideoID     string     `gorm:"column:video_id" json:"video_id,omitempty"`
	VideoURL    string     `gorm:"column:video_url" json:"video_url,omitempty"`
	Error       string     `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// Update carries the fields of a partial job update. Nil fields are left
// untouched by Repository.Update.
type Update struct {
	Status   *JobStatus
	Progress *string
	VideoID  *string
	Error    *string
}

// JobRepository defines the interface for durable job persistence. All
// implementations enforce the lifecycle invariants: terminal statuses are
// sticky, completed_at is set exactly when a terminal status is written, and
// video_url is derived whenever video_id is written.
type JobRepository interface {
	Create(ctx context.Context, jobID string) (*Job, error)
	Update(ctx context.Context, jobID string, upd Update) (*Job, error)
	Get(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context, limit int) ([]*Job, error)
	Delete(ctx context.Context, jobID string) error
}

// DefaultListLimit bounds List when the caller passes limit <= 0.
const DefaultListLimit = 100

// apply merges an update into a job record in place, honoring the lifecycle
// invariants shared by every repository implementation.
func (j *Job) apply(upd Update, now time.Time) {
	if upd.Progress != nil {
		j.Progress = *upd.Progress
	}
	if upd.VideoID != nil {
		j.VideoID = *upd.VideoID
		j.VideoURL = WatchURL(*upd.VideoID)
	}
	if upd.Error != nil {
		j.Error = *upd.Error
	}
	// A job that reached a terminal status never leaves it.
	if upd.Status != nil && !j.Status.Terminal() {
		j.Status = *upd.Status
		if j.Status.Terminal() {
			t := now
			j.CompletedAt = &t
		}
	}
}
