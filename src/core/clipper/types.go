package clipper

import (
	"context"

	"clipsmith/src/core/webhook"
)

// ClipRequest is the immutable input to one clip job.
type ClipRequest struct {
	VideoURL      string          `json:"video_url" binding:"required"`
	StartTime     string          `json:"start_time" binding:"required"`
	EndTime       string          `json:"end_time" binding:"required"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Tags          []string        `json:"tags"`
	CategoryID    string          `json:"category_id"`
	PrivacyStatus string          `json:"privacy_status"`
	ThumbnailURL  string          `json:"thumbnail_url,omitempty"`
	Webhook       *webhook.Config `json:"webhook,omitempty"`
}

// ApplyDefaults fills the publish metadata fields a caller left empty.
func (r *ClipRequest) ApplyDefaults() {
	if r.Title == "" {
		r.Title = "Clipped Video"
	}
	if r.Description == "" {
		r.Description = "This is a clipped segment."
	}
	if len(r.Tags) == 0 {
		r.Tags = []string{"clip"}
	}
	if r.CategoryID == "" {
		r.CategoryID = "22"
	}
	if r.PrivacyStatus == "" {
		r.PrivacyStatus = "unlisted"
	}
}

// UploadMetadata is the publish metadata handed to the Publisher.
type UploadMetadata struct {
	Title         string
	Description   string
	Tags          []string
	CategoryID    string
	PrivacyStatus string
}

// Downloader acquires source media from a URL.
type Downloader interface {
	Download(ctx context.Context, url, output string, progress func(string)) error
}

// Trimmer produces the clipped artifact.
type Trimmer interface {
	Trim(ctx context.Context, input, output, start, end string) error
}

// Publisher uploads the artifact to the hosting platform.
type Publisher interface {
	Upload(ctx context.Context, file string, meta UploadMetadata, progress func(int)) (string, error)
	SetThumbnail(ctx context.Context, videoID, file string) error
}

// ThumbnailResolver obtains and normalizes a cover image.
type ThumbnailResolver interface {
	Resolve(ctx context.Context, sourceURL, clipPath, output string) error
}

// WebhookSender delivers a job-outcome notification, best-effort.
type WebhookSender interface {
	Send(ctx context.Context, cfg webhook.Config, payload webhook.Payload) bool
}
