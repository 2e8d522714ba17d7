package clipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"clipsmith/src/core/webhook"
	"clipsmith/src/fsutil"
	"clipsmith/src/infrastructure/job"
	"clipsmith/src/infrastructure/log"
)

// Config holds the working directories for pipeline artifacts.
type Config struct {
	TempDir    string
	UploadsDir string
}

// Service drives a clip job through download, trim, upload and thumbnail,
// recording every state transition in the job repository. It implements
// job.Processor.
type Service struct {
	cfg        Config
	repo       job.JobRepository
	downloader Downloader
	trimmer    Trimmer
	publisher  Publisher
	thumbnails ThumbnailResolver
	webhooks   WebhookSender
	fs         fsutil.FileStore
}

func NewService(
	cfg Config,
	repo job.JobRepository,
	downloader Downloader,
	trimmer Trimmer,
	publisher Publisher,
	thumbnails ThumbnailResolver,
	webhooks WebhookSender,
	fileStore fsutil.FileStore,
) (*Service, error) {
	if cfg.TempDir == "" {
		cfg.TempDir = "temp"
	}
	if cfg.UploadsDir == "" {
		cfg.UploadsDir = "uploads"
	}

	for _, dir := range []string{cfg.TempDir, cfg.UploadsDir} {
		if err := fileStore.MakeDirectory(dir); err != nil {
			return nil, fmt.Errorf("failed to create working directory %s: %w", dir, err)
		}
	}

	return &Service{
		cfg:        cfg,
		repo:       repo,
		downloader: downloader,
		trimmer:    trimmer,
		publisher:  publisher,
		thumbnails: thumbnails,
		webhooks:   webhooks,
		fs:         fileStore,
	}, nil
}

// Process unmarshals the dispatched request and runs the pipeline. Stage
// failures are recorded in the job record, never returned: the pipeline must
// not crash the hosting process or nack the message.
func (s *Service) Process(ctx context.Context, jobID string, payload json.RawMessage) error {
	var req ClipRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.fail(ctx, jobID, req, "Invalid job payload", fmt.Sprintf("failed to decode clip request: %v", err))
		return nil
	}
	req.ApplyDefaults()

	s.run(ctx, jobID, req)
	return nil
}

// run executes the stage sequence for one job. Working files are scoped to
// the job id and removed on every exit path.
func (s *Service) run(ctx context.Context, jobID string, req ClipRequest) {
	downloadPath := filepath.Join(s.cfg.TempDir, jobID+"_original.mp4")
	clippedPath := filepath.Join(s.cfg.UploadsDir, jobID+"_clipped.mp4")
	thumbPath := filepath.Join(s.cfg.TempDir, jobID+"_thumb.jpg")
	defer s.cleanupFiles(downloadPath, clippedPath, thumbPath)

	logger := log.WithValues("job_id", jobID)

	// Download
	s.update(ctx, jobID, job.JobStatusDownloading, "Starting download...")
	err := s.downloader.Download(ctx, req.VideoURL, downloadPath, func(msg string) {
		s.update(ctx, jobID, job.JobStatusDownloading, msg)
	})
	if err != nil {
		s.fail(ctx, jobID, req, "All download strategies failed", err.Error())
		return
	}
	s.update(ctx, jobID, job.JobStatusDownloading, "Download completed")

	// Trim
	s.update(ctx, jobID, job.JobStatusTrimming, "Starting video trimming...")
	if err := s.trimmer.Trim(ctx, downloadPath, clippedPath, req.StartTime, req.EndTime); err != nil {
		s.fail(ctx, jobID, req, "Trimming failed", err.Error())
		return
	}
	s.update(ctx, jobID, job.JobStatusTrimming, "Video trimming completed")

	// Upload
	s.update(ctx, jobID, job.JobStatusUploading, "Starting video upload...")
	videoID, err := s.publisher.Upload(ctx, clippedPath, UploadMetadata{
		Title:         req.Title,
		Description:   req.Description,
		Tags:          req.Tags,
		CategoryID:    req.CategoryID,
		PrivacyStatus: req.PrivacyStatus,
	}, func(percent int) {
		s.update(ctx, jobID, job.JobStatusUploading, fmt.Sprintf("Uploading... %d%%", percent))
	})
	if err != nil {
		s.fail(ctx, jobID, req, "Upload failed", err.Error())
		return
	}

	// Thumbnail is non-fatal: the video is already published.
	if err := s.thumbnails.Resolve(ctx, req.ThumbnailURL, clippedPath, thumbPath); err != nil {
		logger.Info("Skipping thumbnail", "reason", err.Error())
	} else if err := s.publisher.SetThumbnail(ctx, videoID, thumbPath); err != nil {
		logger.Info("Failed to set thumbnail", "reason", err.Error())
	}

	completed := job.JobStatusCompleted
	progress := "Upload completed"
	j, updErr := s.repo.Update(ctx, jobID, job.Update{
		Status:   &completed,
		Progress: &progress,
		VideoID:  &videoID,
	})
	if updErr != nil {
		logger.Error(updErr, "Failed to record job completion")
		return
	}
	logger.Info("Clip job completed", "video_id", videoID, "video_url", j.VideoURL)

	s.notify(ctx, req, webhook.Payload{
		Event:     "completed",
		JobID:     jobID,
		Status:    string(job.JobStatusCompleted),
		VideoID:   videoID,
		VideoURL:  j.VideoURL,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) update(ctx context.Context, jobID string, status job.JobStatus, progress string) {
	if _, err := s.repo.Update(ctx, jobID, job.Update{
		Status:   &status,
		Progress: &progress,
	}); err != nil {
		log.Error(err, "Failed to update job status",
			"job_id", jobID, "status", status, "progress", progress)
	}
}

// fail marks the job terminal with the stage's diagnostic and notifies the
// webhook, if any.
func (s *Service) fail(ctx context.Context, jobID string, req ClipRequest, progress, errMsg string) {
	failed := job.JobStatusFailed
	if _, err := s.repo.Update(ctx, jobID, job.Update{
		Status:   &failed,
		Progress: &progress,
		Error:    &errMsg,
	}); err != nil {
		log.Error(err, "Failed to record job failure", "job_id", jobID)
	}
	log.Info("Clip job failed", "job_id", jobID, "error", errMsg)

	s.notify(ctx, req, webhook.Payload{
		Event:     "failed",
		JobID:     jobID,
		Status:    string(job.JobStatusFailed),
		Error:     errMsg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Service) notify(ctx context.Context, req ClipRequest, payload webhook.Payload) {
	if req.Webhook == nil {
		return
	}
	delivered := s.webhooks.Send(ctx, *req.Webhook, payload)
	log.Debug("Webhook dispatch finished",
		"job_id", payload.JobID, "event", payload.Event, "delivered", delivered)
}

// cleanupFiles removes job-scoped working files. Missing files are a no-op;
// any other failure is logged and swallowed.
func (s *Service) cleanupFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.fs.Remove(p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Error(err, "Failed to clean up file", "path", p)
			}
			continue
		}
		log.Info("Cleaned up file", "path", p)
	}
}
