package clipper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"clipsmith/src/core/webhook"
	"clipsmith/src/fsutil"
	"clipsmith/src/infrastructure/job"
)

type recordingRepo struct {
	*job.MemoryJobRepository

	mu       sync.Mutex
	progress []string
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{MemoryJobRepository: job.NewMemoryJobRepository()}
}

func (r *recordingRepo) Update(ctx context.Context, jobID string, upd job.Update) (*job.Job, error) {
	if upd.Progress != nil {
		r.mu.Lock()
		r.progress = append(r.progress, *upd.Progress)
		r.mu.Unlock()
	}
	return r.MemoryJobRepository.Update(ctx, jobID, upd)
}

type fakeDownloader struct {
	attempts int
	failAll  bool
	called   bool
}

func (d *fakeDownloader) Download(ctx context.Context, url, output string, progress func(string)) error {
	d.called = true
	for i := 1; i <= d.attempts; i++ {
		if progress != nil {
			progress(fmt.Sprintf("Trying download strategy %d...", i))
		}
	}
	if d.failAll {
		return errors.New("strategy 3 (desktop) failed: yt-dlp failed: HTTP Error 403")
	}
	return os.WriteFile(output, []byte("source media"), 0644)
}

type fakeTrimmer struct {
	err    error
	called bool
}

func (t *fakeTrimmer) Trim(ctx context.Context, input, output, start, end string) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return os.WriteFile(output, []byte("trimmed media"), 0644)
}

type fakePublisher struct {
	uploadErr    error
	thumbErr     error
	uploadCalled bool
	thumbCalled  bool
	thumbFile    string
}

func (p *fakePublisher) Upload(ctx context.Context, file string, meta UploadMetadata, progress func(int)) (string, error) {
	p.uploadCalled = true
	if p.uploadErr != nil {
		return "", p.uploadErr
	}
	for _, pct := range []int{25, 50, 100} {
		if progress != nil {
			progress(pct)
		}
	}
	return "vid-123", nil
}

func (p *fakePublisher) SetThumbnail(ctx context.Context, videoID, file string) error {
	p.thumbCalled = true
	p.thumbFile = file
	return p.thumbErr
}

type fakeThumbnails struct {
	err    error
	called bool
}

func (t *fakeThumbnails) Resolve(ctx context.Context, sourceURL, clipPath, output string) error {
	t.called = true
	if t.err != nil {
		return t.err
	}
	return os.WriteFile(output, []byte("jpeg bytes"), 0644)
}

type fakeWebhooks struct {
	mu       sync.Mutex
	payloads []webhook.Payload
	result   bool
}

func (w *fakeWebhooks) Send(ctx context.Context, cfg webhook.Config, payload webhook.Payload) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !cfg.Subscribed(payload.Event) {
		return false
	}
	w.payloads = append(w.payloads, payload)
	return w.result
}

type fixture struct {
	repo       *recordingRepo
	downloader *fakeDownloader
	trimmer    *fakeTrimmer
	publisher  *fakePublisher
	thumbnails *fakeThumbnails
	webhooks   *fakeWebhooks
	service    *Service
	tempDir    string
	uploadsDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:       newRecordingRepo(),
		downloader: &fakeDownloader{attempts: 1},
		trimmer:    &fakeTrimmer{},
		publisher:  &fakePublisher{},
		thumbnails: &fakeThumbnails{},
		webhooks:   &fakeWebhooks{result: true},
		tempDir:    filepath.Join(t.TempDir(), "temp"),
	}
	f.uploadsDir = filepath.Join(filepath.Dir(f.tempDir), "uploads")

	svc, err := NewService(
		Config{TempDir: f.tempDir, UploadsDir: f.uploadsDir},
		f.repo,
		f.downloader,
		f.trimmer,
		f.publisher,
		f.thumbnails,
		f.webhooks,
		fsutil.NewLocalFileStore(),
	)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	f.service = svc
	return f
}

func (f *fixture) submit(t *testing.T, req ClipRequest) *job.Job {
	t.Helper()
	ctx := context.Background()

	created, err := f.repo.Create(ctx, "job-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := f.service.Process(ctx, created.JobID, payload); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	got, err := f.repo.Get(ctx, created.JobID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return got
}

func baseRequest() ClipRequest {
	return ClipRequest{
		VideoURL:  "https://example.com/watch?v=src",
		StartTime: "00:00:05",
		EndTime:   "00:00:10",
		Webhook:   &webhook.Config{URL: "https://hooks.example.com/clip"},
	}
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)
	got := f.submit(t, baseRequest())

	if got.Status != job.JobStatusCompleted {
		t.Fatalf("status = %v, want completed (error=%q)", got.Status, got.Error)
	}
	if got.VideoID != "vid-123" {
		t.Errorf("video_id = %q, want vid-123", got.VideoID)
	}
	if got.VideoURL != "https://youtube.com/watch?v=vid-123" {
		t.Errorf("video_url = %q", got.VideoURL)
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set on terminal job")
	}
	if got.Error != "" {
		t.Errorf("error = %q, want empty", got.Error)
	}

	if len(f.webhooks.payloads) != 1 {
		t.Fatalf("webhook deliveries = %d, want 1", len(f.webhooks.payloads))
	}
	p := f.webhooks.payloads[0]
	if p.Event != "completed" || p.VideoID != "vid-123" {
		t.Errorf("webhook payload = %+v", p)
	}

	// Working files are released on success.
	for _, path := range []string{
		filepath.Join(f.tempDir, "job-1_original.mp4"),
		filepath.Join(f.uploadsDir, "job-1_clipped.mp4"),
		filepath.Join(f.tempDir, "job-1_thumb.jpg"),
	} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("working file %s survived cleanup", path)
		}
	}
}

func TestProcessDownloadFailureHaltsPipeline(t *testing.T) {
	f := newFixture(t)
	f.downloader.attempts = 3
	f.downloader.failAll = true

	got := f.submit(t, baseRequest())

	if got.Status != job.JobStatusFailed {
		t.Fatalf("status = %v, want failed", got.Status)
	}
	if got.Error == "" {
		t.Error("error empty on failed job")
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set on failed job")
	}
	if f.trimmer.called || f.publisher.uploadCalled {
		t.Error("later stages ran after download failure")
	}

	// Strategy attempts surface in order through progress updates.
	var attempts []string
	for _, p := range f.repo.progress {
		if len(p) > 6 && p[:6] == "Trying" {
			attempts = append(attempts, p)
		}
	}
	want := []string{
		"Trying download strategy 1...",
		"Trying download strategy 2...",
		"Trying download strategy 3...",
	}
	if len(attempts) != len(want) {
		t.Fatalf("attempt progress = %v, want %v", attempts, want)
	}
	for i := range want {
		if attempts[i] != want[i] {
			t.Errorf("attempt[%d] = %q, want %q", i, attempts[i], want[i])
		}
	}

	if len(f.webhooks.payloads) != 1 || f.webhooks.payloads[0].Event != "failed" {
		t.Errorf("webhook payloads = %+v, want one failed event", f.webhooks.payloads)
	}
}

func TestProcessTrimFailure(t *testing.T) {
	f := newFixture(t)
	f.trimmer.err = errors.New("ffmpeg failed: exit status 1: Invalid duration specification")

	req := baseRequest()
	req.StartTime = "00:00:10"
	req.EndTime = "00:00:05"
	got := f.submit(t, req)

	if got.Status != job.JobStatusFailed {
		t.Fatalf("status = %v, want failed", got.Status)
	}
	if got.Error == "" {
		t.Error("error empty on trim failure")
	}
	if f.publisher.uploadCalled {
		t.Error("upload ran after trim failure")
	}
}

func TestProcessUploadFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.uploadErr = errors.New("youtube upload failed: quotaExceeded")

	got := f.submit(t, baseRequest())

	if got.Status != job.JobStatusFailed {
		t.Fatalf("status = %v, want failed", got.Status)
	}
	if got.VideoID != "" || got.VideoURL != "" {
		t.Errorf("video fields set on failed job: %q %q", got.VideoID, got.VideoURL)
	}
}

func TestProcessThumbnailFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.thumbnails.err = errors.New("failed to fetch thumbnail source: unexpected status 404")

	req := baseRequest()
	req.ThumbnailURL = "https://example.com/missing.jpg"
	got := f.submit(t, req)

	if got.Status != job.JobStatusCompleted {
		t.Fatalf("status = %v, want completed despite thumbnail failure", got.Status)
	}
	if got.VideoID != "vid-123" {
		t.Errorf("video_id = %q", got.VideoID)
	}
	if f.publisher.thumbCalled {
		t.Error("SetThumbnail called after resolver failure")
	}
}

func TestProcessSetThumbnailFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.publisher.thumbErr = errors.New("thumbnail upload failed: forbidden")

	got := f.submit(t, baseRequest())

	if got.Status != job.JobStatusCompleted {
		t.Fatalf("status = %v, want completed", got.Status)
	}
	if !f.publisher.thumbCalled {
		t.Error("SetThumbnail never attempted")
	}
}

func TestWebhookFilteringByEvent(t *testing.T) {
	tests := []struct {
		name       string
		events     []string
		fail       bool
		wantEvents []string
	}{
		{"failed-only ignores completion", []string{"failed"}, false, nil},
		{"failed-only gets failure", []string{"failed"}, true, []string{"failed"}},
		{"default gets completion", nil, false, []string{"completed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.fail {
				f.publisher.uploadErr = errors.New("rejected")
			}

			req := baseRequest()
			req.Webhook = &webhook.Config{URL: "https://hooks.example.com/clip", Events: tt.events}
			f.submit(t, req)

			var gotEvents []string
			for _, p := range f.webhooks.payloads {
				gotEvents = append(gotEvents, p.Event)
			}
			if len(gotEvents) != len(tt.wantEvents) {
				t.Fatalf("events = %v, want %v", gotEvents, tt.wantEvents)
			}
			for i := range tt.wantEvents {
				if gotEvents[i] != tt.wantEvents[i] {
					t.Errorf("events = %v, want %v", gotEvents, tt.wantEvents)
				}
			}
		})
	}
}

func TestWebhookDeliveryFailureDoesNotAffectJob(t *testing.T) {
	f := newFixture(t)
	f.webhooks.result = false

	got := f.submit(t, baseRequest())

	if got.Status != job.JobStatusCompleted {
		t.Errorf("status = %v, want completed despite webhook failure", got.Status)
	}
}

func TestProcessWithoutWebhookConfig(t *testing.T) {
	f := newFixture(t)

	req := baseRequest()
	req.Webhook = nil
	got := f.submit(t, req)

	if got.Status != job.JobStatusCompleted {
		t.Fatalf("status = %v, want completed", got.Status)
	}
	if len(f.webhooks.payloads) != 0 {
		t.Errorf("webhook deliveries = %d, want 0", len(f.webhooks.payloads))
	}
}

func TestProcessCleansUpAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.publisher.uploadErr = errors.New("rejected")

	f.submit(t, baseRequest())

	// Download and trim outputs existed; cleanup must remove them and
	// tolerate the thumbnail never being created.
	for _, path := range []string{
		filepath.Join(f.tempDir, "job-1_original.mp4"),
		filepath.Join(f.uploadsDir, "job-1_clipped.mp4"),
	} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("working file %s survived cleanup", path)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	req := ClipRequest{
		VideoURL:  "https://example.com/v",
		StartTime: "00:00:01",
		EndTime:   "00:00:02",
	}
	req.ApplyDefaults()

	if req.Title != "Clipped Video" {
		t.Errorf("title = %q", req.Title)
	}
	if req.Description != "This is a clipped segment." {
		t.Errorf("description = %q", req.Description)
	}
	if len(req.Tags) != 1 || req.Tags[0] != "clip" {
		t.Errorf("tags = %v", req.Tags)
	}
	if req.CategoryID != "22" {
		t.Errorf("category_id = %q", req.CategoryID)
	}
	if req.PrivacyStatus != "unlisted" {
		t.Errorf("privacy_status = %q", req.PrivacyStatus)
	}

	// Caller-supplied values survive.
	custom := ClipRequest{Title: "My clip", PrivacyStatus: "public"}
	custom.ApplyDefaults()
	if custom.Title != "My clip" || custom.PrivacyStatus != "public" {
		t.Errorf("defaults overwrote caller values: %+v", custom)
	}
}
