package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"clipsmith/src/fsutil"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 4 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

type fakeFrames struct {
	data   []byte
	err    error
	called bool
}

func (f *fakeFrames) ExtractFrame(ctx context.Context, input, output, timecode string) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(output, f.data, 0644)
}

func TestResolveFromSourceURL(t *testing.T) {
	data := testPNG(t, 1920, 1080)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer srv.Close()

	frames := &fakeFrames{}
	r := NewResolver(frames, fsutil.NewLocalFileStore(), srv.Client())

	out := filepath.Join(t.TempDir(), "thumb.jpg")
	if err := r.Resolve(context.Background(), srv.URL, "unused.mp4", out); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if frames.called {
		t.Error("frame extraction ran despite source URL")
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if len(raw) > MaxBytes {
		t.Errorf("output size = %d, want <= %d", len(raw), MaxBytes)
	}

	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() > MaxWidth || b.Dy() > MaxHeight {
		t.Errorf("output bounds = %dx%d, want within %dx%d", b.Dx(), b.Dy(), MaxWidth, MaxHeight)
	}
}

func TestResolveSourceFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	frames := &fakeFrames{}
	r := NewResolver(frames, fsutil.NewLocalFileStore(), srv.Client())

	out := filepath.Join(t.TempDir(), "thumb.jpg")
	err := r.Resolve(context.Background(), srv.URL, "clip.mp4", out)
	if err == nil {
		t.Fatal("Resolve() error = nil, want fetch failure")
	}
	// A supplied URL that fails is an error, not a fallback to extraction.
	if frames.called {
		t.Error("frame extraction ran after source fetch failure")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("output written despite failure")
	}
}

func TestResolveFallsBackToFrame(t *testing.T) {
	frames := &fakeFrames{data: testPNG(t, 640, 360)}
	r := NewResolver(frames, fsutil.NewLocalFileStore(), nil)

	dir := t.TempDir()
	out := filepath.Join(dir, "thumb.jpg")
	if err := r.Resolve(context.Background(), "", "clip.mp4", out); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !frames.called {
		t.Fatal("frame extraction never ran")
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	// The intermediate frame is removed.
	if _, err := os.Stat(out + ".png"); !os.IsNotExist(err) {
		t.Error("intermediate frame survived")
	}
}

func TestResolveFrameExtractionFailure(t *testing.T) {
	frames := &fakeFrames{err: errors.New("ffmpeg failed: no video stream")}
	r := NewResolver(frames, fsutil.NewLocalFileStore(), nil)

	out := filepath.Join(t.TempDir(), "thumb.jpg")
	if err := r.Resolve(context.Background(), "", "clip.mp4", out); err == nil {
		t.Fatal("Resolve() error = nil, want extraction failure")
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	r := NewResolver(&fakeFrames{}, fsutil.NewLocalFileStore(), nil)

	out := filepath.Join(t.TempDir(), "thumb.jpg")
	if err := r.normalize([]byte("not an image"), out); err == nil {
		t.Fatal("normalize() error = nil, want decode failure")
	}
}

func TestNormalizeKeepsSmallImageDimensions(t *testing.T) {
	r := NewResolver(&fakeFrames{}, fsutil.NewLocalFileStore(), nil)

	out := filepath.Join(t.TempDir(), "thumb.jpg")
	if err := r.normalize(testPNG(t, 320, 180), out); err != nil {
		t.Fatalf("normalize() error = %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not a JPEG: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 320 || b.Dy() != 180 {
		t.Errorf("small image was resized to %dx%d", b.Dx(), b.Dy())
	}
}
