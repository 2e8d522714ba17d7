package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"clipsmith/src/fsutil"
	"clipsmith/src/infrastructure/log"
)

const (
	// MaxBytes is the platform's cover image size ceiling.
	MaxBytes = 2 * 1024 * 1024

	MaxWidth  = 1280
	MaxHeight = 720

	// FrameOffset is where the fallback frame is taken from the clip.
	FrameOffset = "00:00:02"
)

// qualityLadder is walked top-down until the encoded JPEG fits MaxBytes; the
// last rung is used regardless.
var qualityLadder = []int{85, 70}

// FrameExtractor pulls a single frame out of a video file.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, input, output, timecode string) error
}

// Resolver obtains a cover image for a published clip: caller-supplied URL
// bytes when given, otherwise a frame from the clipped artifact. Either
// source is normalized to a bounded JPEG.
type Resolver struct {
	frames FrameExtractor
	fs     fsutil.FileStore
	client *http.Client
}

func NewResolver(frames FrameExtractor, fs fsutil.FileStore, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Resolver{
		frames: frames,
		fs:     fs,
		client: client,
	}
}

// Resolve writes the normalized cover image to output. sourceURL takes
// precedence when non-empty; a failed fetch is an error, not a fallback to
// frame extraction.
func (r *Resolver) Resolve(ctx context.Context, sourceURL, clipPath, output string) error {
	if sourceURL != "" {
		data, err := r.fetch(ctx, sourceURL)
		if err != nil {
			return fmt.Errorf("failed to fetch thumbnail source: %w", err)
		}
		return r.normalize(data, output)
	}

	framePath := output + ".png"
	if err := r.frames.ExtractFrame(ctx, clipPath, framePath, FrameOffset); err != nil {
		return fmt.Errorf("failed to extract thumbnail frame: %w", err)
	}
	defer func() {
		if err := r.fs.Remove(framePath); err != nil {
			log.Debug("Failed to remove intermediate frame", "path", framePath)
		}
	}()

	data, err := r.fs.ReadFile(framePath)
	if err != nil {
		return fmt.Errorf("failed to read extracted frame: %w", err)
	}

	return r.normalize(data, output)
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// normalize fits the image inside MaxWidth x MaxHeight and re-encodes it at
// decreasing JPEG quality until it fits under MaxBytes.
func (r *Resolver) normalize(data []byte, output string) error {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode thumbnail image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxWidth || bounds.Dy() > MaxHeight {
		img = imaging.Fit(img, MaxWidth, MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	for i, quality := range qualityLadder {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("failed to encode thumbnail: %w", err)
		}
		if buf.Len() <= MaxBytes || i == len(qualityLadder)-1 {
			break
		}
	}

	return r.fs.WriteFile(output, buf.Bytes())
}
