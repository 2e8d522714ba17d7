package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"clipsmith/src/core/clipper"
)

// DefaultChunkSize is the resumable upload chunk size in bytes.
const DefaultChunkSize = 1024 * 1024

// Client uploads videos through the YouTube Data API. The underlying service
// is built lazily on first use so the server can boot without credentials on
// disk; jobs that need them fail individually instead.
type Client struct {
	credentialsFile string
	tokenFile       string
	chunkSize       int

	initOnce sync.Once
	svc      *yt.Service
	initErr  error
}

func NewClient(credentialsFile, tokenFile string, chunkSize int) *Client {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Client{
		credentialsFile: credentialsFile,
		tokenFile:       tokenFile,
		chunkSize:       chunkSize,
	}
}

func (c *Client) service(ctx context.Context) (*yt.Service, error) {
	c.initOnce.Do(func() {
		conf, err := LoadOAuthConfig(c.credentialsFile)
		if err != nil {
			c.initErr = err
			return
		}

		tok, err := TokenFromFile(c.tokenFile)
		if err != nil {
			c.initErr = fmt.Errorf("failed to load oauth token (run the auth command first): %w", err)
			return
		}

		// conf.Client refreshes the access token transparently when a
		// refresh token is present.
		svc, err := yt.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, tok)))
		if err != nil {
			c.initErr = fmt.Errorf("failed to create youtube service: %w", err)
			return
		}
		c.svc = svc
	})

	return c.svc, c.initErr
}

// Upload publishes the file with a resumable chunked upload and returns the
// assigned video ID. progress, when non-nil, receives the acknowledged
// percentage (0-100) after every chunk.
func (c *Client) Upload(ctx context.Context, file string, meta clipper.UploadMetadata, progress func(int)) (string, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return "", err
	}

	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open upload file: %w", err)
	}
	defer f.Close()

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			Tags:        meta.Tags,
			CategoryId:  meta.CategoryID,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           meta.PrivacyStatus,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f, googleapi.ChunkSize(c.chunkSize)).
		ProgressUpdater(func(current, total int64) {
			if progress != nil && total > 0 {
				progress(int(current * 100 / total))
			}
		})

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload failed: %w", err)
	}

	return resp.Id, nil
}

// SetThumbnail uploads a cover image for an already published video.
func (c *Client) SetThumbnail(ctx context.Context, videoID, file string) error {
	svc, err := c.service(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open thumbnail file: %w", err)
	}
	defer f.Close()

	_, err = svc.Thumbnails.Set(videoID).Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("thumbnail upload failed: %w", err)
	}

	return nil
}

// LoadOAuthConfig reads an installed-app client secret file.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}

	conf, err := google.ConfigFromJSON(b, yt.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}

	return conf, nil
}

// TokenFromFile loads a cached oauth token.
func TokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}

	return tok, nil
}

// SaveToken writes an oauth token next to the credentials for later runs.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(tok)
}
