package ytdlp

import (
	"context"
	"fmt"

	"clipsmith/src/infrastructure/execx"
	"clipsmith/src/infrastructure/log"
)

// formatSelector prefers a single mp4 but falls back to the best muxed stream.
const formatSelector = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

// Strategy is one configured download attempt. Strategies differ by client
// identity and request headers to get past platform-side bot detection; they
// are tried in order and the first clean exit wins.
type Strategy struct {
	Name string
	Args []string
}

// DefaultStrategies returns the fallback order: the Android player client
// tends to be throttled least, the embedded TV client is often unrestricted,
// and a plain desktop identity is the last resort.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: "android client",
			Args: []string{
				"--extractor-args", "youtube:player_client=android",
				"--user-agent", "Mozilla/5.0 (Linux; Android 10; SM-G973F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
				"--referer", "https://www.youtube.com/",
				"--add-header", "Accept-Language:en-US,en;q=0.9",
			},
		},
		{
			Name: "tv embedded client",
			Args: []string{
				"--extractor-args", "youtube:player_client=tv_embedded",
				"--user-agent", "Mozilla/5.0 (Linux; Tizen 2.4.0) AppleWebKit/538.1 (KHTML, like Gecko) Version/2.4.0 TV Safari/538.1",
			},
		},
		{
			Name: "desktop",
			Args: []string{
				"--user-agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			},
		},
	}
}

// Downloader fetches source media with the local yt-dlp binary.
type Downloader struct {
	binary     string
	strategies []Strategy
	runner     execx.Runner
}

func NewDownloader(binary string, strategies []Strategy, runner execx.Runner) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Downloader{
		binary:     binary,
		strategies: strategies,
		runner:     runner,
	}
}

// Download tries each strategy in order and writes the media to output.
// progress, when non-nil, receives a message per attempt so operators can see
// which configuration is in flight. When every strategy fails, the returned
// error carries the last strategy's diagnostic.
func (d *Downloader) Download(ctx context.Context, url, output string, progress func(string)) error {
	var lastErr error

	for i, strategy := range d.strategies {
		if progress != nil {
			progress(fmt.Sprintf("Trying download strategy %d...", i+1))
		}

		args := []string{
			"-f", formatSelector,
			"-o", output,
			"--no-warnings",
			"--no-check-certificate",
		}
		args = append(args, strategy.Args...)
		args = append(args, url)

		if err := d.runner.Run(ctx, d.binary, args...); err != nil {
			lastErr = fmt.Errorf("strategy %d (%s) failed: %w", i+1, strategy.Name, err)
			log.Info("Download strategy failed, trying next",
				"strategy", i+1, "name", strategy.Name, "error", err.Error())
			continue
		}

		log.Info("Download succeeded", "strategy", i+1, "name", strategy.Name)
		return nil
	}

	return fmt.Errorf("all download strategies failed: %w", lastErr)
}
