package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"clipsmith/src/core/clipper"
	"clipsmith/src/core/webhook"
	"clipsmith/src/infrastructure/job"
)

var (
	submitServer       string
	submitVideoURL     string
	submitStart        string
	submitEnd          string
	submitTitle        string
	submitDescription  string
	submitTags         []string
	submitCategory     string
	submitPrivacy      string
	submitThumbnailURL string
	submitWebhookURL   string
	submitPollInterval time.Duration
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a clip job to a running server and watch its progress",
	RunE:  runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitServer, "server", "http://localhost:8080", "base URL of the clip server")
	submitCmd.Flags().StringVar(&submitVideoURL, "url", "", "source video URL")
	submitCmd.Flags().StringVar(&submitStart, "start", "", "clip start timecode (HH:MM:SS)")
	submitCmd.Flags().StringVar(&submitEnd, "end", "", "clip end timecode (HH:MM:SS)")
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "published video title")
	submitCmd.Flags().StringVar(&submitDescription, "description", "", "published video description")
	submitCmd.Flags().StringSliceVar(&submitTags, "tags", nil, "published video tags")
	submitCmd.Flags().StringVar(&submitCategory, "category", "", "published video category id")
	submitCmd.Flags().StringVar(&submitPrivacy, "privacy", "", "privacy status (public, private, unlisted)")
	submitCmd.Flags().StringVar(&submitThumbnailURL, "thumbnail-url", "", "optional thumbnail source URL")
	submitCmd.Flags().StringVar(&submitWebhookURL, "webhook-url", "", "optional webhook endpoint")
	submitCmd.Flags().DurationVar(&submitPollInterval, "poll-interval", 2*time.Second, "status poll interval")

	submitCmd.MarkFlagRequired("url")
	submitCmd.MarkFlagRequired("start")
	submitCmd.MarkFlagRequired("end")
}

var percentPattern = regexp.MustCompile(`(\d+)%`)

func runSubmit(cmd *cobra.Command, args []string) error {
	req := clipper.ClipRequest{
		VideoURL:      submitVideoURL,
		StartTime:     submitStart,
		EndTime:       submitEnd,
		Title:         submitTitle,
		Description:   submitDescription,
		Tags:          submitTags,
		CategoryID:    submitCategory,
		PrivacyStatus: submitPrivacy,
		ThumbnailURL:  submitThumbnailURL,
	}
	if submitWebhookURL != "" {
		req.Webhook = &webhook.Config{URL: submitWebhookURL}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := http.Post(submitServer+"/api/clip", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to submit clip job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("server rejected submission with status %d", resp.StatusCode)
	}

	var submitted job.Job
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		return fmt.Errorf("failed to decode submission response: %w", err)
	}

	fmt.Printf("Job %s submitted\n", submitted.JobID)

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(string(submitted.Status)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
	)

	for {
		time.Sleep(submitPollInterval)

		j, err := fetchJob(submitServer, submitted.JobID)
		if err != nil {
			return err
		}

		bar.Describe(fmt.Sprintf("[%s] %s", j.Status, j.Progress))
		if m := percentPattern.FindStringSubmatch(j.Progress); m != nil {
			var pct int
			fmt.Sscanf(m[1], "%d", &pct)
			bar.Set(pct)
		}

		if j.Status.Terminal() {
			bar.Finish()
			fmt.Println()
			if j.Status == job.JobStatusCompleted {
				fmt.Printf("Completed: %s\n", j.VideoURL)
				return nil
			}
			return fmt.Errorf("job failed: %s", j.Error)
		}
	}
}

func fetchJob(server, jobID string) (*job.Job, error) {
	resp, err := http.Get(server + "/api/clip/job/" + jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request returned %d", resp.StatusCode)
	}

	var j job.Job
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}

	return &j, nil
}
