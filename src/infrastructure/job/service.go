package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"clipsmith/src/infrastructure/log"
)

// TopicClipJobs is the pub/sub topic clip jobs are dispatched on.
const TopicClipJobs = "clip.jobs"

// Processor runs the pipeline for one job. Implementations must capture
// their own stage failures in the job record; a returned error only means
// the message itself could not be handled.
type Processor interface {
	Process(ctx context.Context, jobID string, payload json.RawMessage) error
}

type JobService struct {
	publisher message.Publisher
	repo      JobRepository
	processor Processor
}

// JobMessage is the wire form of a dispatched job.
type JobMessage struct {
	JobID   string          `json:"job_id"`
	Payload json.RawMessage `json:"payload"`
}

func NewJobService(publisher message.Publisher, repo JobRepository, processor Processor) *JobService {
	return &JobService{
		publisher: publisher,
		repo:      repo,
		processor: processor,
	}
}

// Submit creates a pending job record and publishes it for asynchronous
// processing. It returns the pending job immediately; the pipeline runs
// independently of the caller.
func (s *JobService) Submit(ctx context.Context, payload json.RawMessage) (*Job, error) {
	jobID := uuid.New().String()

	j, err := s.repo.Create(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	jobMsg := JobMessage{
		JobID:   jobID,
		Payload: payload,
	}

	msgPayload, err := json.Marshal(jobMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	if err := s.publisher.Publish(TopicClipJobs, msg); err != nil {
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	return j, nil
}

// ProcessJobMessage handles a dispatched job message from the queue.
func (s *JobService) ProcessJobMessage(msg *message.Message) error {
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Payload, &jobMsg); err != nil {
		return fmt.Errorf("failed to unmarshal job message: %w", err)
	}

	ctx := context.Background()

	if _, err := s.repo.Get(ctx, jobMsg.JobID); err != nil {
		if errors.Is(err, ErrNotFound) {
			// The record was deleted between submit and dispatch; there
			// is nothing left to report against.
			log.Info("Dropping job message without a record", "job_id", jobMsg.JobID)
			return nil
		}
		// Anything else is a store failure; let the router redeliver.
		return fmt.Errorf("failed to load job record %s: %w", jobMsg.JobID, err)
	}

	return s.processor.Process(ctx, jobMsg.JobID, jobMsg.Payload)
}
