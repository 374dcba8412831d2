package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

// DefaultVerdictTopic is the topic verdict events are written to.
const DefaultVerdictTopic = "judge.verdict"

// VerdictEventPublisher publishes one event per graded submission.
type VerdictEventPublisher interface {
	PublishVerdict(ctx context.Context, event model.VerdictEvent) error
}

// MQVerdictEventPublisher publishes verdict events to a message queue.
type MQVerdictEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQVerdictEventPublisher creates a publisher. An empty topic uses DefaultVerdictTopic.
func NewMQVerdictEventPublisher(producer mq.Producer, topic string) *MQVerdictEventPublisher {
	if topic == "" {
		topic = DefaultVerdictTopic
	}
	return &MQVerdictEventPublisher{producer: producer, topic: topic}
}

// PublishVerdict publishes event keyed by its job id.
func (p *MQVerdictEventPublisher) PublishVerdict(ctx context.Context, event model.VerdictEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("verdict publisher is not configured")
	}
	if event.JobID == "" {
		return appErr.ValidationError("job_id", "required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal verdict event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = event.JobID
	message.SetHeader("status", string(event.Status))
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish verdict event failed")
	}
	return nil
}

// NoopVerdictEventPublisher drops every event.
type NoopVerdictEventPublisher struct{}

// PublishVerdict does nothing.
func (NoopVerdictEventPublisher) PublishVerdict(context.Context, model.VerdictEvent) error {
	return nil
}
