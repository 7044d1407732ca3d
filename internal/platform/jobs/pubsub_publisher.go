package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/harvestlink/api/internal/services"
)

// PubSubLifecyclePublisher publishes entity lifecycle events to a Pub/Sub topic.
type PubSubLifecyclePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubLifecyclePublisher constructs a Pub/Sub backed lifecycle event publisher.
func NewPubSubLifecyclePublisher(topic *pubsub.Topic) (*PubSubLifecyclePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub lifecycle publisher: topic is required")
	}
	return &PubSubLifecyclePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishLifecycleEvent enqueues a lifecycle event message on the configured topic.
func (p *PubSubLifecyclePublisher) PublishLifecycleEvent(ctx context.Context, message services.LifecycleEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub lifecycle publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal lifecycle event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", message.EventID)
	setAttr(attrs, "entityKind", string(message.EntityKind))
	setAttr(attrs, "entityId", message.EntityID)
	setAttr(attrs, "previousStatus", message.PreviousStatus)
	setAttr(attrs, "newStatus", message.NewStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish lifecycle event: %w", err)
	}
	return id, nil
}

// PubSubRefundPublisher hands refund processing off to the external payment
// worker via a Pub/Sub topic.
type PubSubRefundPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubRefundPublisher constructs a Pub/Sub backed refund job publisher.
func NewPubSubRefundPublisher(topic *pubsub.Topic) (*PubSubRefundPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub refund publisher: topic is required")
	}
	return &PubSubRefundPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishRefundJob enqueues a refund job message on the configured topic.
func (p *PubSubRefundPublisher) PublishRefundJob(ctx context.Context, message services.RefundJobMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub refund publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal refund job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "refundId", message.RefundID)
	setAttr(attrs, "entityKind", string(message.EntityKind))
	setAttr(attrs, "entityId", message.EntityID)
	setAttr(attrs, "requestedBy", message.RequestedBy)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish refund job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
