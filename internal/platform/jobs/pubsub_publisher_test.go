package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/harvestlink/api/internal/domain"
	"github.com/harvestlink/api/internal/services"
)

func newTestClient(t *testing.T, srv *pstest.Server) *pubsub.Client {
	t.Helper()
	client, err := pubsub.NewClient(context.Background(), "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPubSubLifecyclePublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)

	topic, err := client.CreateTopic(ctx, "lifecycle-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubLifecyclePublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubLifecyclePublisher: %v", err)
	}

	occurredAt := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	msg := services.LifecycleEventMessage{
		EventID:        "evt_test",
		EntityKind:     domain.KindOrder,
		EntityID:       "ord_test",
		PreviousStatus: "pending",
		NewStatus:      "confirmed",
		ActorID:        "usr_seller",
		ActorRole:      "seller",
		OccurredAt:     occurredAt,
	}

	if _, err := publisher.PublishLifecycleEvent(ctx, msg); err != nil {
		t.Fatalf("PublishLifecycleEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.LifecycleEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.EventID != msg.EventID || payload.EntityID != msg.EntityID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["newStatus"]; attr != "confirmed" {
		t.Fatalf("expected newStatus attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["entityKind"]; attr != "order" {
		t.Fatalf("expected entityKind attribute, got %q", attr)
	}
}

func TestPubSubRefundPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client := newTestClient(t, srv)

	topic, err := client.CreateTopic(ctx, "refund-requests")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubRefundPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubRefundPublisher: %v", err)
	}

	msg := services.RefundJobMessage{
		RefundID:    "ref_test",
		EntityKind:  domain.KindBooking,
		EntityID:    "bkg_test",
		Amount:      4500,
		Reason:      "provider unavailable",
		RequestedBy: "usr_customer",
		QueuedAt:    time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishRefundJob(ctx, msg); err != nil {
		t.Fatalf("PublishRefundJob: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.RefundJobMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.RefundID != msg.RefundID || payload.Amount != 4500 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["entityId"]; attr != "bkg_test" {
		t.Fatalf("expected entityId attribute, got %q", attr)
	}
}

func TestNewPublishersRequireTopic(t *testing.T) {
	if _, err := NewPubSubLifecyclePublisher(nil); err == nil {
		t.Fatal("expected error for nil lifecycle topic")
	}
	if _, err := NewPubSubRefundPublisher(nil); err == nil {
		t.Fatal("expected error for nil refund topic")
	}
}
