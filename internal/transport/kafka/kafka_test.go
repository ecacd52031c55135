package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/louisbranch/orderflow/internal/domain/entity"
	"github.com/louisbranch/orderflow/internal/domain/event"
	"github.com/louisbranch/orderflow/internal/domain/order"
	apperrors "github.com/louisbranch/orderflow/internal/platform/errors"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	evt := event.Event{
		ID:        "evt-1",
		Type:      order.EventTypeCreated,
		CreatedAt: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
		Entity:    entity.Ref{Kind: entity.KindOrder, ID: "ord-1"},
		Annotations: map[string]string{
			event.AnnotationAccountID: "acct-1",
		},
	}

	payload, err := EncodeEvent(evt)
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	decoded, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent() error = %v", err)
	}
	if decoded.ID != evt.ID || decoded.Type != evt.Type || decoded.Entity != evt.Entity {
		t.Errorf("decoded = %+v, want %+v", decoded, evt)
	}
	if got := decoded.Annotation(event.AnnotationAccountID); got != "acct-1" {
		t.Errorf("account annotation = %q, want %q", got, "acct-1")
	}
	if !decoded.CreatedAt.Equal(evt.CreatedAt) {
		t.Errorf("created_at = %v, want %v", decoded.CreatedAt, evt.CreatedAt)
	}
}

func TestDecodeEventRejectsMalformedEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "not-json"},
		{name: "missing id", payload: `{"event_type":"order.created","entity_kind":"order","entity_id":"ord-1"}`},
		{name: "missing entity", payload: `{"event_id":"evt-1","event_type":"order.created"}`},
		{name: "missing type", payload: `{"event_id":"evt-1","entity_kind":"order","entity_id":"ord-1"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeEvent([]byte(tc.payload)); err == nil {
				t.Error("DecodeEvent() error = nil, want error")
			}
		})
	}
}

type fakeReader struct {
	messages  []kafkago.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(context.Context) (kafkago.Message, error) {
	if len(r.messages) == 0 {
		return kafkago.Message{}, context.Canceled
	}
	message := r.messages[0]
	r.messages = r.messages[1:]
	return message, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, message := range msgs {
		r.committed = append(r.committed, message.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeProcessor struct {
	errs map[string]error
	seen []string
}

func (p *fakeProcessor) Process(_ context.Context, evt event.Event) (entity.Aggregate, error) {
	p.seen = append(p.seen, evt.ID)
	return nil, p.errs[evt.ID]
}

func encodedMessage(t *testing.T, eventID string, offset int64) kafkago.Message {
	t.Helper()

	payload, err := EncodeEvent(event.Event{
		ID:     eventID,
		Type:   order.EventTypeCreated,
		Entity: entity.Ref{Kind: entity.KindOrder, ID: "ord-1"},
	})
	if err != nil {
		t.Fatalf("EncodeEvent() error = %v", err)
	}
	return kafkago.Message{Value: payload, Offset: offset}
}

func TestRunCommitsProcessedAndFinalFailures(t *testing.T) {
	reader := &fakeReader{messages: []kafkago.Message{
		encodedMessage(t, "evt-ok", 1),
		{Value: []byte("not-json"), Offset: 2},
		encodedMessage(t, "evt-final", 3),
	}}
	processor := &fakeProcessor{errs: map[string]error{
		"evt-final": apperrors.New(apperrors.CodeNoApplicableTransition, "no transition"),
	}}
	consumer := &Consumer{reader: reader, processor: processor}

	if err := consumer.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantSeen := []string{"evt-ok", "evt-final"}
	if len(processor.seen) != len(wantSeen) {
		t.Fatalf("processed = %v, want %v", processor.seen, wantSeen)
	}
	wantCommitted := []int64{1, 2, 3}
	if len(reader.committed) != len(wantCommitted) {
		t.Fatalf("committed = %v, want %v", reader.committed, wantCommitted)
	}
	for i, offset := range wantCommitted {
		if reader.committed[i] != offset {
			t.Errorf("committed[%d] = %d, want %d", i, reader.committed[i], offset)
		}
	}
}

func TestRunLeavesTransientFailuresUncommitted(t *testing.T) {
	reader := &fakeReader{messages: []kafkago.Message{
		encodedMessage(t, "evt-transient", 7),
	}}
	processor := &fakeProcessor{errs: map[string]error{
		"evt-transient": errors.New("db unavailable"),
	}}
	consumer := &Consumer{reader: reader, processor: processor}

	if err := consumer.Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want transient failure")
	}
	if len(reader.committed) != 0 {
		t.Fatalf("committed = %v, want none", reader.committed)
	}
}
