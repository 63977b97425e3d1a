package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nimburion/crudkit/pkg/eventbus"
	"github.com/nimburion/crudkit/pkg/gateway/memory"
	"github.com/nimburion/crudkit/pkg/observability/logger"
	"github.com/nimburion/crudkit/pkg/resource"
)

type note struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (n *note) GetID() int64   { return n.ID }
func (n *note) SetID(id int64) { n.ID = id }

type fakeProducer struct {
	mu     sync.Mutex
	topics []string
	sent   []*eventbus.Message
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, topic string, m *eventbus.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.sent = append(p.sent, m)
	return nil
}

func (p *fakeProducer) PublishBatch(ctx context.Context, topic string, ms []*eventbus.Message) error {
	for _, m := range ms {
		if err := p.Publish(ctx, topic, m); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakeProducer) HealthCheck(context.Context) error { return nil }
func (p *fakeProducer) Close() error                      { return nil }

type recorder struct{ outcomes []string }

func (r *recorder) RecordEventPublished(_, eventType, outcome string) {
	r.outcomes = append(r.outcomes, eventType+"/"+outcome)
}

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newOrchestrator(t *testing.T, producer eventbus.Producer, strict bool) (*resource.Orchestrator[note, int64], *recorder) {
	t.Helper()
	gw, err := memory.New[note, int64](memory.WithIDGenerator[note, int64](memory.Sequence(0)))
	if err != nil {
		t.Fatalf("memory.New() error = %v", err)
	}
	rec := &recorder{}
	hooks, err := New[note, int64](Config[note, int64]{
		Resource: "notes",
		Topic:    "crudkit.events",
		Producer: producer,
		System:   "kafka",
		Metrics:  rec,
		Strict:   strict,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	o, err := resource.NewOrchestrator[note, int64](gw, resource.Config[note, int64]{Name: "notes", Hooks: hooks})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return o, rec
}

func decode(t *testing.T, m *eventbus.Message) map[string]any {
	t.Helper()
	var ev map[string]any
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	return ev
}

func TestNew_Validation(t *testing.T) {
	p := &fakeProducer{}
	tests := []struct {
		name string
		cfg  Config[note, int64]
	}{
		{name: "no producer", cfg: Config[note, int64]{Resource: "notes", Topic: "t"}},
		{name: "no resource", cfg: Config[note, int64]{Producer: p, Topic: "t"}},
		{name: "no topic", cfg: Config[note, int64]{Producer: p, Resource: "notes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New[note, int64](tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	type plain struct{ ID int64 }
	if _, err := New[plain, int64](Config[plain, int64]{Producer: p, Resource: "r", Topic: "t"}); err == nil {
		t.Fatal("expected error for entity without identifier accessor")
	}
}

func TestPublishingHooks_Lifecycle(t *testing.T) {
	p := &fakeProducer{}
	o, rec := newOrchestrator(t, p, false)
	ctx := logger.ContextWithRequestID(context.Background(), "req-1")

	if _, err := o.Create(ctx, &note{Title: "draft"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := o.Update(ctx, 1, &note{Title: "final"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := o.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(p.sent) != 3 {
		t.Fatalf("published %d events, want 3", len(p.sent))
	}
	wantTypes := []string{TypeCreated, TypeUpdated, TypeDeleted}
	for i, m := range p.sent {
		if p.topics[i] != "crudkit.events" {
			t.Errorf("event %d topic = %q", i, p.topics[i])
		}
		if m.Key != "notes:1" || m.ContentType != "application/json" || !m.Timestamp.Equal(fixedNow) {
			t.Errorf("event %d metadata = %+v", i, m)
		}
		if m.Headers["event_type"] != wantTypes[i] || m.Headers["request_id"] != "req-1" {
			t.Errorf("event %d headers = %v", i, m.Headers)
		}
		ev := decode(t, m)
		if ev["type"] != wantTypes[i] || ev["resource"] != "notes" || ev["id"] != m.ID {
			t.Errorf("event %d envelope = %v", i, ev)
		}
	}

	updated := decode(t, p.sent[1])
	if updated["entity"].(map[string]any)["title"] != "final" {
		t.Errorf("updated entity = %v", updated["entity"])
	}
	if updated["previous"].(map[string]any)["title"] != "draft" {
		t.Errorf("previous entity = %v", updated["previous"])
	}
	if _, ok := decode(t, p.sent[0])["previous"]; ok {
		t.Error("created event must not carry a previous entity")
	}
	if p.sent[0].ID == p.sent[1].ID {
		t.Error("event ids must be unique")
	}
	if len(rec.outcomes) != 3 || rec.outcomes[0] != "created/success" {
		t.Errorf("recorded %v", rec.outcomes)
	}
}

func TestPublishingHooks_FailureIsLoggedNotReturned(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker down")}
	o, rec := newOrchestrator(t, p, false)

	result, err := o.Create(context.Background(), &note{Title: "a"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.(*note).ID != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(rec.outcomes) != 1 || rec.outcomes[0] != "created/error" {
		t.Errorf("recorded %v", rec.outcomes)
	}
}

func TestPublishingHooks_StrictReturnsFailure(t *testing.T) {
	boom := errors.New("broker down")
	p := &fakeProducer{err: boom}
	o, _ := newOrchestrator(t, p, true)

	_, err := o.Create(context.Background(), &note{Title: "a"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected broker error, got %v", err)
	}
}

func TestPublishingHooks_ProtobufSerializer(t *testing.T) {
	p := &fakeProducer{}
	hooks, err := New[note, int64](Config[note, int64]{
		Resource:   "notes",
		Topic:      "t",
		Producer:   p,
		Serializer: eventbus.NewProtobufSerializer(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := hooks.AfterCreate(context.Background(), &note{ID: 9, Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if p.sent[0].ContentType != "application/protobuf" {
		t.Fatalf("content type = %q", p.sent[0].ContentType)
	}
	var ev Event
	if err := eventbus.NewProtobufSerializer().Deserialize(p.sent[0].Value, &ev); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if ev.Type != TypeCreated || ev.Resource != "notes" {
		t.Errorf("event = %+v", ev)
	}
}

func TestPublishingHooks_NilEntitySkipped(t *testing.T) {
	p := &fakeProducer{}
	hooks, err := New[note, int64](Config[note, int64]{Resource: "notes", Topic: "t", Producer: p})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hooks.AfterDelete(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(p.sent) != 0 {
		t.Errorf("published %d events for nil entity", len(p.sent))
	}
}
