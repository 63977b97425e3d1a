package resource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nimburion/crudkit/pkg/query"
)

type widget struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

func (w *widget) GetID() int64   { return w.ID }
func (w *widget) SetID(id int64) { w.ID = id }

// fakeGateway keeps widgets in memory and records every call it receives.
type fakeGateway struct {
	mu     sync.Mutex
	items  map[int64]widget
	nextID int64
	calls  []string
	plans  []query.Plan

	readErr error
}

func newFakeGateway(items ...widget) *fakeGateway {
	g := &fakeGateway{items: map[int64]widget{}}
	for _, item := range items {
		g.items[item.ID] = item
		if item.ID > g.nextID {
			g.nextID = item.ID
		}
	}
	return g
}

func (g *fakeGateway) record(call string) {
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) Read(_ context.Context, plan query.Plan) (Page[widget], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Read")
	g.plans = append(g.plans, plan)
	if g.readErr != nil {
		return Page[widget]{}, g.readErr
	}
	ids := make([]int64, 0, len(g.items))
	for id := range g.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	items := make([]widget, 0, len(ids))
	for _, id := range ids {
		items = append(items, g.items[id])
	}
	return Page[widget]{Items: items, TotalCount: int64(len(items)), PageNo: plan.PageNo, PageSize: plan.PageSize}, nil
}

func (g *fakeGateway) ReadOne(_ context.Context, id int64) (*widget, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("ReadOne")
	if g.readErr != nil {
		return nil, g.readErr
	}
	item, ok := g.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (g *fakeGateway) Create(_ context.Context, entity *widget) (*widget, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Create")
	g.nextID++
	stored := *entity
	stored.ID = g.nextID
	g.items[stored.ID] = stored
	return &stored, nil
}

func (g *fakeGateway) Update(_ context.Context, entity *widget) (*widget, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Update")
	stored := *entity
	g.items[stored.ID] = stored
	return &stored, nil
}

func (g *fakeGateway) Delete(_ context.Context, entity *widget) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record("Delete")
	delete(g.items, entity.ID)
	return nil
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// recordingHooks logs the name of every hook that fires.
type recordingHooks struct {
	DefaultHooks[widget, int64]
	calls []string
}

func (h *recordingHooks) BeforeCreate(ctx context.Context, item *widget) (*widget, error) {
	h.calls = append(h.calls, "BeforeCreate")
	return item, nil
}

func (h *recordingHooks) BeforeReadOne(context.Context, int64) error {
	h.calls = append(h.calls, "BeforeReadOne")
	return nil
}

func (h *recordingHooks) BeforeReadMany(_ context.Context, plan query.Plan) (query.Plan, error) {
	h.calls = append(h.calls, "BeforeReadMany")
	return plan, nil
}

func (h *recordingHooks) BeforeUpdate(_ context.Context, _ int64, item *widget) (*widget, error) {
	h.calls = append(h.calls, "BeforeUpdate")
	return item, nil
}

func (h *recordingHooks) BeforeDelete(context.Context, int64) error {
	h.calls = append(h.calls, "BeforeDelete")
	return nil
}

func (h *recordingHooks) AfterCreate(_ context.Context, item *widget) (any, error) {
	h.calls = append(h.calls, "AfterCreate")
	return item, nil
}

func (h *recordingHooks) AfterReadOne(_ context.Context, item *widget) (any, error) {
	h.calls = append(h.calls, "AfterReadOne")
	return item, nil
}

func (h *recordingHooks) AfterReadMany(_ context.Context, page Page[widget]) (Page[widget], error) {
	h.calls = append(h.calls, "AfterReadMany")
	return page, nil
}

func (h *recordingHooks) AfterUpdate(_ context.Context, _, new *widget) (any, error) {
	h.calls = append(h.calls, "AfterUpdate")
	return new, nil
}

func (h *recordingHooks) AfterDelete(_ context.Context, item *widget) (any, error) {
	h.calls = append(h.calls, "AfterDelete")
	return item, nil
}

type observation struct {
	resource  string
	operation string
	outcome   string
}

type fakeRecorder struct {
	mu           sync.Mutex
	observations []observation
}

func (r *fakeRecorder) ObserveOperation(resource, operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, observation{resource, operation, outcome})
}

func (r *fakeRecorder) last() observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.observations) == 0 {
		return observation{}
	}
	return r.observations[len(r.observations)-1]
}

var denyAll = ACLFuncs[widget]{
	Create:   func(context.Context, *widget) bool { return false },
	ReadOne:  func(context.Context, *widget) bool { return false },
	ReadMany: func(context.Context) bool { return false },
	Update:   func(context.Context, *widget, *widget) bool { return false },
	Delete:   func(context.Context, *widget) bool { return false },
}
