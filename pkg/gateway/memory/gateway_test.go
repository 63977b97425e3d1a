package memory

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/query"
)

type note struct {
	ID       int64   `db:"id" json:"id"`
	Title    string  `db:"title" json:"title"`
	Priority int     `json:"priority"`
	Owner    *string `db:"owner_id"`
	Internal bool    `db:"-"`
}

func (n *note) GetID() int64   { return n.ID }
func (n *note) SetID(id int64) { n.ID = id }

func ptr(s string) *string { return &s }

func seeded(t *testing.T) *Gateway[note, int64] {
	t.Helper()
	g, err := New[note, int64](WithIDGenerator[note, int64](Sequence(0)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	for _, n := range []note{
		{Title: "alpha", Priority: 3, Owner: ptr("alice")},
		{Title: "bravo", Priority: 1, Owner: ptr("bob")},
		{Title: "charlie", Priority: 2},
		{Title: "delta", Priority: 5, Owner: ptr("alice")},
	} {
		n := n
		if _, err := g.Create(ctx, &n); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	return g
}

func titles(items []note) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGateway_Read(t *testing.T) {
	g := seeded(t)

	tests := []struct {
		name   string
		params map[string]string
		want   []string
		total  int64
	}{
		{"all by id", nil, []string{"alpha", "bravo", "charlie", "delta"}, 4},
		{"eq string", map[string]string{"title": "bravo"}, []string{"bravo"}, 1},
		{"neq string", map[string]string{"title": `neq:"bravo"`}, []string{"alpha", "charlie", "delta"}, 3},
		{"gt int", map[string]string{"priority": "gt:2"}, []string{"alpha", "delta"}, 2},
		{"lte int", map[string]string{"priority": "lte:2"}, []string{"bravo", "charlie"}, 2},
		{"in ints", map[string]string{"priority": "in:1,5"}, []string{"bravo", "delta"}, 2},
		{"nin ints", map[string]string{"priority": "nin:1,5"}, []string{"alpha", "charlie"}, 2},
		{"eq null", map[string]string{"owner_id": "eq:null"}, []string{"charlie"}, 1},
		{"neq null", map[string]string{"owner_id": "neq:null"}, []string{"alpha", "bravo", "delta"}, 3},
		{"in with null", map[string]string{"owner_id": `in:"bob",null`}, []string{"bravo", "charlie"}, 2},
		{"string ordering", map[string]string{"title": `gte:"charlie"`}, []string{"charlie", "delta"}, 2},
		{"type mismatch never matches", map[string]string{"priority": `gt:"a"`}, []string{}, 0},
		{"sort desc", map[string]string{"sort_by": "priority:desc"}, []string{"delta", "alpha", "charlie", "bravo"}, 4},
		{"nulls first", map[string]string{"sort_by": "owner_id:asc"}, []string{"charlie", "alpha", "delta", "bravo"}, 4},
		{"paged", map[string]string{"page_no": "1", "page_size": "3"}, []string{"delta"}, 4},
		{"past the end", map[string]string{"page_no": "5", "page_size": "3"}, []string{}, 4},
		{"neq skips nulls", map[string]string{"owner_id": `neq:"bob"`}, []string{"alpha", "delta"}, 2},
		{"nin skips nulls", map[string]string{"owner_id": `nin:"bob"`}, []string{"alpha", "delta"}, 2},
		{"nin with null", map[string]string{"owner_id": `nin:"bob",null`}, []string{"alpha", "delta"}, 2},
		{"combined", map[string]string{"owner_id": `eq:"alice"`, "priority": "lt:5"}, []string{"alpha"}, 1},
	}

	parser := query.NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := parser.Parse(tt.params)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			page, err := g.Read(context.Background(), plan)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if got := titles(page.Items); !equalStrings(got, tt.want) {
				t.Errorf("items = %v, want %v", got, tt.want)
			}
			if page.TotalCount != tt.total {
				t.Errorf("total = %d, want %d", page.TotalCount, tt.total)
			}
		})
	}
}

func TestGateway_Read_RejectsInvalidPlans(t *testing.T) {
	g := seeded(t)

	tests := []struct {
		name string
		plan query.Plan
	}{
		{"unknown field", query.NewPlan().Where("color", query.OpEq, query.String("red"))},
		{"list on scalar operator", query.NewPlan().Where("priority", query.OpEq, query.List(query.Int(1), query.Int(2)))},
		{"ordered null", query.NewPlan().Where("priority", query.OpGt, query.Null())},
		{"unknown sort field", func() query.Plan {
			p := query.NewPlan()
			p.Sort = query.Sort{Field: "color", Direction: query.Ascending}
			return p
		}()},
		{"ignored field", query.NewPlan().Where("internal", query.OpEq, query.Int(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Read(context.Background(), tt.plan)
			appErr, ok := apperror.As(err)
			if !ok || appErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("expected 400 AppError, got %v", err)
			}
		})
	}
}

func TestGateway_CRUD(t *testing.T) {
	g, err := New[note, int64](WithIDGenerator[note, int64](Sequence(100)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	created, err := g.Create(ctx, &note{Title: "first"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != 101 {
		t.Errorf("generated id = %d, want 101", created.ID)
	}

	if _, err := g.Create(ctx, &note{ID: 101}); !isStatus(err, http.StatusConflict) {
		t.Errorf("duplicate Create() error = %v, want 409", err)
	}

	created.Title = "mutated after create"
	stored, err := g.ReadOne(ctx, 101)
	if err != nil || stored == nil {
		t.Fatalf("ReadOne() = %v, %v", stored, err)
	}
	if stored.Title != "first" {
		t.Errorf("stored entity aliased the caller's copy: %q", stored.Title)
	}

	if _, err := g.Update(ctx, &note{ID: 101, Title: "second"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	stored, _ = g.ReadOne(ctx, 101)
	if stored.Title != "second" {
		t.Errorf("Title = %q, want second", stored.Title)
	}
	if _, err := g.Update(ctx, &note{ID: 999}); !isStatus(err, http.StatusNotFound) {
		t.Errorf("Update() of missing entity error = %v, want 404", err)
	}

	if err := g.Delete(ctx, stored); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if missing, err := g.ReadOne(ctx, 101); err != nil || missing != nil {
		t.Errorf("ReadOne() after delete = %v, %v; want nil, nil", missing, err)
	}
	if err := g.Delete(ctx, stored); !isStatus(err, http.StatusNotFound) {
		t.Errorf("second Delete() error = %v, want 404", err)
	}
	if g.Len() != 0 {
		t.Errorf("Len() = %d, want 0", g.Len())
	}
}

func TestGateway_CreateWithoutGenerator(t *testing.T) {
	g, err := New[note, int64]()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := g.Create(context.Background(), &note{}); !isStatus(err, http.StatusBadRequest) {
		t.Errorf("Create() error = %v, want 400", err)
	}
	if _, err := g.Create(context.Background(), &note{ID: 7}); err != nil {
		t.Errorf("Create() with explicit id error = %v", err)
	}
}

func TestGateway_CanceledContext(t *testing.T) {
	g := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Read(ctx, query.NewPlan()); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}

type keyed struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type keyedIDs struct{}

func (keyedIDs) GetID(k *keyed) string     { return k.Key }
func (keyedIDs) SetID(k *keyed, id string) { k.Key = id }

func TestGateway_UUIDsWithCustomAccessor(t *testing.T) {
	g, err := New[keyed, string](
		WithIDs[keyed, string](keyedIDs{}),
		WithIDGenerator[keyed, string](UUIDs()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a, _ := g.Create(context.Background(), &keyed{Name: "a"})
	b, _ := g.Create(context.Background(), &keyed{Name: "b"})
	if a.Key == "" || a.Key == b.Key {
		t.Errorf("expected distinct generated keys, got %q and %q", a.Key, b.Key)
	}
}

func TestNew_RejectsNonIdentifiable(t *testing.T) {
	if _, err := New[keyed, string](); err == nil {
		t.Error("expected error without an id accessor")
	}
}

func isStatus(err error, status int) bool {
	appErr, ok := apperror.As(err)
	return ok && appErr.HTTPStatus == status
}
