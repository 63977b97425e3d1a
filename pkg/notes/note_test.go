package notes

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/auth"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		note    Note
		wantErr bool
	}{
		{name: "valid", note: Note{Title: "groceries"}},
		{name: "blank title", note: Note{Title: "   "}, wantErr: true},
		{name: "title at limit", note: Note{Title: strings.Repeat("é", MaxTitleLength)}},
		{name: "title too long", note: Note{Title: strings.Repeat("a", MaxTitleLength+1)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.note.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				appErr, ok := apperror.As(err)
				if !ok || appErr.HTTPStatus != 400 {
					t.Fatalf("expected 400 AppError, got %v", err)
				}
			}
		})
	}
}

func TestHooksBeforeCreate(t *testing.T) {
	hooks := Hooks{Now: func() time.Time { return fixedNow }}
	ctx := auth.WithClaims(context.Background(), &auth.Claims{Subject: "alice"})
	input := &Note{ID: 99, Title: "  plan  ", Owner: "mallory", Version: 7}

	got, err := hooks.BeforeCreate(ctx, input)
	if err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}
	want := Note{Title: "plan", Owner: "alice", Version: 1, UpdatedAt: fixedNow}
	if *got != want {
		t.Fatalf("BeforeCreate() = %+v, want %+v", *got, want)
	}
	if input.Owner != "mallory" {
		t.Fatal("input must not be modified")
	}
}

func TestHooksBeforeCreateAnonymousKeepsOwner(t *testing.T) {
	got, err := Hooks{}.BeforeCreate(context.Background(), &Note{Title: "a", Owner: "bob"})
	if err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}
	if got.Owner != "bob" || got.UpdatedAt.IsZero() {
		t.Fatalf("unexpected note %+v", got)
	}
}

func TestHooksBeforeUpdate(t *testing.T) {
	hooks := Hooks{Now: func() time.Time { return fixedNow }}
	ctx := auth.WithClaims(context.Background(), &auth.Claims{Subject: "alice"})

	kept, err := hooks.BeforeUpdate(ctx, 1, &Note{Title: "x ", Owner: "bob", Version: 3})
	if err != nil {
		t.Fatalf("BeforeUpdate() error = %v", err)
	}
	if kept.Owner != "bob" || kept.Title != "x" || kept.Version != 3 || !kept.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected note %+v", kept)
	}

	filled, _ := hooks.BeforeUpdate(ctx, 1, &Note{Title: "x"})
	if filled.Owner != "alice" {
		t.Fatalf("expected owner alice, got %q", filled.Owner)
	}
}

func TestMigrations(t *testing.T) {
	for _, dbType := range []string{"postgres", "mysql"} {
		dir, err := MigrationsDir(dbType)
		if err != nil {
			t.Fatalf("MigrationsDir(%q) error = %v", dbType, err)
		}
		entries, err := fs.ReadDir(Migrations, dir)
		if err != nil {
			t.Fatalf("ReadDir(%q) error = %v", dir, err)
		}
		if len(entries) != 4 {
			t.Fatalf("%s: expected 4 scripts, got %d", dbType, len(entries))
		}
	}
	if _, err := MigrationsDir("mongodb"); err == nil {
		t.Fatal("expected error for mongodb")
	}
}

func TestOwnerOf(t *testing.T) {
	if OwnerOf(&Note{Owner: "carol"}) != "carol" {
		t.Fatal("unexpected owner")
	}
}

func TestTimeOrderedIDsIncrease(t *testing.T) {
	next := TimeOrderedIDs()
	prev := next()
	for i := 0; i < 1000; i++ {
		id := next()
		if id <= prev {
			t.Fatalf("id %d not greater than %d", id, prev)
		}
		prev = id
	}
}
