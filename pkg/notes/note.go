// Package notes defines the demo resource served by crudkit: short owned text notes.
package notes

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/nimburion/crudkit/pkg/apperror"
	"github.com/nimburion/crudkit/pkg/auth"
	"github.com/nimburion/crudkit/pkg/config"
	"github.com/nimburion/crudkit/pkg/resource"
)

// Name is the resource name used in routes, metrics, cache keys and events.
const Name = "notes"

// MaxTitleLength bounds Note.Title in characters.
const MaxTitleLength = 200

// Migrations holds the schema for every supported SQL database under migrations/<type>.
//
//go:embed migrations
var Migrations embed.FS

// MigrationsDir returns the directory in Migrations for databaseType.
func MigrationsDir(databaseType string) (string, error) {
	switch databaseType {
	case config.DatabaseTypePostgres, config.DatabaseTypeMySQL:
		return "migrations/" + databaseType, nil
	}
	return "", fmt.Errorf("no migrations for database.type %q", databaseType)
}

// Note is a titled text owned by the subject that created it.
type Note struct {
	ID        int64     `db:"id" json:"id" bson:"_id"`
	Title     string    `db:"title" json:"title" bson:"title"`
	Body      string    `db:"body" json:"body" bson:"body"`
	Owner     string    `db:"owner" json:"owner" bson:"owner"`
	Version   int64     `db:"version" json:"version" bson:"version"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at" bson:"updated_at"`
}

func (n *Note) GetID() int64             { return n.ID }
func (n *Note) SetID(id int64)           { n.ID = id }
func (n *Note) GetVersion() int64        { return n.Version }
func (n *Note) SetVersion(version int64) { n.Version = version }

// Validate checks a decoded request body.
func (n *Note) Validate() error {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return apperror.Validation("title is required", map[string]interface{}{"field": "title"})
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.Validation(
			fmt.Sprintf("title must be at most %d characters", MaxTitleLength),
			map[string]interface{}{"field": "title", "max": MaxTitleLength},
		)
	}
	return nil
}

// OwnerOf returns the subject owning n.
func OwnerOf(n *Note) string { return n.Owner }

// Hooks stamps ownership, versions and modification times on writes.
type Hooks struct {
	resource.DefaultHooks[Note, int64]
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

var _ resource.Hooks[Note, int64] = Hooks{}

// BeforeCreate trims the title, starts the version at 1 and assigns the caller as owner when
// the request is authenticated.
func (h Hooks) BeforeCreate(ctx context.Context, item *Note) (*Note, error) {
	out := *item
	out.ID = 0
	out.Title = strings.TrimSpace(out.Title)
	out.Version = 1
	out.UpdatedAt = h.now()
	if claims := auth.GetClaims(ctx); claims != nil && claims.Subject != "" {
		out.Owner = claims.Subject
	}
	return &out, nil
}

// BeforeUpdate trims the title and refreshes UpdatedAt. An empty owner is filled with the
// caller.
func (h Hooks) BeforeUpdate(ctx context.Context, _ int64, item *Note) (*Note, error) {
	out := *item
	out.Title = strings.TrimSpace(out.Title)
	out.UpdatedAt = h.now()
	if claims := auth.GetClaims(ctx); out.Owner == "" && claims != nil {
		out.Owner = claims.Subject
	}
	return &out, nil
}

func (h Hooks) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC().Truncate(time.Microsecond)
}

// TimeOrderedIDs returns a generator of increasing identifiers seeded from the wall clock in
// microseconds, for stores that cannot generate identifiers themselves.
func TimeOrderedIDs() func() int64 {
	var last atomic.Int64
	return func() int64 {
		for {
			prev := last.Load()
			next := time.Now().UnixMicro()
			if next <= prev {
				next = prev + 1
			}
			if last.CompareAndSwap(prev, next) {
				return next
			}
		}
	}
}
