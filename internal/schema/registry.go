package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/catalogd/internal/shared"
)

// ApplyFunc transforms the schema from Version-1 to Version inside tx.
//
// It must not commit or roll back tx, and it should tolerate being re-run after a crash (IF NOT EXISTS, guarded
// column adds).
type ApplyFunc func(ctx context.Context, tx *sql.Tx) error

// Step is one forward migration.
type Step struct {
	Version int
	Name    string
	Apply   ApplyFunc
}

// Registry is an ordered, gap-free list of steps, optionally with the table layout the latest step produces.
type Registry struct {
	steps  []Step
	layout []Table
}

// NewRegistry validates steps and returns a registry whose latest version is len(steps).
//
// Steps must be numbered 1, 2, ... N in order; gaps, duplicates and steps without a transformation are rejected with
// [shared.ErrInvalidRegistry].
func NewRegistry(steps ...Step) (*Registry, error) {
	for i, step := range steps {
		want := i + 1
		switch {
		case step.Version != want:
			return nil, fmt.Errorf("%w: step at position %d has version %d, want %d", shared.ErrInvalidRegistry, i, step.Version, want)
		case step.Apply == nil:
			return nil, fmt.Errorf("%w: step %d (%s) has no transformation", shared.ErrInvalidRegistry, step.Version, step.Name)
		}
	}

	r := &Registry{steps: make([]Step, len(steps))}
	copy(r.steps, steps)
	return r, nil
}

// MustRegistry is like [NewRegistry] but panics on an invalid step list.
func MustRegistry(steps ...Step) *Registry {
	r, err := NewRegistry(steps...)
	if err != nil {
		panic(err)
	}
	return r
}

// Latest returns the highest version the registry can migrate to.
func (r *Registry) Latest() int {
	return len(r.steps)
}

// WithLayout returns a copy of the registry that checks the migrated database against tables.
func (r *Registry) WithLayout(tables ...Table) *Registry {
	return &Registry{steps: r.steps, layout: tables}
}

// Layout returns the tables declared for the latest version, or nil.
func (r *Registry) Layout() []Table {
	return r.layout
}

// Steps returns a copy of the registry's steps.
func (r *Registry) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Until returns a registry holding only the steps up to and including version.
//
// It is used to build fixture databases at an intermediate version. The declared layout is dropped.
func (r *Registry) Until(version int) *Registry {
	version = max(0, min(version, len(r.steps)))
	return &Registry{steps: r.steps[:version:version]}
}

// pending returns the steps above version.
func (r *Registry) pending(version int) []Step {
	if version >= len(r.steps) {
		return nil
	}
	return r.steps[max(version, 0):]
}
