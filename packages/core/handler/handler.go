// Package handler maps test files to the code that executes them.
//
// Each test kind is a Handler that claims file names by pattern. Tests whose
// name no registered handler claims are not run.
package handler

import (
	"context"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/descriptor"
	"github.com/abdul-hamid-achik/drivetest/packages/core/result"
	"github.com/abdul-hamid-achik/drivetest/packages/driver"
	"github.com/hashicorp/go-hclog"
)

// Kind names a test kind.
type Kind string

const (
	KindStandard Kind = "standard"
	KindScript   Kind = "script"
)

// Env is what a handler gets to run a test with.
type Env struct {
	Driver      driver.Driver
	TestVars    map[string]any
	Logger      hclog.Logger
	Timeout     time.Duration
	Interpreter string
}

func (e *Env) logger() hclog.Logger {
	if e == nil || e.Logger == nil {
		return hclog.NewNullLogger()
	}
	return e.Logger
}

// Handler executes tests of one kind. Run records outcomes on the collector;
// the caller starts and stops the test around it. A returned error aborts the
// run, so outcomes of the test itself belong on the collector.
type Handler interface {
	Kind() Kind
	Match(name string) bool
	Run(ctx context.Context, env *Env, test descriptor.Test, c *result.Collector) error
}

// Registry holds handlers in registration order; the first match wins.
type Registry struct {
	handlers []Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// DefaultRegistry returns a registry with the standard and script kinds.
func DefaultRegistry() *Registry {
	return NewRegistry(NewStandard(), NewScript())
}

// Register adds h, replacing any handler of the same kind.
func (r *Registry) Register(h Handler) {
	for i, existing := range r.handlers {
		if existing.Kind() == h.Kind() {
			r.handlers[i] = h
			return
		}
	}
	r.handlers = append(r.handlers, h)
}

// Lookup returns the handler for the file at path.
func (r *Registry) Lookup(path string) (Handler, bool) {
	name := filepath.Base(path)
	for _, h := range r.handlers {
		if h.Match(name) {
			return h, true
		}
	}
	return nil, false
}

// Matches reports whether any handler claims the base name. It is used as
// the directory discovery filter.
func (r *Registry) Matches(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.handlers))
	for _, h := range r.handlers {
		kinds = append(kinds, h.Kind())
	}
	return kinds
}
