// Package executor delegates processing attempts to external workload
// backends. weft never executes payloads itself; it submits, polls and
// cancels through one of the registered backends.
package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opst/weft/pkg/domain"
)

// Report is an executor's view of a submitted processing.
type Report struct {
	// workload state mapped onto weft's status vocabulary.
	Status domain.Status

	// human-readable detail, e.g. a failure reason.
	Message string

	// contents the workload produced, as far as the backend knows them.
	// Backends whose workloads report contents through the API leave
	// this empty.
	Contents []domain.Content

	// backend response as received, kept for the processing metadata.
	Raw json.RawMessage
}

type Executor interface {
	// backend name used in transform specs and config.
	Name() string

	// submit one processing attempt.
	//
	// Returns the backend-side handle identifying the workload.
	Submit(ctx context.Context, t domain.Transform, p domain.Processing) (string, error)

	// poll the workload behind the handle.
	Poll(ctx context.Context, p domain.Processing) (Report, error)

	// cancel the workload behind the handle. Cancelling an already
	// finished workload is a no-op.
	Cancel(ctx context.Context, p domain.Processing) error
}

// Registry resolves configured executor names. Registration happens at
// startup, before any lookups; Registry is not for concurrent mutation.
type Registry struct {
	executors map[string]Executor
}

func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: map[string]Executor{}}
	for _, e := range executors {
		r.executors[e.Name()] = e
	}
	return r
}

func (r *Registry) Register(e Executor) {
	r.executors[e.Name()] = e
}

// Get resolves a name. Unknown names are an error so that
// misconfiguration surfaces at startup, not at submit time.
func (r *Registry) Get(name string) (Executor, error) {
	e, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("executor '%s' is not registered", name)
	}
	return e, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}
