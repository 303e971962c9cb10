// Package progress connects a running conversion to its job: the converter reports
// pages done and asks whether it should stop.
package progress

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyBound is returned when a job id already has a live binding
	ErrAlreadyBound = errors.New("job already bound")
	// ErrNotBound is returned for job ids without a binding
	ErrNotBound = errors.New("job not bound")
)

// Channel is what a converter sees of its job
type Channel interface {
	// ReportProgress records how many units (pages) are done
	ReportProgress(ctx context.Context, unitsCompleted int) error
	// ShouldAbort tells the converter to stop
	ShouldAbort(ctx context.Context) (bool, error)
}

// Registry holds at most one Channel per job id
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
	closed   bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

// Binding is a live registration. Closing it frees the job id.
type Binding struct {
	registry *Registry
	jobID    string
	channel  Channel
	once     sync.Once
}

// Bind registers ch under jobID
func (r *Registry) Bind(jobID string, ch Channel) (*Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.New("progress registry closed")
	}
	if _, ok := r.bindings[jobID]; ok {
		return nil, ErrAlreadyBound
	}
	b := &Binding{registry: r, jobID: jobID, channel: ch}
	r.bindings[jobID] = b
	return b, nil
}

// Lookup returns the Channel bound to jobID
func (r *Registry) Lookup(jobID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[jobID]
	if !ok {
		return nil, false
	}
	return b.channel, true
}

// Len returns the number of live bindings
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Close drops every binding and refuses new ones
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.bindings = make(map[string]*Binding)
}

// JobID returns the bound job id
func (b *Binding) JobID() string {
	return b.jobID
}

// Close removes the binding. Safe to call more than once.
func (b *Binding) Close() {
	b.once.Do(func() {
		r := b.registry
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.bindings[b.jobID]; ok && cur == b {
			delete(r.bindings, b.jobID)
		}
	})
}
