package wizard

import (
	"sync"
	"time"
)

type entry struct {
	wizard     *Wizard
	submitting bool
	touched    time.Time
}

// Registry keeps one in-progress wizard per user, in memory only.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	policy  TipPolicy
	limits  Limits
	now     func() time.Time
}

type RegistryOption func(*Registry)

// WithLimits sets the photo limits of wizards the registry creates.
func WithLimits(l Limits) RegistryOption {
	return func(r *Registry) { r.limits = l }
}

func NewRegistry(policy TipPolicy, opts ...RegistryOption) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		policy:  policy,
		limits:  DefaultLimits,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Get(userID string) (*Wizard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return nil, false
	}
	e.touched = r.now()
	return e.wizard, true
}

// GetOrCreate returns the user's wizard, starting a fresh one when needed.
// created tells the caller to pre-fill it.
func (r *Registry) GetOrCreate(userID string) (w *Wizard, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[userID]; ok {
		e.touched = r.now()
		return e.wizard, false
	}
	w = NewWithLimits(r.policy, r.limits)
	r.entries[userID] = &entry{wizard: w, touched: r.now()}
	return w, true
}

// Discard drops the user's wizard unless a submit is running.
func (r *Registry) Discard(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[userID]; ok && e.submitting {
		return ErrSubmitInProgress
	}
	delete(r.entries, userID)
	return nil
}

// BeginSubmit marks the user's wizard as submitting. The returned finish
// func must be called once; on success the wizard is destroyed.
func (r *Registry) BeginSubmit(userID string) (*Wizard, func(success bool), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return nil, nil, ErrNoWizard
	}
	if e.submitting {
		return nil, nil, ErrSubmitInProgress
	}
	e.submitting = true

	finish := func(success bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		e.submitting = false
		e.touched = r.now()
		if success && r.entries[userID] == e {
			delete(r.entries, userID)
		}
	}
	return e.wizard, finish, nil
}

// Prune drops wizards idle for longer than maxIdle and reports how many.
func (r *Registry) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxIdle)
	n := 0
	for id, e := range r.entries {
		if !e.submitting && e.touched.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
