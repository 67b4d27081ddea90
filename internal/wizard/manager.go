package wizard

import (
	"context"
	"sync"
	"time"
)

// Manager keeps the live wizard sessions in memory.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Wizard
	opts     []Option
	now      func() time.Time
}

// NewManager creates an empty manager. opts are applied to every wizard it
// creates.
func NewManager(opts ...Option) *Manager {
	// Sweep measures idleness on the same clock the wizards use.
	probe := &Wizard{now: time.Now}
	for _, opt := range opts {
		opt(probe)
	}
	return &Manager{
		sessions: make(map[string]*Wizard),
		opts:     opts,
		now:      probe.now,
	}
}

// Create starts a new wizard for owner.
func (m *Manager) Create(owner string, opts ...Option) *Wizard {
	all := append(append([]Option{}, m.opts...), opts...)
	w := New(owner, all...)

	m.mu.Lock()
	m.sessions[w.ID()] = w
	m.mu.Unlock()
	return w
}

// Get returns the wizard id if it belongs to owner.
func (m *Manager) Get(id, owner string) (*Wizard, error) {
	w, ok := m.Lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	if w.Owner() != owner {
		return nil, ErrForbidden
	}
	return w, nil
}

// Lookup returns the wizard id without an ownership check.
func (m *Manager) Lookup(id string) (*Wizard, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.sessions[id]
	return w, ok
}

// Delete removes the wizard id if it belongs to owner.
func (m *Manager) Delete(id, owner string) error {
	if _, err := m.Get(id, owner); err != nil {
		return err
	}
	m.Remove(id)
	return nil
}

// Remove drops the wizard id unconditionally.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep removes sessions idle for longer than maxAge and returns how many
// were dropped.
func (m *Manager) Sweep(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, w := range m.sessions {
		if w.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. onSweep, when not
// nil, receives the number removed by each non-empty sweep.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxAge time.Duration, onSweep func(int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(maxAge); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
