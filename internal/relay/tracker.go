package relay

import (
	"context"
	"sync"
)

// Tracker is the registry of live sessions, used to end them all on shutdown.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession
	wg       sync.WaitGroup
}

type trackedSession struct {
	end  func()
	once sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*trackedSession)}
}

// Register adds a session under id. A second registration under the same id
// replaces the first. The returned func must be called when the session exits.
func (t *Tracker) Register(id string, end func()) (unregister func()) {
	if t == nil {
		return func() {}
	}
	entry := &trackedSession{end: end}

	t.mu.Lock()
	old := t.sessions[id]
	t.sessions[id] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(id, old)
	}
	return func() { t.unregister(id, entry) }
}

func (t *Tracker) unregister(id string, entry *trackedSession) {
	entry.once.Do(func() {
		t.mu.Lock()
		if t.sessions[id] == entry {
			delete(t.sessions, id)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// EndAll asks every registered session to finalize and returns how many were asked.
func (t *Tracker) EndAll() int {
	if t == nil {
		return 0
	}
	var ends []func()
	t.mu.Lock()
	for _, entry := range t.sessions {
		if entry.end != nil {
			ends = append(ends, entry.end)
		}
	}
	t.mu.Unlock()

	for _, end := range ends {
		end()
	}
	return len(ends)
}

// Wait blocks until every registered session has unregistered or ctx ends.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
