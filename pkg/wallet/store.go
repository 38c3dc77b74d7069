package wallet

import "sync"

// Subscriber observes every committed snapshot.
type Subscriber func(Session)

type subscription struct {
	id uint64
	fn Subscriber
}

// Store is the single source of truth for the Session. Updates are
// serialised: subscribers see update N before update N+1 is merged.
// Subscribers must not call Update or Reset.
type Store struct {
	// notifyMu serialises merge+notify as one step.
	notifyMu sync.Mutex

	mu          sync.RWMutex
	session     Session
	nextID      uint64
	subscribers []subscription
}

// NewStore creates a Store holding the disconnected session.
func NewStore() *Store {
	return &Store{}
}

// Update merges the patch and notifies subscribers in subscription order.
func (s *Store) Update(p Patch) Session {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.session = p.apply(s.session)
	snapshot := s.session
	targets := make([]Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		targets = append(targets, sub.fn)
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(snapshot)
	}
	return snapshot
}

// Reset applies DisconnectedPatch.
func (s *Store) Reset() Session {
	return s.Update(DisconnectedPatch())
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Subscribe registers fn and returns an idempotent unsubscribe function.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subscribers = append(s.subscribers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}
