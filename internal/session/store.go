// Package session keeps per-user conversation state in memory with an idle
// expiry.
package session

import (
	"sync"
	"time"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 12 * time.Hour

// Store maps session ids to sessions. Reads extend a session's lifetime.
type Store struct {
	cache *ttlcache.Cache[string, domain.Session]

	locksMu sync.Mutex
	locks   map[string]*turnLock
}

// turnLock is held for the duration of one turn. It lives while refs > 0,
// independent of the session's expiry.
type turnLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, domain.Session](ttl),
		),
		locks: make(map[string]*turnLock),
	}
}

// Start runs the expiry loop until Stop is called.
func (s *Store) Start() {
	go s.cache.Start()
}

// Stop halts the expiry loop.
func (s *Store) Stop() {
	s.cache.Stop()
}

// Load returns a copy of the session for id.
func (s *Store) Load(id string) (domain.Session, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return domain.Session{}, false
	}
	return item.Value().Clone(), true
}

// Save stores a copy of sess under id.
func (s *Store) Save(id string, sess domain.Session) {
	s.cache.Set(id, sess.Clone(), ttlcache.DefaultTTL)
}

// Delete drops the session for id.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Lock serializes turns for one session and returns the unlock function.
// The lock is released from the table once no caller holds or awaits it.
func (s *Store) Lock(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &turnLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func (s *Store) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}
