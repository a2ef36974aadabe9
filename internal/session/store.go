// Package session owns broker session caching and renewal. One session is
// cached per credential identity; it dies at the brokerage's fixed daily
// reset boundary or when any API call reports the token dead, whichever
// comes first.
package session

import (
	"sync"
	"time"
)

// Session is a live broker login: the access token and when it was acquired.
type Session struct {
	Token      string
	AcquiredAt time.Time
}

// Store is a process-wide cache mapping credential identities to sessions.
// It is not persisted; a restart forces re-authentication.
//
// Each identity gets its own slot with its own lock so that two goroutines
// sharing one credential never run two logins concurrently, and a fresh
// session cannot be overwritten by a racing stale re-authentication.
type Store struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	mu   sync.Mutex
	sess *Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{slots: make(map[string]*slot)}
}

func (s *Store) slot(identity string) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[identity]
	if !ok {
		sl = &slot{}
		s.slots[identity] = sl
	}
	return sl
}

// Get returns the cached session for identity, if any.
func (s *Store) Get(identity string) (Session, bool) {
	sl := s.slot(identity)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.sess == nil {
		return Session{}, false
	}
	return *sl.sess, true
}

// Put replaces the session for identity.
func (s *Store) Put(identity string, sess Session) {
	sl := s.slot(identity)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.sess = &sess
}

// Invalidate discards the cached session for identity. The next call for
// this identity authenticates from scratch.
func (s *Store) Invalidate(identity string) {
	sl := s.slot(identity)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.sess = nil
}
