package memory

import (
	"context"
	"sync"
)

// Session pairs a conversation with an execution lock. The lock serializes
// question processing within one session; independent sessions never contend.
type Session struct {
	ID     string
	Memory *Conversation

	run chan struct{}
}

// Acquire takes the session's execution lock, waiting until it is free or
// ctx is done. On success the caller must Release.
func (s *Session) Acquire(ctx context.Context) error {
	select {
	case s.run <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees the execution lock taken by Acquire
func (s *Session) Release() {
	<-s.run
}

// Store maps session IDs to sessions. Unknown IDs are materialized on first
// use; sessions are never evicted for the lifetime of the store.
type Store struct {
	mu             sync.Mutex
	sessions       map[string]*Session
	maxRecentTurns int
	summarizer     Summarizer
}

// NewStore creates a store whose sessions keep maxRecentTurns pairs of
// recent turns and compact through summarizer.
func NewStore(maxRecentTurns int, summarizer Summarizer) *Store {
	return &Store{
		sessions:       make(map[string]*Session),
		maxRecentTurns: maxRecentTurns,
		summarizer:     summarizer,
	}
}

// GetOrCreate returns the session for id, creating it atomically on first
// use. Concurrent callers with the same id observe the same session.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s
	}
	s := &Session{
		ID:     id,
		Memory: NewConversation(st.maxRecentTurns, st.summarizer),
		run:    make(chan struct{}, 1),
	}
	st.sessions[id] = s
	return s
}

// Get returns the session for id if one exists
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Sessions returns a snapshot of all live sessions
func (st *Store) Sessions() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
