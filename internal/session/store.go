package session

import (
	"hash/fnv"
	"sync"
	"time"
)

const storeShards = 16

// Store is an in-memory registry of live sessions. It is sharded so unrelated
// calls never contend on the same lock. Not durable: finalization persists the
// authoritative record externally before a session is deleted.
type Store struct {
	shards [storeShards]storeShard
}

type storeShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[string]*Session)
	}
	return s
}

func (s *Store) shard(id string) *storeShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.shards[h.Sum32()%storeShards]
}

// Create registers a new session for the given operation.
func (s *Store) Create(id string, op Operation) *Session {
	sess := &Session{ID: id, Operation: op, StartedAt: time.Now()}
	sh := s.shard(id)
	sh.mu.Lock()
	sh.sessions[id] = sess
	sh.mu.Unlock()
	return sess
}

// Get looks up a live session.
func (s *Store) Get(id string) (*Session, bool) {
	sh := s.shard(id)
	sh.mu.RLock()
	sess, ok := sh.sessions[id]
	sh.mu.RUnlock()
	return sess, ok
}

// Delete evicts a session. Idempotent.
func (s *Store) Delete(id string) {
	sh := s.shard(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
}

// Len reports the number of live sessions across all shards.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		s.shards[i].mu.RLock()
		n += len(s.shards[i].sessions)
		s.shards[i].mu.RUnlock()
	}
	return n
}
