// Package session implements the top-level session store: which specialized
// assistant currently owns a user's conversation. Reads are served from an
// in-memory TTL cache with a durable fallback; writes update the cache
// synchronously and persist in the background so the chat reply path never
// waits on durable-store latency.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/store"
)

// Agent identifiers. AgentNone means control belongs to the top-level router.
const (
	AgentNone    = ""
	AgentSocial  = "social"
	AgentDigital = "digital"
	AgentLeadGen = "leadgen"
	AgentEmail   = "email"
)

// DefaultTTL is how long a cached session stays fresh without a write.
const DefaultTTL = 15 * time.Minute

// Session records which assistant owns a user's conversation, plus
// agent-specific extension fields.
type Session struct {
	ActiveAgent string         `json:"active_agent,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Store is the hybrid session store. Cache entries expire after TTL; the
// durable backend is consulted on a miss and written through in the
// background. Sessions are partitioned by user ID, so last-write-wins
// without locking across writes is acceptable.
type Store struct {
	TTL     time.Duration
	backend store.Backend

	mu    sync.RWMutex
	cache map[string]*entry

	writes sync.WaitGroup
}

type entry struct {
	sess    Session
	touched time.Time
}

// NewStore creates a session store over the given durable backend.
func NewStore(backend store.Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{TTL: ttl, backend: backend, cache: make(map[string]*entry)}
}

// Get returns the user's session. Fresh cache entries are served directly;
// on a miss or expiry the durable copy is consulted, and only then does the
// user fall back to a brand-new empty session. Never fails: durable-layer
// errors are logged and treated as "not found".
func (s *Store) Get(ctx context.Context, userID string) Session {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok && now.Sub(e.touched) <= s.TTL {
		return e.sess
	}

	if data, found, err := s.backend.Load(ctx, userID); err != nil {
		log.Printf("[Session] durable load for %s failed: %v", userID, err)
	} else if found {
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			log.Printf("[Session] corrupt durable session for %s: %v", userID, err)
		} else {
			s.put(userID, sess, now)
			return sess
		}
	}

	fresh := Session{}
	s.put(userID, fresh, now)
	return fresh
}

// Set merges the agent and extra fields into the current session, writes
// the cache synchronously, and schedules the durable write. The returned
// session reflects the in-memory state; callers must not assume the
// durable write has completed.
func (s *Store) Set(ctx context.Context, userID, agent string, extra map[string]any) Session {
	sess := s.Get(ctx, userID)
	sess.ActiveAgent = agent
	if len(extra) > 0 {
		if sess.Extra == nil {
			sess.Extra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			sess.Extra[k] = v
		}
	}
	s.put(userID, sess, time.Now())
	s.persistAsync(userID, sess)
	return sess
}

// Reset overwrites the cache with an empty session and schedules a durable
// delete.
func (s *Store) Reset(ctx context.Context, userID string) {
	s.put(userID, Session{}, time.Now())

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.backend.Delete(ctx, userID); err != nil {
			log.Printf("[Session] durable delete for %s failed: %v", userID, err)
		}
	}()
}

// Evict drops a cache entry without touching the durable copy. Used by
// tests to simulate TTL expiry and by operators to force a re-read.
func (s *Store) Evict(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// Wait blocks until all scheduled durable writes have finished.
func (s *Store) Wait() {
	s.writes.Wait()
}

func (s *Store) put(userID string, sess Session, at time.Time) {
	s.mu.Lock()
	s.cache[userID] = &entry{sess: sess, touched: at}
	s.mu.Unlock()
}

func (s *Store) persistAsync(userID string, sess Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		log.Printf("[Session] marshal for %s failed: %v", userID, err)
		return
	}
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.backend.Save(ctx, userID, data); err != nil {
			log.Printf("[Session] durable save for %s failed: %v", userID, err)
		}
	}()
}
