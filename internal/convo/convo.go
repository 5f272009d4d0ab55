// Package convo tracks per-user dialogue state inside one assistant's
// conversation: the current step, the last post the user touched, and the
// short-lived numbered option lists that numeric replies resolve against.
// Same hybrid cache/durable contract as the session store, except that
// timestamps are serialized to text before hitting the durable layer,
// which only stores text fields.
package convo

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/store"
)

// Dialogue steps (last_action values). The state machine in the social
// router moves users between these.
const (
	StepMenu          = "menu"
	StepShowPosts     = "show_posts"
	StepShowIdeas     = "show_ideas"
	StepPostSelected  = "post_selected"
	StepUpdatePending = "update_pending"
	StepAwaitingIdea  = "awaiting_idea"
	StepAwaitingImage = "awaiting_image"
	StepCurating      = "curating"
)

// State is one user's dialogue cursor. Option lists are only meaningful
// immediately after the "show" step that populated them.
type State struct {
	LastAction   string         `json:"last_action,omitempty"`
	LastPostID   string         `json:"last_post_id,omitempty"`
	PostOptions  []string       `json:"post_options,omitempty"`
	IdeaOptions  []string       `json:"idea_options,omitempty"`
	LastImageURL string         `json:"last_image_url,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
	UpdatedAt    string         `json:"updated_at,omitempty"` // RFC3339 text, wire-safe
}

// Data carries the fields an Update merges into the previous state.
// Zero-valued fields leave the previous value untouched.
type Data struct {
	LastPostID   string
	PostOptions  []string
	IdeaOptions  []string
	LastImageURL string
	Extra        map[string]any
}

// Store is the hybrid conversation-state store.
type Store struct {
	TTL     time.Duration
	backend store.Backend

	mu    sync.RWMutex
	cache map[string]*entry

	writes sync.WaitGroup
}

type entry struct {
	state   State
	touched time.Time
}

// NewStore creates a conversation-state store over the given backend.
func NewStore(backend store.Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{TTL: ttl, backend: backend, cache: make(map[string]*entry)}
}

// Get returns the user's dialogue state, consulting the durable copy when
// the cache entry is missing or stale. Never fails; backend errors are
// logged and yield an empty state.
func (s *Store) Get(ctx context.Context, userID string) State {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok && now.Sub(e.touched) <= s.TTL {
		return e.state
	}

	if data, found, err := s.backend.Load(ctx, userID); err != nil {
		log.Printf("[ConvoState] durable load for %s failed: %v", userID, err)
	} else if found {
		var st State
		if err := json.Unmarshal(data, &st); err != nil {
			log.Printf("[ConvoState] corrupt durable state for %s: %v", userID, err)
		} else {
			s.put(userID, st, now)
			return st
		}
	}

	fresh := State{}
	s.put(userID, fresh, now)
	return fresh
}

// Update merges data into the previous state, sets the new dialogue step,
// writes the cache synchronously, and persists in the background.
func (s *Store) Update(ctx context.Context, userID, action string, data Data) State {
	st := s.Get(ctx, userID)
	st.LastAction = action
	st.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if data.LastPostID != "" {
		st.LastPostID = data.LastPostID
	}
	if data.PostOptions != nil {
		st.PostOptions = data.PostOptions
	}
	if data.IdeaOptions != nil {
		st.IdeaOptions = data.IdeaOptions
	}
	if data.LastImageURL != "" {
		st.LastImageURL = data.LastImageURL
	}
	if len(data.Extra) > 0 {
		if st.Extra == nil {
			st.Extra = make(map[string]any, len(data.Extra))
		}
		for k, v := range data.Extra {
			st.Extra[k] = v
		}
	}

	s.put(userID, st, time.Now())
	s.persistAsync(userID, st)
	return st
}

// Reset drops the user back to a blank state (greeting/menu behavior):
// option lists, selection, and step are all cleared.
func (s *Store) Reset(ctx context.Context, userID string) State {
	st := State{LastAction: StepMenu, UpdatedAt: time.Now().UTC().Format(time.RFC3339)}
	s.put(userID, st, time.Now())
	s.persistAsync(userID, st)
	return st
}

// Evict drops a cache entry without touching the durable copy.
func (s *Store) Evict(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// Wait blocks until all scheduled durable writes have finished.
func (s *Store) Wait() {
	s.writes.Wait()
}

func (s *Store) put(userID string, st State, at time.Time) {
	s.mu.Lock()
	s.cache[userID] = &entry{state: st, touched: at}
	s.mu.Unlock()
}

func (s *Store) persistAsync(userID string, st State) {
	data, err := json.Marshal(st)
	if err != nil {
		log.Printf("[ConvoState] marshal for %s failed: %v", userID, err)
		return
	}
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.backend.Save(ctx, userID, data); err != nil {
			log.Printf("[ConvoState] durable save for %s failed: %v", userID, err)
		}
	}()
}
