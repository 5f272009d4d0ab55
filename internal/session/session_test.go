package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/store"
)

func TestStore_Get_NewUserIsEmpty(t *testing.T) {
	s := NewStore(store.NewMapBackend(), 0)
	sess := s.Get(context.Background(), "+15550001111")

	assert.Equal(t, AgentNone, sess.ActiveAgent)
	assert.Empty(t, sess.Extra)
}

func TestStore_SetThenGet_WithinTTL(t *testing.T) {
	s := NewStore(store.NewMapBackend(), 0)
	ctx := context.Background()

	s.Set(ctx, "u1", AgentSocial, nil)
	sess := s.Get(ctx, "u1")

	assert.Equal(t, AgentSocial, sess.ActiveAgent)
}

func TestStore_DurableFallbackAfterEviction(t *testing.T) {
	backend := store.NewMapBackend()
	s := NewStore(backend, 0)
	ctx := context.Background()

	s.Set(ctx, "u1", AgentSocial, map[string]any{"plan": "pro"})
	s.Wait() // let the async write land
	require.Equal(t, 1, backend.Len())

	s.Evict("u1")
	sess := s.Get(ctx, "u1")

	assert.Equal(t, AgentSocial, sess.ActiveAgent)
	assert.Equal(t, "pro", sess.Extra["plan"])
}

func TestStore_BackendFailureFallsBackToEmpty(t *testing.T) {
	backend := store.NewMapBackend()
	backend.Fail = true
	s := NewStore(backend, 0)

	sess := s.Get(context.Background(), "u1")
	assert.Equal(t, AgentNone, sess.ActiveAgent)
}

func TestStore_Reset(t *testing.T) {
	backend := store.NewMapBackend()
	s := NewStore(backend, 0)
	ctx := context.Background()

	s.Set(ctx, "u1", AgentSocial, nil)
	s.Wait()
	s.Reset(ctx, "u1")
	s.Wait()

	assert.Equal(t, AgentNone, s.Get(ctx, "u1").ActiveAgent)
	assert.Equal(t, 0, backend.Len())

	// Resetting twice is harmless and leaves the same empty state.
	s.Reset(ctx, "u1")
	s.Wait()
	assert.Equal(t, AgentNone, s.Get(ctx, "u1").ActiveAgent)
}

func TestStore_TTLExpiryConsultsDurableCopy(t *testing.T) {
	backend := store.NewMapBackend()
	s := NewStore(backend, 10*time.Millisecond)
	ctx := context.Background()

	s.Set(ctx, "u1", AgentSocial, nil)
	s.Wait()
	time.Sleep(20 * time.Millisecond)

	// Cache entry is stale; the durable copy is authoritative.
	assert.Equal(t, AgentSocial, s.Get(ctx, "u1").ActiveAgent)
}

func TestStore_SetMergesExtra(t *testing.T) {
	s := NewStore(store.NewMapBackend(), 0)
	ctx := context.Background()

	s.Set(ctx, "u1", AgentSocial, map[string]any{"a": "1"})
	s.Set(ctx, "u1", AgentSocial, map[string]any{"b": "2"})

	sess := s.Get(ctx, "u1")
	assert.Equal(t, "1", sess.Extra["a"])
	assert.Equal(t, "2", sess.Extra["b"])
}
