package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/convo"
	"github.com/postpilot/postpilot/internal/dispatch"
	"github.com/postpilot/postpilot/internal/flows"
	"github.com/postpilot/postpilot/internal/intent"
	"github.com/postpilot/postpilot/internal/llm"
	"github.com/postpilot/postpilot/internal/recordstore"
	"github.com/postpilot/postpilot/internal/session"
	"github.com/postpilot/postpilot/internal/social"
	"github.com/postpilot/postpilot/internal/store"
)

const userID = "recClient1"

func newOrchestrator(t *testing.T) (*Orchestrator, *session.Store) {
	t.Helper()

	mem := recordstore.NewMemory()
	mem.Seed(recordstore.TableClients, userID, recordstore.Fields{
		"Name": "Chai Corner", "Status": "Active", "Channels": []string{"Facebook"},
	})
	tables := recordstore.NewTables(mem)
	fakeLLM := &llm.Fake{ChatReply: `{"action": "menu"}`}

	disp := dispatch.New(dispatch.Config{Workers: 1}, tables, &channel.Fake{})
	t.Cleanup(disp.Stop)

	socialRouter := social.NewRouter(
		convo.NewStore(store.NewMapBackend(), 15*time.Minute),
		tables,
		intent.NewParser(),
		fakeLLM,
		flows.New(tables, fakeLLM),
		disp,
		&channel.Fake{},
	)

	sessions := session.NewStore(store.NewMapBackend(), 15*time.Minute)
	return New(sessions, socialRouter), sessions
}

func TestGreetingResetsSession(t *testing.T) {
	o, sessions := newOrchestrator(t)
	sessions.Set(context.Background(), userID, session.AgentSocial, nil)

	reply := o.Handle(context.Background(), userID, "Priya", "hello", "")
	assert.Contains(t, reply, "Good day Priya")
	assert.Contains(t, reply, "Social Media Management")

	sess := sessions.Get(context.Background(), userID)
	assert.Equal(t, session.AgentNone, sess.ActiveAgent)
}

func TestExitIsIdempotent(t *testing.T) {
	o, sessions := newOrchestrator(t)
	sessions.Set(context.Background(), userID, session.AgentSocial, nil)

	first := o.Handle(context.Background(), userID, "Priya", "exit", "")
	second := o.Handle(context.Background(), userID, "Priya", "exit", "")

	assert.Equal(t, first, second, "exit twice gives the same reply")
	assert.Equal(t, session.AgentNone, sessions.Get(context.Background(), userID).ActiveAgent)
}

func TestDelegationToSocialAgent(t *testing.T) {
	o, sessions := newOrchestrator(t)

	reply := o.Handle(context.Background(), userID, "Priya", "I need help with social media", "")
	assert.Contains(t, reply, "Social Media Agent")
	assert.Contains(t, reply, "show → Show top 3 posts", "the agent's menu is shown on hand-off")
	assert.Equal(t, session.AgentSocial, sessions.Get(context.Background(), userID).ActiveAgent)

	// Subsequent messages go straight to the agent.
	reply = o.Handle(context.Background(), userID, "Priya", "show posts", "")
	assert.Contains(t, reply, "No curated posts")
}

func TestPlaceholderAgentsHoldTheSession(t *testing.T) {
	o, sessions := newOrchestrator(t)

	reply := o.Handle(context.Background(), userID, "Priya", "3", "")
	assert.Contains(t, reply, "Lead Generation")
	assert.Equal(t, session.AgentLeadGen, sessions.Get(context.Background(), userID).ActiveAgent)

	reply = o.Handle(context.Background(), userID, "Priya", "anything else", "")
	assert.Contains(t, reply, "coming soon")

	o.Handle(context.Background(), userID, "Priya", "exit", "")
	require.Equal(t, session.AgentNone, sessions.Get(context.Background(), userID).ActiveAgent)
}

func TestFallbackMenu(t *testing.T) {
	o, _ := newOrchestrator(t)
	reply := o.Handle(context.Background(), userID, "Priya", "what do you do", "")
	assert.Contains(t, reply, "choose an option")
}
