// Package orchestrator is the top-level message router. It owns the
// session layer: which sub-agent a user is currently talking to. The
// social agent is fully built; the other agents are placeholders that
// still hold the session so 'exit' behaves uniformly.
package orchestrator

import (
	"context"
	"log"
	"strings"

	"github.com/postpilot/postpilot/internal/session"
	"github.com/postpilot/postpilot/internal/social"
)

var (
	greetWords = []string{"hi", "hello", "hey", "start"}
	exitWords  = []string{"exit", "back"}

	socialTriggers = []string{"1", "social media", "post", "content", "facebook", "instagram"}
)

const agentMenu = "1️⃣ Social Media Management\n" +
	"2️⃣ Digital Presence\n" +
	"3️⃣ Lead Generation\n" +
	"4️⃣ Email Campaigns"

// Orchestrator greets, routes to the active agent, and handles agent
// hand-off. userID is the client record ID.
type Orchestrator struct {
	Sessions *session.Store
	Social   *social.Router
}

func New(sessions *session.Store, socialRouter *social.Router) *Orchestrator {
	return &Orchestrator{Sessions: sessions, Social: socialRouter}
}

// Handle processes one message and returns the reply text. Exit and
// greeting always reset the session regardless of the active agent, so
// sending "exit" twice is a no-op the second time with the same reply.
func (o *Orchestrator) Handle(ctx context.Context, userID, userName, text, imageURL string) string {
	sess := o.Sessions.Get(ctx, userID)
	clean := strings.ToLower(strings.TrimSpace(text))

	if matchWord(clean, greetWords) {
		o.Sessions.Reset(ctx, userID)
		return "Good day " + userName + ", I'm your Lead AI Agent 🤖\n" +
			"How can I assist today?\n" + agentMenu
	}

	if matchWord(clean, exitWords) {
		o.Sessions.Reset(ctx, userID)
		return "Welcome back, " + userName + "! 👋\n" +
			"What would you like to focus on next?\n" + agentMenu
	}

	switch sess.ActiveAgent {
	case session.AgentSocial:
		return o.Social.Handle(ctx, userID, text, imageURL)
	case session.AgentDigital:
		return "🌐 Digital Presence agent coming soon. Say 'exit' to return."
	case session.AgentLeadGen:
		return "📈 Lead Generation agent coming soon. Say 'exit' to return."
	case session.AgentEmail:
		return "📧 Email Campaign agent coming soon. Say 'exit' to return."
	}

	return o.delegate(ctx, userID, userName, clean)
}

// delegate picks an agent for a user with no active session.
func (o *Orchestrator) delegate(ctx context.Context, userID, userName, clean string) string {
	switch {
	case containsAny(clean, socialTriggers):
		o.Sessions.Set(ctx, userID, session.AgentSocial, nil)
		log.Printf("[Orchestrator] %s handed to the social agent", userID)
		intro := "💬 No worries, " + userName + ". Our Social Media Agent will handle this.\n" +
			"You can chat with it directly. Say 'exit' anytime to return to me."
		return intro + "\n\n" + o.Social.Handle(ctx, userID, "menu", "")

	case clean == "2" || strings.Contains(clean, "digital presence"):
		o.Sessions.Set(ctx, userID, session.AgentDigital, nil)
		return "🌐 Digital Presence agent coming soon."

	case clean == "3" || strings.Contains(clean, "lead generation"):
		o.Sessions.Set(ctx, userID, session.AgentLeadGen, nil)
		return "📈 Lead Generation agent coming soon."

	case clean == "4" || strings.Contains(clean, "email"):
		o.Sessions.Set(ctx, userID, session.AgentEmail, nil)
		return "📧 Email Campaign agent coming soon."
	}

	return "🤖 Please choose an option:\n" + agentMenu
}

func matchWord(msg string, words []string) bool {
	for _, w := range words {
		if msg == w {
			return true
		}
	}
	return false
}

func containsAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
