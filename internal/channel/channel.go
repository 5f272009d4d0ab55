// Package channel delivers assistant messages to users. Inbound traffic
// arrives over the Twilio webhook in internal/server; this package owns
// the outbound path (Twilio REST) and the optional self-hosted bridge
// that bypasses Twilio entirely.
package channel

import "context"

// Sender pushes one outbound message to a recipient. Implementations:
// Twilio (REST), Bridge (WebSocket), Fake (tests).
type Sender interface {
	Name() string
	Send(ctx context.Context, to, body string) error
}

// Inbound is a user message delivered by a transport.
type Inbound struct {
	Sender  string // E.164 phone, no whatsapp: prefix
	Content string
	Media   []string
}

// Handler consumes inbound messages from a transport that listens on
// its own (the bridge). The webhook path calls the router directly.
type Handler func(ctx context.Context, msg Inbound)
