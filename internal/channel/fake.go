package channel

import (
	"context"
	"sync"
)

// Fake records outbound messages for tests.
type Fake struct {
	mu   sync.Mutex
	Sent []FakeMessage
	Err  error
}

type FakeMessage struct {
	To   string
	Body string
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, FakeMessage{To: to, Body: body})
	return nil
}

// Messages returns a copy of everything sent so far.
func (f *Fake) Messages() []FakeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FakeMessage, len(f.Sent))
	copy(out, f.Sent)
	return out
}
