package channel

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Bridge talks to a self-hosted WhatsApp bridge over WebSocket, for
// deployments that skip Twilio. The bridge pushes inbound messages and
// connection status; Send writes outbound frames on the same socket.
type Bridge struct {
	URL   string
	Token string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc
}

// bridgeFrame is the wire format in both directions.
type bridgeFrame struct {
	Type    string `json:"type"`
	To      string `json:"to,omitempty"`
	Text    string `json:"text,omitempty"`
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewBridge(url, token string) *Bridge {
	if url == "" {
		url = "ws://localhost:3001"
	}
	return &Bridge{URL: url, Token: token}
}

func (b *Bridge) Name() string { return "bridge" }

// Run connects and pumps inbound frames to handle until ctx is
// cancelled. Dropped connections are redialed with a flat backoff.
func (b *Bridge) Run(ctx context.Context, handle Handler) error {
	ctx, b.cancel = context.WithCancel(ctx)
	defer b.cancel()

	for {
		if err := b.dialAndPump(ctx, handle); err != nil && ctx.Err() == nil {
			log.Printf("[Channel] Bridge connection lost: %v, redialing in 5s", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func (b *Bridge) dialAndPump(ctx context.Context, handle Handler) error {
	header := map[string][]string{}
	if b.Token != "" {
		header["Authorization"] = []string{"Bearer " + b.Token}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.URL, header)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.conn = nil
		b.connected = false
		b.mu.Unlock()
		conn.Close()
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame bridgeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		b.dispatch(ctx, frame, handle)
	}
}

func (b *Bridge) dispatch(ctx context.Context, frame bridgeFrame, handle Handler) {
	switch frame.Type {
	case "message":
		sender := frame.Sender
		// Bridge senders look like "15551234567@s.whatsapp.net".
		if i := strings.Index(sender, "@"); i >= 0 {
			sender = sender[:i]
		}
		handle(ctx, Inbound{Sender: sender, Content: frame.Content})
	case "status":
		b.mu.Lock()
		b.connected = frame.Status == "connected"
		b.mu.Unlock()
		log.Printf("[Channel] Bridge status: %s", frame.Status)
	case "qr":
		log.Println("[Channel] Scan the QR code in the bridge terminal to pair WhatsApp")
	case "error":
		log.Printf("[Channel] Bridge error: %s", frame.Error)
	}
}

// Send writes an outbound frame. Fails when the socket is down rather
// than queueing: callers retry through the dispatcher.
func (b *Bridge) Send(_ context.Context, to, body string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("bridge not connected")
	}
	return b.conn.WriteJSON(bridgeFrame{Type: "send", To: to, Text: body})
}

// Connected reports whether the bridge has announced a live WhatsApp
// session.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Close tears down the connection and stops Run.
func (b *Bridge) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}
