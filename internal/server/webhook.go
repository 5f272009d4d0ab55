package server

import (
	"context"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var inboundMessages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "postpilot_inbound_messages_total",
	Help: "WhatsApp webhook messages received, by outcome.",
}, []string{"outcome"})

const (
	replyNotLinked = "⚠️ Sorry, your number is not linked to a client account."
	replyTimedOut  = "⌛ Sorry, the agent took too long to respond. Please try again."
	replyInternal  = "⚠️ Internal server error. Please try again later."
	replySilent    = "🤔 No response from the agent."
)

// twimlResponse is the minimal Twilio messaging response document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func twiml(c echo.Context, message string) error {
	body, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		return err
	}
	return c.Blob(200, "application/xml", append([]byte(xml.Header), body...))
}

// handleWhatsApp is the Twilio inbound webhook. The reply rides back in
// the TwiML body, so every outcome answers 200 with a message.
func (s *Server) handleWhatsApp(c echo.Context) error {
	from := strings.TrimPrefix(c.FormValue("From"), "whatsapp:")
	text := strings.TrimSpace(c.FormValue("Body"))
	numMedia, _ := strconv.Atoi(c.FormValue("NumMedia"))
	imageURL := ""
	if numMedia > 0 {
		imageURL = c.FormValue("MediaUrl0")
	}

	s.logger.Printf("IN from=%s text=%q media=%v", from, truncate(text, 60), imageURL != "")

	ctx := c.Request().Context()
	clientID, err := s.Tables.ClientIDByPhone(ctx, from)
	if err != nil {
		s.logger.Printf("phone lookup failed for %s: %v", from, err)
		inboundMessages.WithLabelValues("error").Inc()
		return twiml(c, replyInternal)
	}
	if clientID == "" {
		inboundMessages.WithLabelValues("unknown_number").Inc()
		return twiml(c, replyNotLinked)
	}

	cfg, err := s.Tables.ClientConfig(ctx, clientID)
	if err != nil {
		s.logger.Printf("client config failed for %s: %v", clientID, err)
		return twiml(c, replyInternal)
	}
	userName := cfg.Name
	if userName == "" {
		userName = "Client"
	}

	// The orchestrator may block on the model or the record store, and
	// Twilio drops webhooks that sit past its own deadline. Answer with
	// the timeout message instead of letting Twilio give up.
	tctx, cancel := context.WithTimeout(ctx, s.ReplyTimeout)
	defer cancel()

	done := make(chan string, 1)
	go func() { done <- s.Orch.Handle(tctx, clientID, userName, text, imageURL) }()

	select {
	case reply := <-done:
		if reply == "" {
			reply = replySilent
		}
		inboundMessages.WithLabelValues("answered").Inc()
		return twiml(c, reply)
	case <-tctx.Done():
		s.logger.Printf("TIMEOUT from=%s", from)
		inboundMessages.WithLabelValues("timeout").Inc()
		return twiml(c, replyTimedOut)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
