package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioBase = "https://api.twilio.com/2010-04-01"

// Twilio sends WhatsApp messages through the Twilio Messages API.
type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string // sending number, E.164

	BaseURL string
	HTTP    *http.Client
}

func NewTwilio(accountSID, authToken, from string) *Twilio {
	return &Twilio{
		AccountSID: accountSID,
		AuthToken:  authToken,
		From:       from,
		BaseURL:    twilioBase,
		HTTP:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Twilio) Name() string { return "twilio" }

// Send posts one outbound WhatsApp message. Numbers get the whatsapp:
// prefix Twilio expects; callers pass bare E.164.
func (t *Twilio) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("From", whatsAppAddr(t.From))
	form.Set("To", whatsAppAddr(to))
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.BaseURL, t.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio send: %s (code %d)", apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("twilio send: HTTP %d", resp.StatusCode)
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(respBody, &out); err == nil && out.SID != "" {
		log.Printf("[Channel] Twilio message %s queued for %s", out.SID, to)
	}
	return nil
}

// whatsAppAddr prefixes a number for the WhatsApp transport unless the
// caller already did.
func whatsAppAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
