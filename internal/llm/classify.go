package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Classification is the model's verdict on an otherwise-unparseable
// message. Action uses the same vocabulary as the rule parser; Idea
// carries extracted idea text when Action is create_post.
type Classification struct {
	Action string `json:"action"`
	Idea   string `json:"idea"`
}

const classifyPrompt = `You route WhatsApp messages for a social media assistant.
Reply with ONLY a JSON object, no prose: {"action": "...", "idea": "..."}.
Valid actions: show_posts, create_post, approve_post, modify_post, analytics, summary, menu.
Use create_post when the user describes content they want posted, and put
the topic in "idea". Use menu when nothing fits.`

// ClassifyIntent asks the model to label a message the deterministic
// rules could not. Callers treat any error as "fall back to the menu".
func ClassifyIntent(ctx context.Context, c Client, message string) (Classification, error) {
	out, err := c.Chat(ctx, ChatRequest{
		Messages: []Message{
			{Role: "system", Content: classifyPrompt},
			{Role: "user", Content: message},
		},
		MaxTokens:   200,
		Temperature: 0,
	})
	if err != nil {
		return Classification{}, err
	}

	var cl Classification
	if err := json.Unmarshal([]byte(StripFences(out)), &cl); err != nil {
		return Classification{}, fmt.Errorf("classify intent: bad JSON from model: %w", err)
	}
	if cl.Action == "" {
		cl.Action = "menu"
	}
	return cl, nil
}

// StripFences removes a markdown code fence the model may wrap JSON in,
// with or without a language tag.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
