package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

const linkedinBase = "https://api.linkedin.com/v2"

// LinkedIn publishes UGC posts for a member or organization URN. Text
// plus an optional article link; native image upload needs the asset
// registration flow, which posts here don't use.
type LinkedIn struct {
	AuthorURN   string
	AccessToken string

	BaseURL string
	HTTP    *http.Client
}

func NewLinkedIn(authorURN, accessToken string) *LinkedIn {
	return &LinkedIn{AuthorURN: authorURN, AccessToken: accessToken, BaseURL: linkedinBase, HTTP: newHTTP()}
}

func (li *LinkedIn) Platform() string { return "LinkedIn" }

func (li *LinkedIn) Publish(ctx context.Context, post Post) Result {
	if li.AuthorURN == "" || li.AccessToken == "" {
		return Result{Platform: "LinkedIn", Error: "missing LinkedIn credentials"}
	}

	share := map[string]any{
		"shareCommentary":    map[string]string{"text": post.Caption},
		"shareMediaCategory": "NONE",
	}
	if post.Link != "" {
		share["shareMediaCategory"] = "ARTICLE"
		share["media"] = []map[string]string{{"status": "READY", "originalUrl": post.Link}}
	}
	payload := map[string]any{
		"author":         li.AuthorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": share,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Platform: "LinkedIn", Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, li.BaseURL+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return Result{Platform: "LinkedIn", Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+li.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := li.HTTP.Do(req)
	if err != nil {
		return Result{Platform: "LinkedIn", Error: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Platform: "LinkedIn", Error: err.Error()}
	}
	if resp.StatusCode != http.StatusCreated {
		return Result{Platform: "LinkedIn", Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody))}
	}

	var out struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Result{Platform: "LinkedIn", Error: fmt.Sprintf("parse response: %v", err)}
	}
	if out.ID == "" {
		msg := out.Message
		if msg == "" {
			msg = "unknown error"
		}
		return Result{Platform: "LinkedIn", Error: msg}
	}

	log.Printf("[Publish] LinkedIn post live: %s", out.ID)
	return Result{Success: true, PostID: out.ID, Platform: "LinkedIn"}
}
