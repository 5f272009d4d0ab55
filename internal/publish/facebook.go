package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
)

const graphBase = "https://graph.facebook.com/v18.0"

// Facebook publishes to a Facebook Page. AccessToken is the long-lived
// user token; a page token is exchanged per publish because page tokens
// rotate with the user token.
type Facebook struct {
	PageID      string
	AccessToken string

	BaseURL string // overridable for tests; defaults to the Graph API
	HTTP    *http.Client
}

func NewFacebook(pageID, accessToken string) *Facebook {
	return &Facebook{PageID: pageID, AccessToken: accessToken, BaseURL: graphBase, HTTP: newHTTP()}
}

func (f *Facebook) Platform() string { return "Facebook" }

// Publish posts to the page feed, or to the photos endpoint when the
// post carries an image.
func (f *Facebook) Publish(ctx context.Context, post Post) Result {
	if f.PageID == "" || f.AccessToken == "" {
		return Result{Platform: "Facebook", Error: "missing Facebook credentials"}
	}

	pageToken, err := f.pageToken(ctx)
	if err != nil {
		return Result{Platform: "Facebook", Error: fmt.Sprintf("get page token: %v", err)}
	}

	form := url.Values{}
	var endpoint string
	if post.ImageURL != "" {
		endpoint = fmt.Sprintf("%s/%s/photos", f.BaseURL, f.PageID)
		form.Set("url", post.ImageURL)
		form.Set("caption", post.Caption)
	} else {
		endpoint = fmt.Sprintf("%s/%s/feed", f.BaseURL, f.PageID)
		form.Set("message", post.Caption)
	}
	if post.Link != "" {
		form.Set("link", post.Link)
	}
	form.Set("access_token", pageToken)

	body, err := postForm(ctx, f.HTTP, endpoint, form)
	if err != nil {
		return Result{Platform: "Facebook", Error: err.Error()}
	}

	var out struct {
		ID     string      `json:"id"`
		PostID string      `json:"post_id"`
		Error  *graphError `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Result{Platform: "Facebook", Error: fmt.Sprintf("parse response: %v", err)}
	}
	if out.ID == "" {
		msg := "unknown error"
		if out.Error != nil {
			msg = out.Error.Message
		}
		return Result{Platform: "Facebook", Error: msg}
	}

	id := out.ID
	if out.PostID != "" {
		id = out.PostID
	}
	log.Printf("[Publish] Facebook post live: %s", id)
	return Result{Success: true, PostID: id, Platform: "Facebook"}
}

// pageToken exchanges the user token for the page's access token via
// /me/accounts. Requires the pages_manage_posts permission.
func (f *Facebook) pageToken(ctx context.Context) (string, error) {
	endpoint := f.BaseURL + "/me/accounts?access_token=" + url.QueryEscape(f.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var out struct {
		Data []struct {
			ID          string `json:"id"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
		Error *graphError `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse /me/accounts: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("graph API: %s", out.Error.Message)
	}
	for _, page := range out.Data {
		if page.ID == f.PageID {
			return page.AccessToken, nil
		}
	}
	return "", fmt.Errorf("no page token for page %s", f.PageID)
}

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
