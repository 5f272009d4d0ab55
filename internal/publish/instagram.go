package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
)

// Instagram publishes to an Instagram Business account via the Graph
// API's two-step container flow. Instagram posts always need an image.
type Instagram struct {
	UserID      string
	AccessToken string

	BaseURL string
	HTTP    *http.Client
}

func NewInstagram(userID, accessToken string) *Instagram {
	return &Instagram{UserID: userID, AccessToken: accessToken, BaseURL: graphBase, HTTP: newHTTP()}
}

func (ig *Instagram) Platform() string { return "Instagram" }

func (ig *Instagram) Publish(ctx context.Context, post Post) Result {
	if ig.UserID == "" || ig.AccessToken == "" {
		return Result{Platform: "Instagram", Error: "missing Instagram credentials"}
	}
	if post.ImageURL == "" {
		return Result{Platform: "Instagram", Error: "Instagram posts require an image"}
	}

	// Step 1: create the media container.
	form := url.Values{}
	form.Set("image_url", post.ImageURL)
	form.Set("caption", post.Caption)
	form.Set("access_token", ig.AccessToken)

	body, err := postForm(ctx, ig.HTTP, fmt.Sprintf("%s/%s/media", ig.BaseURL, ig.UserID), form)
	if err != nil {
		return Result{Platform: "Instagram", Error: fmt.Sprintf("create media: %v", err)}
	}
	var container struct {
		ID    string      `json:"id"`
		Error *graphError `json:"error"`
	}
	if err := json.Unmarshal(body, &container); err != nil {
		return Result{Platform: "Instagram", Error: fmt.Sprintf("parse media response: %v", err)}
	}
	if container.ID == "" {
		msg := "no container created"
		if container.Error != nil {
			msg = container.Error.Message
		}
		return Result{Platform: "Instagram", Error: msg}
	}

	// Step 2: publish the container.
	form = url.Values{}
	form.Set("creation_id", container.ID)
	form.Set("access_token", ig.AccessToken)

	body, err = postForm(ctx, ig.HTTP, fmt.Sprintf("%s/%s/media_publish", ig.BaseURL, ig.UserID), form)
	if err != nil {
		return Result{Platform: "Instagram", Error: fmt.Sprintf("publish media: %v", err)}
	}
	var published struct {
		ID    string      `json:"id"`
		Error *graphError `json:"error"`
	}
	if err := json.Unmarshal(body, &published); err != nil {
		return Result{Platform: "Instagram", Error: fmt.Sprintf("parse publish response: %v", err)}
	}
	if published.ID == "" {
		msg := "failed to publish"
		if published.Error != nil {
			msg = published.Error.Message
		}
		return Result{Platform: "Instagram", Error: msg}
	}

	log.Printf("[Publish] Instagram post live: %s", published.ID)
	return Result{Success: true, PostID: published.ID, Platform: "Instagram"}
}
