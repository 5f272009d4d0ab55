package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCaption(t *testing.T) {
	in := "Hook: Big news! 🎉\nStory: We opened a **second** location.\nCTA: Visit *today*\nHashtags: #grandopening"
	out := FormatCaption(in)

	assert.NotContains(t, out, "Hook:")
	assert.NotContains(t, out, "CTA:")
	assert.NotContains(t, out, "**")
	assert.Contains(t, out, "🎉", "emojis survive formatting")
	assert.Contains(t, out, "second location")
	assert.Contains(t, out, "Visit today")
	assert.Contains(t, out, "#grandopening")
}

func TestFacebookPublishWithImage(t *testing.T) {
	var photoForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]string{
					{"id": "other", "access_token": "nope"},
					{"id": "page1", "access_token": "page-token"},
				},
			})
		case "/page1/photos":
			require.NoError(t, r.ParseForm())
			photoForm = map[string]string{
				"url":          r.Form.Get("url"),
				"caption":      r.Form.Get("caption"),
				"access_token": r.Form.Get("access_token"),
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "photo123", "post_id": "page1_photo123"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	fb := NewFacebook("page1", "user-token")
	fb.BaseURL = srv.URL

	res := fb.Publish(context.Background(), Post{Caption: "hello", ImageURL: "https://img.example.com/a.png"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "page1_photo123", res.PostID)
	assert.Equal(t, "page-token", photoForm["access_token"], "publishes with the exchanged page token")
	assert.Equal(t, "hello", photoForm["caption"])
}

func TestFacebookPublishMissingPageToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{}})
	}))
	defer srv.Close()

	fb := NewFacebook("page1", "user-token")
	fb.BaseURL = srv.URL

	res := fb.Publish(context.Background(), Post{Caption: "hello"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no page token")
}

func TestFacebookPublishNoCredentials(t *testing.T) {
	fb := NewFacebook("", "")
	res := fb.Publish(context.Background(), Post{Caption: "x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "credentials")
}

func TestInstagramTwoStepPublish(t *testing.T) {
	var publishedContainer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ig1/media":
			json.NewEncoder(w).Encode(map[string]string{"id": "container9"})
		case "/ig1/media_publish":
			require.NoError(t, r.ParseForm())
			publishedContainer = r.Form.Get("creation_id")
			json.NewEncoder(w).Encode(map[string]string{"id": "igpost77"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	ig := NewInstagram("ig1", "tok")
	ig.BaseURL = srv.URL

	res := ig.Publish(context.Background(), Post{Caption: "c", ImageURL: "https://img.example.com/b.png"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "igpost77", res.PostID)
	assert.Equal(t, "container9", publishedContainer)
}

func TestInstagramRequiresImage(t *testing.T) {
	ig := NewInstagram("ig1", "tok")
	res := ig.Publish(context.Background(), Post{Caption: "no image"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "require an image")
}

func TestLinkedInPublishWithLink(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ugcPosts", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "urn:li:share:42"})
	}))
	defer srv.Close()

	li := NewLinkedIn("urn:li:person:me", "tok")
	li.BaseURL = srv.URL

	res := li.Publish(context.Background(), Post{Caption: "read this", Link: "https://example.com/blog"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "urn:li:share:42", res.PostID)

	content := payload["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	assert.Equal(t, "ARTICLE", content["shareMediaCategory"])
}

func TestLinkedInErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"expired token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	li := NewLinkedIn("urn:li:person:me", "tok")
	li.BaseURL = srv.URL

	res := li.Publish(context.Background(), Post{Caption: "x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "HTTP 401")
}
