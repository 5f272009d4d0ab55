// Package publish pushes approved posts to the social platforms. Every
// publisher speaks its platform's native HTTP API; failures come back as
// a Result with the platform error so the caller can record them on the
// post instead of losing them in a log.
package publish

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Post is the content to put on a platform.
type Post struct {
	Caption  string
	ImageURL string
	Link     string
}

// Result reports one publish attempt.
type Result struct {
	Success  bool
	PostID   string
	Platform string
	Error    string
}

// Publisher pushes a post to one platform.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, post Post) Result
}

func newHTTP() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

var (
	labelExpr  = regexp.MustCompile(`(?i)(hook|story|urgency|cta|hashtags):\s*`)
	boldExpr   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicExpr = regexp.MustCompile(`\*(.+?)\*`)
)

// FormatCaption strips drafting artifacts from a caption before it goes
// live: section labels like "Hook:" and markdown emphasis. Emojis and
// everything else pass through untouched.
func FormatCaption(text string) string {
	text = labelExpr.ReplaceAllString(text, "")
	text = boldExpr.ReplaceAllString(text, "$1")
	text = italicExpr.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}
