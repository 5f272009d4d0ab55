// Package flows implements the content workflows behind the assistant:
// turning a client's idea into a scored draft, curating the idea
// backlog, and sweeping approved posts out to the platforms. Flows are
// the slow path; the dialogue router runs them through the dispatcher.
package flows

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/postpilot/postpilot/internal/llm"
	"github.com/postpilot/postpilot/internal/publish"
	"github.com/postpilot/postpilot/internal/recordstore"
)

var publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "postpilot_publish_attempts_total",
	Help: "Posts pushed to a platform, by outcome.",
}, []string{"platform", "outcome"})

// Service wires the workflows to their collaborators. NewPublishers is
// injectable so tests publish against fakes.
type Service struct {
	Tables *recordstore.Tables
	LLM    llm.Client

	NewPublishers func(cfg recordstore.ClientConfig) map[string]publish.Publisher
}

// New builds a Service with the real platform publishers.
func New(tables *recordstore.Tables, client llm.Client) *Service {
	return &Service{Tables: tables, LLM: client, NewPublishers: platformPublishers}
}

// platformPublishers builds one publisher per credentialed platform.
func platformPublishers(cfg recordstore.ClientConfig) map[string]publish.Publisher {
	out := make(map[string]publish.Publisher)
	if cfg.Auth.FBPageID != "" && cfg.Auth.FBAccessToken != "" {
		out["Facebook"] = publish.NewFacebook(cfg.Auth.FBPageID, cfg.Auth.FBAccessToken)
	}
	if cfg.Auth.IGBusinessID != "" && cfg.Auth.IGAccessToken != "" {
		out["Instagram"] = publish.NewInstagram(cfg.Auth.IGBusinessID, cfg.Auth.IGAccessToken)
	}
	if cfg.Auth.LinkedInOrgID != "" && cfg.Auth.LinkedInAccessToken != "" {
		out["LinkedIn"] = publish.NewLinkedIn(cfg.Auth.LinkedInOrgID, cfg.Auth.LinkedInAccessToken)
	}
	return out
}

// DraftResult reports the post SubmitIdea created.
type DraftResult struct {
	IdeaID  string
	PostID  string
	Caption string
	Channel string
	Score   float64
}

// SubmitIdea saves a client-provided idea, drafts caption variants,
// scores them against the client's published history, and files the
// best one as a post awaiting approval.
func (s *Service) SubmitIdea(ctx context.Context, clientID, ideaText, imageURL string) (DraftResult, error) {
	cfg, err := s.Tables.ClientConfig(ctx, clientID)
	if err != nil {
		return DraftResult{}, fmt.Errorf("load client %s: %w", clientID, err)
	}

	headline := ideaText
	if len(headline) > 50 {
		headline = headline[:50]
	}
	idea, err := s.Tables.CreateIdea(ctx, clientID, headline, ideaText, "Client Input", imageURL, "High")
	if err != nil {
		return DraftResult{}, fmt.Errorf("save idea: %w", err)
	}

	variants, err := s.draftVariants(ctx, cfg, ideaText)
	if err != nil {
		return DraftResult{}, fmt.Errorf("draft captions: %w", err)
	}

	best, score := s.pickBest(ctx, clientID, variants)

	channel := "Facebook"
	if len(cfg.Channels) > 0 {
		channel = cfg.Channels[0]
	}
	post, err := s.Tables.CreatePost(ctx, recordstore.Draft{
		ClientID:    clientID,
		IdeaID:      idea.ID,
		Channel:     channel,
		Caption:     best.Caption,
		Hashtags:    best.Hashtags,
		CTA:         best.CTA,
		ImpactScore: score,
		SourceType:  "Client Input",
		ImageURL:    imageURL,
	}, cfg.ApprovalMode)
	if err != nil {
		return DraftResult{}, fmt.Errorf("save post: %w", err)
	}

	if err := s.Tables.MarkIdeaProcessed(ctx, idea.ID); err != nil {
		log.Printf("[Flows] Cannot mark idea %s processed: %v", idea.ID, err)
	}

	log.Printf("[Flows] Drafted post %s for client %s (score %.1f)", post.ID, clientID, score)
	return DraftResult{
		IdeaID:  idea.ID,
		PostID:  post.ID,
		Caption: best.Caption,
		Channel: channel,
		Score:   score,
	}, nil
}

// pickBest scores each variant against history and returns the winner.
// Scoring trouble falls back to the first variant: a draft the client
// can review beats an error.
func (s *Service) pickBest(ctx context.Context, clientID string, variants []variant) (variant, float64) {
	scores, err := s.scoreAgainstHistory(ctx, clientID, captionsOf(variants))
	if err != nil {
		log.Printf("[Flows] History scoring unavailable for %s: %v", clientID, err)
		return variants[0], 50
	}
	bestIdx := 0
	for i, sc := range scores {
		if sc > scores[bestIdx] {
			bestIdx = i
		}
	}
	return variants[bestIdx], scores[bestIdx]
}

// CurationResult reports one scored idea.
type CurationResult struct {
	IdeaID   string
	Headline string
	Score    int
	Priority string
}

// CurateIdeas scores the client's unprocessed ideas against historical
// performance and writes priority verdicts back onto them.
func (s *Service) CurateIdeas(ctx context.Context, clientID string, limit int) ([]CurationResult, error) {
	if limit <= 0 {
		limit = 20
	}
	ideas, err := s.Tables.NewIdeas(ctx, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	if len(ideas) == 0 {
		return nil, nil
	}

	texts := make([]string, len(ideas))
	for i, idea := range ideas {
		texts[i] = idea.Fields.Str("Summary", idea.Fields.Str("Headline", ""))
	}

	scores, err := s.scoreAgainstHistory(ctx, clientID, texts)
	if err != nil {
		return nil, fmt.Errorf("score ideas: %w", err)
	}

	results := make([]CurationResult, 0, len(ideas))
	for i, idea := range ideas {
		score := int(scores[i])
		priority := "Low"
		switch {
		case score >= 70:
			priority = "High"
		case score >= 50:
			priority = "Medium"
		}
		notes := fmt.Sprintf("Similarity to top-performing content: %d/100", score)
		if err := s.Tables.ScoreIdea(ctx, idea.ID, priority, score, notes); err != nil {
			log.Printf("[Flows] Cannot score idea %s: %v", idea.ID, err)
			continue
		}
		results = append(results, CurationResult{
			IdeaID:   idea.ID,
			Headline: idea.Fields.Str("Headline", "Untitled"),
			Score:    score,
			Priority: priority,
		})
	}
	log.Printf("[Flows] Curated %d ideas for client %s", len(results), clientID)
	return results, nil
}

// PublishReport summarizes one publishing sweep.
type PublishReport struct {
	Published []string // platform post IDs
	Failed    []string // post record IDs
}

// ApproveAndPublish approves one post (optionally scheduled) and then
// sweeps everything due for that client.
func (s *Service) ApproveAndPublish(ctx context.Context, clientID, postID string, scheduledAt time.Time) (PublishReport, error) {
	if err := s.Tables.ApprovePost(ctx, postID, scheduledAt); err != nil {
		return PublishReport{}, fmt.Errorf("approve post %s: %w", postID, err)
	}
	return s.PublishReady(ctx, clientID, time.Now())
}

// PublishReady pushes every approved-and-due post to its platform.
// Per-post failures are recorded on the post and the sweep continues.
func (s *Service) PublishReady(ctx context.Context, clientID string, now time.Time) (PublishReport, error) {
	cfg, err := s.Tables.ClientConfig(ctx, clientID)
	if err != nil {
		return PublishReport{}, fmt.Errorf("load client %s: %w", clientID, err)
	}
	publishers := s.NewPublishers(cfg)

	posts, err := s.Tables.ReadyToPublish(ctx, clientID, now)
	if err != nil {
		return PublishReport{}, fmt.Errorf("list ready posts: %w", err)
	}

	var report PublishReport
	for _, post := range posts {
		channel := post.Fields.Str("Channel", "Facebook")
		pub, ok := publishers[channel]
		if !ok {
			log.Printf("[Flows] Post %s targets %s but client %s has no credentials for it", post.ID, channel, clientID)
			if err := s.Tables.MarkPostError(ctx, post.ID); err != nil {
				log.Printf("[Flows] Cannot flag post %s: %v", post.ID, err)
			}
			report.Failed = append(report.Failed, post.ID)
			continue
		}

		caption := publish.FormatCaption(joinCaption(post.Fields))
		res := pub.Publish(ctx, publish.Post{
			Caption:  caption,
			ImageURL: post.Fields.AttachmentURL("Image URL"),
			Link:     post.Fields.Str("Link URL", ""),
		})
		if !res.Success {
			publishAttempts.WithLabelValues(channel, "failed").Inc()
			log.Printf("[Flows] Publish failed for post %s on %s: %s", post.ID, channel, res.Error)
			if err := s.Tables.MarkPostError(ctx, post.ID); err != nil {
				log.Printf("[Flows] Cannot flag post %s: %v", post.ID, err)
			}
			report.Failed = append(report.Failed, post.ID)
			continue
		}

		publishAttempts.WithLabelValues(channel, "published").Inc()
		if err := s.Tables.MarkPostPublished(ctx, post.ID, res.PostID, now); err != nil {
			log.Printf("[Flows] Post %s live as %s but status write failed: %v", post.ID, res.PostID, err)
		}
		if _, err := s.Tables.CreateHistory(ctx, clientID, channel, cfg.Name, caption, "", now); err != nil {
			log.Printf("[Flows] Cannot append history for post %s: %v", post.ID, err)
		}
		report.Published = append(report.Published, res.PostID)
	}

	log.Printf("[Flows] Publish sweep for %s: %d live, %d failed", clientID, len(report.Published), len(report.Failed))
	return report, nil
}

// SummaryReport is the weekly activity summary behind the "summary"
// command.
type SummaryReport struct {
	Total     int
	Pending   int
	Approved  int
	Published int
	Errors    int
}

// Summary counts the client's posts created in the trailing week.
func (s *Service) Summary(ctx context.Context, clientID string) (SummaryReport, error) {
	posts, err := s.Tables.PostsSince(ctx, clientID, time.Now().AddDate(0, 0, -7))
	if err != nil {
		return SummaryReport{}, fmt.Errorf("list posts: %w", err)
	}

	var rep SummaryReport
	rep.Total = len(posts)
	for _, post := range posts {
		switch post.Fields.Str("Publish Status", "") {
		case "Published":
			rep.Published++
		case "Error":
			rep.Errors++
		default:
			if post.Fields.Str("Approval Status", "") == "Needs Approval" {
				rep.Pending++
			} else {
				rep.Approved++
			}
		}
	}
	return rep, nil
}

// Analytics returns the client's latest stored metrics snapshot.
func (s *Service) Analytics(ctx context.Context, clientID string) (recordstore.AnalyticsSnapshot, error) {
	return s.Tables.LatestAnalytics(ctx, clientID)
}

func captionsOf(variants []variant) []string {
	out := make([]string, len(variants))
	for i, v := range variants {
		out[i] = v.Caption
	}
	return out
}

func joinCaption(f recordstore.Fields) string {
	caption := f.Str("Caption", "")
	if h := f.Str("Hashtags", ""); h != "" {
		caption += "\n\n" + h
	}
	return caption
}
