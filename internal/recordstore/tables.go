package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"
)

// Tables layers the well-known table operations over a Client. It is the
// single translation boundary between the store's untyped field maps and
// the typed values the rest of the code works with.
type Tables struct {
	C Client
}

// NewTables wraps a record store client.
func NewTables(c Client) *Tables {
	return &Tables{C: c}
}

// --- Clients ---

// ClientAuth carries per-client publishing credentials.
type ClientAuth struct {
	FBPageID            string `json:"fb_page_id"`
	FBAccessToken       string `json:"fb_access_token"`
	IGBusinessID        string `json:"ig_business_id"`
	IGAccessToken       string `json:"ig_access_token"`
	LinkedInOrgID       string `json:"linkedin_org_id"`
	LinkedInAccessToken string `json:"linkedin_access_token"`
}

// ClientConfig is the typed view of one tenant's Clients row.
type ClientConfig struct {
	ID           string
	Name         string
	Status       string
	Phone        string
	BrandVoice   string
	Instructions string
	Channels     []string
	ApprovalMode string
	Auth         ClientAuth
}

// ClientIDByPhone resolves a WhatsApp phone number to a client record ID.
// Returns "" when the phone is not linked to any client.
func (t *Tables) ClientIDByPhone(ctx context.Context, phone string) (string, error) {
	recs, err := t.C.List(ctx, TableClients, Query{Formula: fmt.Sprintf("{WhatsApp Phone}='%s'", phone), MaxRecords: 1})
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", nil
	}
	return recs[0].ID, nil
}

// ActiveClients lists clients with Status=Active.
func (t *Tables) ActiveClients(ctx context.Context) ([]Record, error) {
	return t.C.List(ctx, TableClients, Query{Formula: "{Status}='Active'"})
}

// ClientConfig fetches and types a client row. The Auth field may be a
// JSON blob or split across individual token columns; both are handled.
func (t *Tables) ClientConfig(ctx context.Context, clientID string) (ClientConfig, error) {
	rec, err := t.C.Get(ctx, TableClients, clientID)
	if err != nil {
		return ClientConfig{}, err
	}
	f := rec.Fields

	var auth ClientAuth
	if raw := f.Str("Auth", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &auth); err != nil {
			log.Printf("[RecordStore] Client %s has malformed Auth JSON: %v", clientID, err)
		}
	}
	if auth == (ClientAuth{}) {
		auth = ClientAuth{
			FBPageID:            f.Str("FB Page ID", ""),
			FBAccessToken:       f.Str("FB Access Token", ""),
			IGBusinessID:        f.Str("IG Business ID", ""),
			IGAccessToken:       f.Str("IG Access Token", ""),
			LinkedInOrgID:       f.Str("LinkedIn Org ID", ""),
			LinkedInAccessToken: f.Str("LinkedIn Access Token", ""),
		}
	}

	return ClientConfig{
		ID:           rec.ID,
		Name:         f.Str("Name", "Client"),
		Status:       f.Str("Status", ""),
		Phone:        f.Str("WhatsApp Phone", ""),
		BrandVoice:   f.Str("Tone/Style", "professional"),
		Instructions: f.Str("Instructions", ""),
		Channels:     f.Strs("Channels"),
		ApprovalMode: f.Str("Approval Mode", "Manager"),
		Auth:         auth,
	}, nil
}

// --- Ideas ---

// CreateIdea records a new content idea, optionally with an image attachment.
func (t *Tables) CreateIdea(ctx context.Context, clientID, headline, summary, sourceType, imageURL, priority string) (Record, error) {
	fields := Fields{
		"Client":      []string{clientID},
		"Headline":    headline,
		"Summary":     summary,
		"Source Type": sourceType,
		"Priority":    priority,
		"Status":      "New",
	}
	if imageURL != "" {
		fields["Image"] = Attachment(imageURL)
	}
	return t.C.Create(ctx, TableIdeas, fields)
}

// NewIdeas returns unprocessed ideas, optionally narrowed to one client.
// Client is a linked-record list, so the narrowing happens here.
func (t *Tables) NewIdeas(ctx context.Context, clientID string, limit int) ([]Record, error) {
	recs, err := t.C.List(ctx, TableIdeas, Query{Formula: "{Status}='New'", MaxRecords: limit * 5})
	if err != nil {
		return nil, err
	}
	if clientID != "" {
		recs = filterByClient(recs, clientID)
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// ScoreIdea writes a curation verdict back onto an idea.
func (t *Tables) ScoreIdea(ctx context.Context, ideaID, priority string, score int, notes string) error {
	_, err := t.C.Update(ctx, TableIdeas, ideaID, Fields{
		"Priority":       priority,
		"Quality Score":  score,
		"Curation Notes": notes,
		"Status":         "Curated",
	})
	return err
}

// MarkIdeaProcessed flips an idea's status once posts exist for it.
func (t *Tables) MarkIdeaProcessed(ctx context.Context, ideaID string) error {
	_, err := t.C.Update(ctx, TableIdeas, ideaID, Fields{"Status": "Processed"})
	return err
}

// --- Posts ---

// Draft is the typed input for a new post row.
type Draft struct {
	ClientID    string
	IdeaID      string
	Channel     string
	Caption     string
	Hashtags    string
	CTA         string
	ImpactScore float64
	SourceType  string
	ImageURL    string
	LinkURL     string
}

// CreatePost writes a draft post. Approval status follows the client's
// approval mode: "Auto" drafts skip the review queue.
func (t *Tables) CreatePost(ctx context.Context, d Draft, approvalMode string) (Record, error) {
	approval := "Needs Approval"
	if approvalMode == "Auto" {
		approval = "Auto-Approved"
	}
	fields := Fields{
		"Client":          []string{d.ClientID},
		"Channel":         d.Channel,
		"Caption":         d.Caption,
		"Hashtags":        d.Hashtags,
		"CTA":             d.CTA,
		"Impact Score":    d.ImpactScore,
		"Source Type":     d.SourceType,
		"Publish Status":  "Draft",
		"Approval Status": approval,
	}
	if d.IdeaID != "" {
		fields["Idea"] = []string{d.IdeaID}
	}
	if d.ImageURL != "" {
		fields["Image URL"] = Attachment(d.ImageURL)
	}
	if d.LinkURL != "" {
		fields["Link URL"] = d.LinkURL
	}
	return t.C.Create(ctx, TablePosts, fields)
}

// PostsByApproval lists a client's posts with the given approval status,
// sorted by impact score descending.
func (t *Tables) PostsByApproval(ctx context.Context, clientID, status string, limit int) ([]Record, error) {
	recs, err := t.C.List(ctx, TablePosts, Query{Formula: fmt.Sprintf("{Approval Status}='%s'", status), MaxRecords: limit * 5})
	if err != nil {
		return nil, err
	}
	recs = filterByClient(recs, clientID)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Fields.Float("Impact Score", 0) > recs[j].Fields.Float("Impact Score", 0)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// GetPost fetches one post by ID.
func (t *Tables) GetPost(ctx context.Context, postID string) (Record, error) {
	return t.C.Get(ctx, TablePosts, postID)
}

// UpdatePostCaption replaces only the caption.
func (t *Tables) UpdatePostCaption(ctx context.Context, postID, caption string) error {
	_, err := t.C.Update(ctx, TablePosts, postID, Fields{"Caption": caption})
	return err
}

// UpdatePostImage replaces the post image attachment.
func (t *Tables) UpdatePostImage(ctx context.Context, postID, imageURL string) error {
	_, err := t.C.Update(ctx, TablePosts, postID, Fields{"Image URL": Attachment(imageURL)})
	return err
}

// ApprovePost marks a post approved, optionally scheduled for later.
func (t *Tables) ApprovePost(ctx context.Context, postID string, scheduledAt time.Time) error {
	fields := Fields{"Approval Status": "Approved"}
	if !scheduledAt.IsZero() {
		fields["Scheduled At"] = scheduledAt.UTC().Format(time.RFC3339)
	}
	_, err := t.C.Update(ctx, TablePosts, postID, fields)
	return err
}

// ReadyToPublish returns the client's approved posts whose schedule time
// has passed (or was never set). Schedule filtering happens here because
// the formula layer only sees the approval status.
func (t *Tables) ReadyToPublish(ctx context.Context, clientID string, now time.Time) ([]Record, error) {
	var ready []Record
	for _, status := range []string{"Approved", "Auto-Approved"} {
		recs, err := t.C.List(ctx, TablePosts, Query{Formula: fmt.Sprintf("{Approval Status}='%s'", status)})
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			pub := rec.Fields.Str("Publish Status", "")
			if pub != "Draft" && pub != "Queued" {
				continue
			}
			if at := rec.Fields.Time("Scheduled At"); !at.IsZero() && at.After(now) {
				continue
			}
			ready = append(ready, rec)
		}
	}
	if clientID != "" {
		ready = filterByClient(ready, clientID)
	}
	return ready, nil
}

// MarkPostPublished records a successful publish.
func (t *Tables) MarkPostPublished(ctx context.Context, postID, platformPostID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := t.C.Update(ctx, TablePosts, postID, Fields{
		"Publish Status":   "Published",
		"Platform Post ID": platformPostID,
		"Published At":     at.Truncate(time.Second).Format(time.RFC3339),
	})
	return err
}

// MarkPostError flags a post whose publish attempt failed.
func (t *Tables) MarkPostError(ctx context.Context, postID string) error {
	_, err := t.C.Update(ctx, TablePosts, postID, Fields{"Publish Status": "Error"})
	return err
}

// PostsSince returns a client's posts created in the trailing window,
// for the weekly summary.
func (t *Tables) PostsSince(ctx context.Context, clientID string, since time.Time) ([]Record, error) {
	recs, err := t.C.List(ctx, TablePosts, Query{})
	if err != nil {
		return nil, err
	}
	recs = filterByClient(recs, clientID)
	var out []Record
	for _, rec := range recs {
		if created := rec.Fields.Time("Created"); !created.IsZero() && created.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// --- Analytics / History ---

// AnalyticsSnapshot is the latest stored metrics row for a client.
type AnalyticsSnapshot struct {
	Reach       int
	Impressions int
	Clicks      int
	CTR         string
}

// LatestAnalytics reads the newest analytics snapshot, zero-valued when
// none exists.
func (t *Tables) LatestAnalytics(ctx context.Context, clientID string) (AnalyticsSnapshot, error) {
	recs, err := t.C.List(ctx, "Analytics", Query{Formula: fmt.Sprintf("{Client}='%s'", clientID), MaxRecords: 1})
	if err != nil || len(recs) == 0 {
		return AnalyticsSnapshot{CTR: "0%"}, err
	}
	f := recs[0].Fields
	return AnalyticsSnapshot{
		Reach:       f.Int("Reach", 0),
		Impressions: f.Int("Impressions", 0),
		Clicks:      f.Int("Clicks", 0),
		CTR:         f.Str("CTR", "0%"),
	}, nil
}

// CreateHistory appends a published-post row to the history table.
func (t *Tables) CreateHistory(ctx context.Context, clientID, platform, handle, text, postURL string, publishedAt time.Time) (Record, error) {
	fields := Fields{
		"Platform":     platform,
		"Page Handle":  handle,
		"Post Text":    text,
		"Post URL":     postURL,
		"Publish Date": publishedAt.UTC().Format(time.RFC3339),
	}
	if clientID != "" {
		fields["Client"] = []string{clientID}
	}
	return t.C.Create(ctx, TableHistory, fields)
}

// RecentHistory returns up to limit history rows for a client.
func (t *Tables) RecentHistory(ctx context.Context, clientID string, limit int) ([]Record, error) {
	recs, err := t.C.List(ctx, TableHistory, Query{MaxRecords: limit * 5})
	if err != nil {
		return nil, err
	}
	if clientID != "" {
		recs = filterByClient(recs, clientID)
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// --- Jobs ---

// CreateJob logs a queued background job and returns its record ID.
func (t *Tables) CreateJob(ctx context.Context, jobType, clientID string, params map[string]any) (string, error) {
	fields := Fields{"Job Type": jobType, "Status": "Queued"}
	if clientID != "" {
		fields["Client"] = []string{clientID}
	}
	if len(params) > 0 {
		data, _ := json.Marshal(params)
		fields["Parameters"] = string(data)
	}
	rec, err := t.C.Create(ctx, TableJobs, fields)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// UpdateJob moves a job through its lifecycle. Failures to write job
// status are logged, never surfaced: job bookkeeping must not break the
// job itself.
func (t *Tables) UpdateJob(ctx context.Context, jobID, status string, jobErr error, summary any) {
	if jobID == "" {
		return
	}
	fields := Fields{"Status": status}
	if status == "Completed" || status == "Failed" {
		fields["Completed At"] = time.Now().UTC().Format(time.RFC3339)
	}
	if jobErr != nil {
		fields["Error Message"] = jobErr.Error()
	}
	if summary != nil {
		if data, err := json.Marshal(summary); err == nil {
			fields["Result Summary"] = string(data)
		} else {
			fields["Result Summary"] = fmt.Sprint(summary)
		}
	}
	if _, err := t.C.Update(ctx, TableJobs, jobID, fields); err != nil {
		log.Printf("[Jobs] Failed to update %s -> %s: %v", jobID, status, err)
	}
}

func filterByClient(recs []Record, clientID string) []Record {
	var out []Record
	for _, rec := range recs {
		if contains(rec.Fields.Strs("Client"), clientID) {
			out = append(out, rec)
		}
	}
	return out
}
