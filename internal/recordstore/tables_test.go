package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldsAccessors(t *testing.T) {
	f := Fields{
		"Name":     "Chai Corner",
		"Score":    87.5,
		"Count":    3,
		"Channels": []any{"Facebook", "Instagram"},
		"When":     "2026-08-20T09:00:00Z",
		"Image":    []any{map[string]any{"url": "https://cdn.example.com/a.jpg"}},
	}

	assert.Equal(t, "Chai Corner", f.Str("Name", ""))
	assert.Equal(t, "fallback", f.Str("Missing", "fallback"))
	assert.Equal(t, 87.5, f.Float("Score", 0))
	assert.Equal(t, 3, f.Int("Count", 0))
	assert.Equal(t, 42, f.Int("Missing", 42))
	assert.Equal(t, []string{"Facebook", "Instagram"}, f.Strs("Channels"))
	assert.Equal(t, time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), f.Time("When"))
	assert.True(t, f.Time("Missing").IsZero())
	assert.Equal(t, "https://cdn.example.com/a.jpg", f.AttachmentURL("Image"))
	assert.Equal(t, "", f.AttachmentURL("Missing"))
	assert.True(t, f.Has("Name"))
	assert.False(t, f.Has("Missing"))
}

func TestMemoryFormulaFiltering(t *testing.T) {
	mem := NewMemory()
	mem.Seed(TableClients, "recA", Fields{"Status": "Active", "Name": "A"})
	mem.Seed(TableClients, "recB", Fields{"Status": "Paused", "Name": "B"})
	ctx := context.Background()

	recs, err := mem.List(ctx, TableClients, Query{Formula: "{Status}='Active'"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "recA", recs[0].ID)

	// Linked-record fields match on membership.
	mem.Seed(TablePosts, "recP", Fields{"Client": []string{"recA"}})
	recs, err = mem.List(ctx, TablePosts, Query{Formula: "{Client}='recA'"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = mem.List(ctx, TableClients, Query{Formula: "Status > 3"})
	assert.Error(t, err)
}

func TestClientLookupAndConfig(t *testing.T) {
	mem := NewMemory()
	mem.Seed(TableClients, "recClient1", Fields{
		"Name":            "Chai Corner",
		"Status":          "Active",
		"WhatsApp Phone":  "+14155550111",
		"Tone/Style":      "warm and chatty",
		"Channels":        []any{"Facebook"},
		"FB Page ID":      "page1",
		"FB Access Token": "tok1",
	})
	tables := NewTables(mem)
	ctx := context.Background()

	id, err := tables.ClientIDByPhone(ctx, "+14155550111")
	require.NoError(t, err)
	assert.Equal(t, "recClient1", id)

	id, err = tables.ClientIDByPhone(ctx, "+19998887777")
	require.NoError(t, err)
	assert.Empty(t, id)

	cfg, err := tables.ClientConfig(ctx, "recClient1")
	require.NoError(t, err)
	assert.Equal(t, "Chai Corner", cfg.Name)
	assert.Equal(t, "+14155550111", cfg.Phone)
	assert.Equal(t, "warm and chatty", cfg.BrandVoice)
	assert.Equal(t, "page1", cfg.Auth.FBPageID)
	assert.Equal(t, "Manager", cfg.ApprovalMode)
}

func TestClientConfigAuthJSONBlob(t *testing.T) {
	mem := NewMemory()
	mem.Seed(TableClients, "recC", Fields{
		"Name": "Blob Auth",
		"Auth": `{"fb_page_id":"pg9","fb_access_token":"tk9"}`,
	})
	cfg, err := NewTables(mem).ClientConfig(context.Background(), "recC")
	require.NoError(t, err)
	assert.Equal(t, "pg9", cfg.Auth.FBPageID)
	assert.Equal(t, "tk9", cfg.Auth.FBAccessToken)
}

func TestPostsByApprovalSortsByImpact(t *testing.T) {
	mem := NewMemory()
	tables := NewTables(mem)
	ctx := context.Background()
	mem.Seed(TablePosts, "recLow", Fields{
		"Client": []string{"recClient1"}, "Approval Status": "Needs Approval", "Impact Score": 40.0,
	})
	mem.Seed(TablePosts, "recHigh", Fields{
		"Client": []string{"recClient1"}, "Approval Status": "Needs Approval", "Impact Score": 90.0,
	})
	mem.Seed(TablePosts, "recOther", Fields{
		"Client": []string{"recClient2"}, "Approval Status": "Needs Approval", "Impact Score": 99.0,
	})

	recs, err := tables.PostsByApproval(ctx, "recClient1", "Needs Approval", 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "recHigh", recs[0].ID)
	assert.Equal(t, "recLow", recs[1].ID)
}

func TestReadyToPublishRespectsSchedule(t *testing.T) {
	mem := NewMemory()
	tables := NewTables(mem)
	ctx := context.Background()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	due := mem.Seed(TablePosts, "", Fields{
		"Client": []string{"recClient1"}, "Approval Status": "Approved", "Publish Status": "Draft",
	})
	mem.Seed(TablePosts, "", Fields{
		"Client": []string{"recClient1"}, "Approval Status": "Approved", "Publish Status": "Draft",
		"Scheduled At": now.Add(2 * time.Hour).Format(time.RFC3339),
	})
	mem.Seed(TablePosts, "", Fields{
		"Client": []string{"recClient1"}, "Approval Status": "Approved", "Publish Status": "Published",
	})

	ready, err := tables.ReadyToPublish(ctx, "recClient1", now)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, due.ID, ready[0].ID)
}

func TestApprovePostWritesSchedule(t *testing.T) {
	mem := NewMemory()
	tables := NewTables(mem)
	ctx := context.Background()
	post := mem.Seed(TablePosts, "", Fields{"Approval Status": "Needs Approval"})
	at := time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)

	require.NoError(t, tables.ApprovePost(ctx, post.ID, at))
	rec, err := mem.Get(ctx, TablePosts, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Approved", rec.Fields.Str("Approval Status", ""))
	assert.Equal(t, at, rec.Fields.Time("Scheduled At"))
}

func TestCreatePostApprovalMode(t *testing.T) {
	mem := NewMemory()
	tables := NewTables(mem)
	ctx := context.Background()

	manual, err := tables.CreatePost(ctx, Draft{ClientID: "recC", Channel: "Facebook", Caption: "hi"}, "Manager")
	require.NoError(t, err)
	assert.Equal(t, "Needs Approval", manual.Fields.Str("Approval Status", ""))

	auto, err := tables.CreatePost(ctx, Draft{ClientID: "recC", Channel: "Facebook", Caption: "hi"}, "Auto")
	require.NoError(t, err)
	assert.Equal(t, "Auto-Approved", auto.Fields.Str("Approval Status", ""))
}

func TestJobLifecycle(t *testing.T) {
	mem := NewMemory()
	tables := NewTables(mem)
	ctx := context.Background()

	jobID, err := tables.CreateJob(ctx, "curate", "recClient1", map[string]any{"limit": 5})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	tables.UpdateJob(ctx, jobID, "Running", nil, nil)
	tables.UpdateJob(ctx, jobID, "Completed", nil, map[string]any{"scored": 4})

	rec, err := mem.Get(ctx, TableJobs, jobID)
	require.NoError(t, err)
	assert.Equal(t, "Completed", rec.Fields.Str("Status", ""))
	assert.Contains(t, rec.Fields.Str("Result Summary", ""), `"scored":4`)
	assert.NotEmpty(t, rec.Fields.Str("Completed At", ""))

	// A blank job ID is a no-op, not a panic.
	tables.UpdateJob(ctx, "", "Failed", nil, nil)
}
