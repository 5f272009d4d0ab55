package flows

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/postpilot/internal/llm"
	"github.com/postpilot/postpilot/internal/publish"
	"github.com/postpilot/postpilot/internal/recordstore"
)

// fakePublisher records publishes and answers with a canned result.
type fakePublisher struct {
	platform string
	result   publish.Result
	posts    []publish.Post
}

func (f *fakePublisher) Platform() string { return f.platform }
func (f *fakePublisher) Publish(_ context.Context, p publish.Post) publish.Result {
	f.posts = append(f.posts, p)
	return f.result
}

func seedClient(mem *recordstore.Memory) string {
	rec := mem.Seed(recordstore.TableClients, "recClient1", recordstore.Fields{
		"Name":          "Chai Corner",
		"Status":        "Active",
		"Tone/Style":    "warm",
		"Channels":      []string{"Facebook"},
		"Approval Mode": "Manager",
	})
	return rec.ID
}

func newService(mem *recordstore.Memory, fake llm.Client) *Service {
	s := New(recordstore.NewTables(mem), fake)
	return s
}

func variantJSON(captions ...string) string {
	parts := make([]string, len(captions))
	for i, c := range captions {
		parts[i] = fmt.Sprintf(`{"caption": %q, "hashtags": "#chai", "cta": "Visit us"}`, c)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestSubmitIdeaCreatesIdeaAndBestPost(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)

	fake := &llm.Fake{
		ChatReply: variantJSON("variant A", "variant B", "variant C"),
		// variant B embeds closest to history.
		EmbedFn: func(_ context.Context, texts []string) ([][]float64, error) {
			vecs := make([][]float64, len(texts))
			for i := range texts {
				switch {
				case strings.Contains(texts[i], "B"):
					vecs[i] = []float64{1, 0}
				default:
					vecs[i] = []float64{0, 1}
				}
			}
			return vecs, nil
		},
	}
	s := newService(mem, fake)

	// History aligned with [1,0] so variant B wins.
	mem.Seed(recordstore.TableHistory, "recHist1", recordstore.Fields{
		"Client":    []string{clientID},
		"Embedding": embeddingCSV(1, 0),
		"Likes":     100,
	})

	res, err := s.SubmitIdea(context.Background(), clientID, "Monsoon special chai", "https://img.example.com/chai.png")
	require.NoError(t, err)
	assert.Equal(t, "variant B", res.Caption)
	assert.Equal(t, "Facebook", res.Channel)
	assert.NotEmpty(t, res.PostID)

	idea, err := mem.Get(context.Background(), recordstore.TableIdeas, res.IdeaID)
	require.NoError(t, err)
	assert.Equal(t, "Processed", idea.Fields.Str("Status", ""))
	assert.Equal(t, "Client Input", idea.Fields.Str("Source Type", ""))

	post, err := mem.Get(context.Background(), recordstore.TablePosts, res.PostID)
	require.NoError(t, err)
	assert.Equal(t, "Needs Approval", post.Fields.Str("Approval Status", ""))
	assert.Equal(t, "variant B", post.Fields.Str("Caption", ""))
	assert.Equal(t, "https://img.example.com/chai.png", post.Fields.AttachmentURL("Image URL"))
}

func TestSubmitIdeaWithoutHistoryUsesFirstVariant(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)
	fake := &llm.Fake{ChatReply: variantJSON("first", "second")}
	s := newService(mem, fake)

	res, err := s.SubmitIdea(context.Background(), clientID, "Anything", "")
	require.NoError(t, err)
	assert.Equal(t, "first", res.Caption)
	assert.Equal(t, 50.0, res.Score, "no history means the neutral score")
}

func TestSubmitIdeaBadModelOutput(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)
	fake := &llm.Fake{ChatReply: "I can't do JSON today"}
	s := newService(mem, fake)

	_, err := s.SubmitIdea(context.Background(), clientID, "Anything", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft captions")
}

func TestCurateIdeasWritesVerdicts(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)

	mem.Seed(recordstore.TableIdeas, "recIdeaHot", recordstore.Fields{
		"Client": []string{clientID}, "Headline": "Hot", "Summary": "close to history", "Status": "New",
	})
	mem.Seed(recordstore.TableIdeas, "recIdeaCold", recordstore.Fields{
		"Client": []string{clientID}, "Headline": "Cold", "Summary": "far from history", "Status": "New",
	})
	mem.Seed(recordstore.TableHistory, "recHist1", recordstore.Fields{
		"Client":    []string{clientID},
		"Embedding": embeddingCSV(1, 0),
		"Likes":     10,
	})

	fake := &llm.Fake{
		EmbedFn: func(_ context.Context, texts []string) ([][]float64, error) {
			vecs := make([][]float64, len(texts))
			for i, text := range texts {
				if strings.Contains(text, "close") {
					vecs[i] = []float64{1, 0}
				} else {
					vecs[i] = []float64{0, 1}
				}
			}
			return vecs, nil
		},
	}
	s := newService(mem, fake)

	results, err := s.CurateIdeas(context.Background(), clientID, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[string]CurationResult{}
	for _, r := range results {
		byID[r.IdeaID] = r
	}
	assert.Equal(t, "High", byID["recIdeaHot"].Priority)
	assert.Equal(t, 100, byID["recIdeaHot"].Score)
	assert.Equal(t, "Low", byID["recIdeaCold"].Priority)

	hot, _ := mem.Get(context.Background(), recordstore.TableIdeas, "recIdeaHot")
	assert.Equal(t, "Curated", hot.Fields.Str("Status", ""))
	assert.Equal(t, 100, hot.Fields.Int("Quality Score", 0))
}

func TestCurateIdeasNoNewIdeas(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)
	s := newService(mem, &llm.Fake{})

	results, err := s.CurateIdeas(context.Background(), clientID, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestApproveAndPublish(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)

	post := mem.Seed(recordstore.TablePosts, "recPost1", recordstore.Fields{
		"Client":          []string{clientID},
		"Channel":         "Facebook",
		"Caption":         "Hook: Fresh **chai** today",
		"Hashtags":        "#chai",
		"Approval Status": "Needs Approval",
		"Publish Status":  "Draft",
	})

	fb := &fakePublisher{platform: "Facebook", result: publish.Result{Success: true, PostID: "fb987", Platform: "Facebook"}}
	s := newService(mem, &llm.Fake{})
	s.NewPublishers = func(recordstore.ClientConfig) map[string]publish.Publisher {
		return map[string]publish.Publisher{"Facebook": fb}
	}

	report, err := s.ApproveAndPublish(context.Background(), clientID, post.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"fb987"}, report.Published)
	assert.Empty(t, report.Failed)

	require.Len(t, fb.posts, 1)
	assert.NotContains(t, fb.posts[0].Caption, "Hook:", "caption is formatted before publishing")
	assert.NotContains(t, fb.posts[0].Caption, "**")
	assert.Contains(t, fb.posts[0].Caption, "#chai", "hashtags ride along in the caption")

	updated, _ := mem.Get(context.Background(), recordstore.TablePosts, post.ID)
	assert.Equal(t, "Published", updated.Fields.Str("Publish Status", ""))
	assert.Equal(t, "fb987", updated.Fields.Str("Platform Post ID", ""))

	history, err := mem.List(context.Background(), recordstore.TableHistory, recordstore.Query{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApproveWithScheduleSkipsFuturePost(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)
	post := mem.Seed(recordstore.TablePosts, "recPost1", recordstore.Fields{
		"Client":          []string{clientID},
		"Channel":         "Facebook",
		"Caption":         "later",
		"Approval Status": "Needs Approval",
		"Publish Status":  "Draft",
	})

	fb := &fakePublisher{platform: "Facebook", result: publish.Result{Success: true, PostID: "fb1"}}
	s := newService(mem, &llm.Fake{})
	s.NewPublishers = func(recordstore.ClientConfig) map[string]publish.Publisher {
		return map[string]publish.Publisher{"Facebook": fb}
	}

	report, err := s.ApproveAndPublish(context.Background(), clientID, post.ID, time.Now().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, report.Published, "scheduled post stays queued until its slot")
	assert.Empty(t, fb.posts)

	updated, _ := mem.Get(context.Background(), recordstore.TablePosts, post.ID)
	assert.Equal(t, "Approved", updated.Fields.Str("Approval Status", ""))
	assert.Equal(t, "Draft", updated.Fields.Str("Publish Status", ""))
}

func TestPublishReadyRecordsFailures(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)
	mem.Seed(recordstore.TablePosts, "recPost1", recordstore.Fields{
		"Client":          []string{clientID},
		"Channel":         "Facebook",
		"Caption":         "x",
		"Approval Status": "Approved",
		"Publish Status":  "Draft",
	})
	mem.Seed(recordstore.TablePosts, "recPost2", recordstore.Fields{
		"Client":          []string{clientID},
		"Channel":         "Instagram", // no credentials for this one
		"Caption":         "y",
		"Approval Status": "Approved",
		"Publish Status":  "Draft",
	})

	fb := &fakePublisher{platform: "Facebook", result: publish.Result{Error: "expired token"}}
	s := newService(mem, &llm.Fake{})
	s.NewPublishers = func(recordstore.ClientConfig) map[string]publish.Publisher {
		return map[string]publish.Publisher{"Facebook": fb}
	}

	report, err := s.PublishReady(context.Background(), clientID, time.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Published)
	assert.ElementsMatch(t, []string{"recPost1", "recPost2"}, report.Failed)

	p1, _ := mem.Get(context.Background(), recordstore.TablePosts, "recPost1")
	assert.Equal(t, "Error", p1.Fields.Str("Publish Status", ""))
}

func TestSummaryCounts(t *testing.T) {
	mem := recordstore.NewMemory()
	clientID := seedClient(mem)
	now := time.Now().UTC().Format(time.RFC3339)

	mem.Seed(recordstore.TablePosts, "recP1", recordstore.Fields{
		"Client": []string{clientID}, "Created": now,
		"Approval Status": "Needs Approval", "Publish Status": "Draft",
	})
	mem.Seed(recordstore.TablePosts, "recP2", recordstore.Fields{
		"Client": []string{clientID}, "Created": now,
		"Approval Status": "Approved", "Publish Status": "Published",
	})
	mem.Seed(recordstore.TablePosts, "recP3", recordstore.Fields{
		"Client": []string{clientID}, "Created": now,
		"Approval Status": "Approved", "Publish Status": "Error",
	})
	// Old post outside the 7-day window.
	mem.Seed(recordstore.TablePosts, "recP4", recordstore.Fields{
		"Client": []string{clientID},
		"Created": time.Now().AddDate(0, 0, -30).UTC().Format(time.RFC3339),
		"Approval Status": "Approved", "Publish Status": "Published",
	})

	s := newService(mem, &llm.Fake{})
	rep, err := s.Summary(context.Background(), clientID)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Total)
	assert.Equal(t, 1, rep.Pending)
	assert.Equal(t, 1, rep.Published)
	assert.Equal(t, 1, rep.Errors)
}

// embeddingCSV builds a stored-embedding string long enough to pass the
// validity check, padding with zeros beyond the leading components.
func embeddingCSV(lead ...float64) string {
	parts := make([]string, 128)
	for i := range parts {
		parts[i] = "0"
	}
	for i, v := range lead {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ",")
}
