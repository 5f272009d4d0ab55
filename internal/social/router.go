// Package social is the marketing assistant's dialogue router: a state
// machine over conversation state that turns parsed intents into record
// mutations, background drafting tasks, and plain-text replies. Every
// side-effecting branch is guarded so a failure becomes an apologetic
// reply with state left at its last committed value; the conversation
// always remains resumable.
package social

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/convo"
	"github.com/postpilot/postpilot/internal/dispatch"
	"github.com/postpilot/postpilot/internal/flows"
	"github.com/postpilot/postpilot/internal/intent"
	"github.com/postpilot/postpilot/internal/llm"
	"github.com/postpilot/postpilot/internal/recordstore"
)

const (
	replyOops         = "⚠️ Something went wrong. Please try again later."
	replyHelp         = "🤔 Not sure what you mean. Try 'show', 'new', or 'analytics'."
	replyNoSelection  = "⚠️ No post selected. Reply 1/2/3 after 'show posts'."
	replyBadSelection = "⚠️ That number doesn't match any post. Try 1/2/3 after 'show'."
	replyDrafting     = "⌛ Great — creating your draft post. I'll notify you once it's ready!"
	replyDraftFailed  = "⚠️ Sorry, I couldn't create that post. Please try again."
)

// pendingIdea buffers the idea text between the awaiting_idea and
// awaiting_image steps. It lives in process memory only: a restart
// mid-collection just means re-asking for the idea.
type pendingIdea struct {
	text      string
	createdAt time.Time
}

// Router drives the per-user content conversation.
type Router struct {
	Convo    *convo.Store
	Tables   *recordstore.Tables
	Parser   *intent.Parser
	LLM      llm.Client
	Flows    *flows.Service
	Dispatch *dispatch.Dispatcher
	Sender   channel.Sender

	mu      sync.Mutex
	pending map[string]pendingIdea
}

// NewRouter wires the dialogue router.
func NewRouter(cv *convo.Store, tables *recordstore.Tables, parser *intent.Parser, client llm.Client, fl *flows.Service, d *dispatch.Dispatcher, sender channel.Sender) *Router {
	return &Router{
		Convo:    cv,
		Tables:   tables,
		Parser:   parser,
		LLM:      client,
		Flows:    fl,
		Dispatch: d,
		Sender:   sender,
		pending:  make(map[string]pendingIdea),
	}
}

// Handle routes one inbound message and returns the reply text. userID
// doubles as the client record ID; the orchestrator resolves phones to
// client IDs before calling here.
func (r *Router) Handle(ctx context.Context, userID, text, imageURL string) string {
	st := r.Convo.Get(ctx, userID)

	cfg, err := r.Tables.ClientConfig(ctx, userID)
	if err != nil {
		log.Printf("[Social] Cannot load client %s: %v", userID, err)
		return replyOops
	}

	if imageURL != "" {
		r.Convo.Update(ctx, userID, st.LastAction, convo.Data{LastImageURL: imageURL})
		st.LastImageURL = imageURL
	}

	action, pctx := r.Parser.Parse(text, st)
	if action == intent.ActionNone {
		action, pctx = r.classify(ctx, text, pctx)
	}
	if imageURL != "" && pctx.ImageURL == "" {
		pctx.ImageURL = imageURL
	}

	switch action {
	case intent.ActionGreeting:
		return r.showMenu(ctx, userID, cfg.Name)

	case intent.ActionShowPosts:
		return r.showPosts(ctx, userID, 3, "📝 Top posts:")

	case intent.ActionShowAllPosts:
		return r.showPosts(ctx, userID, 50, "📋 All pending posts:")

	case intent.ActionPostSelected:
		r.Convo.Update(ctx, userID, convo.StepPostSelected, convo.Data{LastPostID: pctx.PostID})
		return fmt.Sprintf("👍 Selected post %s. Say 'publish' to approve or 'update' to change it.", pctx.PostID)

	case intent.ActionInvalidSelection:
		return replyBadSelection

	case intent.ActionMenu:
		return r.menuShortcut(ctx, userID, pctx.PostIndex)

	case intent.ActionApprovePost:
		return r.approve(ctx, userID, st, pctx)

	case intent.ActionModifyPost:
		return r.startUpdate(ctx, userID, st, pctx)

	case intent.ActionUpdateText:
		return r.applyUpdate(ctx, userID, st, pctx.Text)

	case intent.ActionCurateIdeas:
		r.Convo.Update(ctx, userID, convo.StepAwaitingIdea, convo.Data{})
		return "💡 Great — let's create something new!\n" +
			"Please type your idea or content (e.g., 'Promote my weekend café offer').\n" +
			"You can also send an image with it.\n\n" +
			"Say 'skip' to go back to menu."

	case intent.ActionIdeaText:
		r.stashIdea(userID, pctx.Text)
		r.Convo.Update(ctx, userID, convo.StepAwaitingImage, convo.Data{})
		return "📝 Got your idea text!\n" +
			"If you want to add an image, please send it now.\n" +
			"Otherwise, type 'done' to continue."

	case intent.ActionImageNote:
		return r.collectImage(ctx, userID, pctx)

	case intent.ActionDone:
		if st.LastAction == convo.StepAwaitingImage {
			return r.startDraftFromPending(ctx, userID, "")
		}
		r.Convo.Update(ctx, userID, convo.StepMenu, convo.Data{})
		return "👍 No worries. Back to main menu."

	case intent.ActionSkip:
		r.clearPending(userID)
		r.Convo.Update(ctx, userID, convo.StepMenu, convo.Data{})
		return "👍 No worries. Back to main menu."

	case intent.ActionCreateFromIdea:
		return r.startDraft(ctx, userID, pctx.Text, pctx.ImageURL)

	case intent.ActionAnalytics:
		return r.analytics(ctx, userID)

	case intent.ActionSummary:
		return r.summary(ctx, userID)
	}

	return replyHelp
}

// classify escalates to the LLM when no rule matched. Any trouble there
// degrades to the generic help path, never an error.
func (r *Router) classify(ctx context.Context, text string, pctx intent.Context) (intent.Action, intent.Context) {
	cl, err := llm.ClassifyIntent(ctx, r.LLM, text)
	if err != nil {
		log.Printf("[Social] Intent fallback failed: %v", err)
		return intent.ActionNone, pctx
	}
	switch cl.Action {
	case "show_posts":
		return intent.ActionShowPosts, pctx
	case "create_post", "curate_ideas":
		if cl.Idea != "" {
			pctx.Text = cl.Idea
			return intent.ActionCreateFromIdea, pctx
		}
		return intent.ActionCurateIdeas, pctx
	case "approve_post":
		return intent.ActionApprovePost, pctx
	case "modify_post":
		return intent.ActionModifyPost, pctx
	case "analytics":
		return intent.ActionAnalytics, pctx
	case "summary":
		return intent.ActionSummary, pctx
	}
	return intent.ActionNone, pctx
}

func (r *Router) showMenu(ctx context.Context, userID, clientName string) string {
	r.Convo.Reset(ctx, userID)
	return fmt.Sprintf("👋 Hi %s, PostPilot here – your Social Media Agent.\n", clientName) +
		"What would you like to do?\n" +
		"show → Show top 3 posts\n" +
		"all → Show all pending posts\n" +
		"new → Create a new post\n" +
		"report → Weekly summary\n" +
		"analytics → See analytics\n" +
		"Say 'exit' anytime to leave."
}

func (r *Router) showPosts(ctx context.Context, userID string, limit int, header string) string {
	posts, err := r.Tables.PostsByApproval(ctx, userID, "Needs Approval", limit)
	if err != nil {
		log.Printf("[Social] Cannot list posts for %s: %v", userID, err)
		return replyOops
	}
	if len(posts) == 0 {
		return "❌ No curated posts available right now."
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	r.Convo.Update(ctx, userID, convo.StepShowPosts, convo.Data{PostOptions: ids})
	return header + "\n" + fmtPostsList(posts) + "\n\nReply 'approve 1/2/3' to choose, or say 'none'."
}

// menuShortcut maps a bare digit typed at the menu onto the menu lines.
func (r *Router) menuShortcut(ctx context.Context, userID string, index int) string {
	switch index {
	case 1:
		return r.showPosts(ctx, userID, 3, "📝 Top posts:")
	case 2:
		return r.showPosts(ctx, userID, 50, "📋 All pending posts:")
	case 3:
		r.Convo.Update(ctx, userID, convo.StepAwaitingIdea, convo.Data{})
		return "💡 Please type your idea or content. Say 'skip' to go back."
	case 4:
		return r.summary(ctx, userID)
	case 5:
		return r.analytics(ctx, userID)
	}
	return replyHelp
}

func (r *Router) approve(ctx context.Context, userID string, st convo.State, pctx intent.Context) string {
	postID := pctx.PostID
	if postID == "" && pctx.PostIndex > 0 {
		if pctx.PostIndex > len(st.PostOptions) {
			return replyBadSelection
		}
		postID = st.PostOptions[pctx.PostIndex-1]
	}
	if postID == "" {
		postID = st.LastPostID
	}
	if postID == "" {
		return replyNoSelection
	}

	if err := r.Tables.ApprovePost(ctx, postID, pctx.ScheduleAt); err != nil {
		log.Printf("[Social] Cannot approve post %s: %v", postID, err)
		return "⚠️ Couldn't approve that post. Please try again."
	}
	r.Convo.Update(ctx, userID, convo.StepMenu, convo.Data{LastPostID: postID})

	notify := userID
	r.Dispatch.Submit(dispatch.Task{
		Kind:     "publish_sweep",
		ClientID: userID,
		Notify:   notify,
		FailText: "⚠️ Couldn't publish that post. Please try again.",
		Run: func(taskCtx context.Context) error {
			report, err := r.Flows.PublishReady(taskCtx, userID, time.Now())
			if err != nil {
				return err
			}
			if len(report.Published) == 0 && len(report.Failed) == 0 {
				// Scheduled for later; the sweep will pick it up.
				return nil
			}
			msg := fmt.Sprintf("✅ Published %d post(s).", len(report.Published))
			if len(report.Failed) > 0 {
				msg += fmt.Sprintf(" ⚠️ %d failed — check your dashboard.", len(report.Failed))
			}
			return r.Sender.Send(taskCtx, notify, msg)
		},
	})

	if !pctx.ScheduleAt.IsZero() {
		return fmt.Sprintf("✅ Post approved and scheduled for %s.", pctx.ScheduleAt.Format("Mon Jan 2 15:04"))
	}
	return "✅ Post approved & publish started. I'll confirm shortly."
}

func (r *Router) startUpdate(ctx context.Context, userID string, st convo.State, pctx intent.Context) string {
	postID := pctx.PostID
	if postID == "" {
		postID = st.LastPostID
	}
	if postID == "" {
		return replyNoSelection
	}
	r.Convo.Update(ctx, userID, convo.StepUpdatePending, convo.Data{LastPostID: postID})
	return "✏️ Sure — send new caption text or image URL."
}

// applyUpdate consumes the free text after a modify request. A URL with
// an image extension replaces the image; anything else becomes the new
// caption.
func (r *Router) applyUpdate(ctx context.Context, userID string, st convo.State, text string) string {
	postID := st.LastPostID
	if postID == "" {
		return "⚠️ No post selected. Use 'show posts' first."
	}

	var note string
	if isImageURL(text) {
		if err := r.Tables.UpdatePostImage(ctx, postID, strings.TrimSpace(text)); err != nil {
			log.Printf("[Social] Cannot update image on %s: %v", postID, err)
			return replyOops
		}
		note = "🖼️ Image updated."
	} else {
		if err := r.Tables.UpdatePostCaption(ctx, postID, text); err != nil {
			log.Printf("[Social] Cannot update caption on %s: %v", postID, err)
			return replyOops
		}
		note = "✏️ Caption updated."
	}

	r.Convo.Update(ctx, userID, convo.StepPostSelected, convo.Data{LastPostID: postID})

	post, err := r.Tables.GetPost(ctx, postID)
	if err != nil {
		log.Printf("[Social] Cannot fetch updated post %s: %v", postID, err)
		return note + " Say 'publish' when ready."
	}
	preview := fmt.Sprintf("%s\n\n📝 Updated caption:\n%s", note, post.Fields.Str("Caption", "[No caption]"))
	if img := post.Fields.AttachmentURL("Image URL"); img != "" {
		preview += "\n🖼️ " + img
	}
	return preview + "\n\nSay 'publish' when ready."
}

func (r *Router) collectImage(ctx context.Context, userID string, pctx intent.Context) string {
	// Media attachment or a pasted image URL both complete the draft.
	imageURL := pctx.ImageURL
	if imageURL == "" && isImageURL(pctx.Text) {
		imageURL = strings.TrimSpace(pctx.Text)
	}
	if imageURL == "" {
		return "🖼️ Send an image (or image URL), or type 'done' to continue without one."
	}
	return r.startDraftFromPending(ctx, userID, imageURL)
}

// startDraftFromPending finishes the two-step idea collection.
func (r *Router) startDraftFromPending(ctx context.Context, userID, imageURL string) string {
	r.mu.Lock()
	pending, ok := r.pending[userID]
	delete(r.pending, userID)
	r.mu.Unlock()

	if !ok || pending.text == "" {
		r.Convo.Update(ctx, userID, convo.StepAwaitingIdea, convo.Data{})
		return "💡 I lost track of your idea — please type it again."
	}
	reply := r.startDraft(ctx, userID, pending.text, imageURL)
	if imageURL != "" && reply == replyDrafting {
		return "⌛ Awesome — got your image too! Creating your draft now..."
	}
	return reply
}

// startDraft dispatches the slow drafting flow and parks the user in
// the curating step. The task pushes its own completion message and
// moves state to post_selected so 'publish'/'update' resolve next.
func (r *Router) startDraft(ctx context.Context, userID, ideaText, imageURL string) string {
	if strings.TrimSpace(ideaText) == "" {
		return replyHelp
	}
	r.Convo.Update(ctx, userID, convo.StepCurating, convo.Data{})

	r.Dispatch.Submit(dispatch.Task{
		Kind:     "create_post",
		ClientID: userID,
		Notify:   userID,
		FailText: replyDraftFailed,
		Run: func(taskCtx context.Context) error {
			res, err := r.Flows.SubmitIdea(taskCtx, userID, ideaText, imageURL)
			if err != nil {
				return err
			}
			r.Convo.Update(taskCtx, userID, convo.StepPostSelected, convo.Data{LastPostID: res.PostID})

			msg := "📝 Draft created:\n" + res.Caption
			if imageURL != "" {
				msg += "\n🖼️ " + imageURL
			}
			msg += "\n\nSay 'publish' to approve or 'update' to edit."
			return r.Sender.Send(taskCtx, userID, msg)
		},
	})
	return replyDrafting
}

func (r *Router) analytics(ctx context.Context, userID string) string {
	snap, err := r.Flows.Analytics(ctx, userID)
	if err != nil {
		log.Printf("[Social] Cannot fetch analytics for %s: %v", userID, err)
		return replyOops
	}
	return fmt.Sprintf("📈 Analytics Summary:\nReach: %d\nImpressions: %d\nClicks: %d\nCTR: %s",
		snap.Reach, snap.Impressions, snap.Clicks, snap.CTR)
}

func (r *Router) summary(ctx context.Context, userID string) string {
	rep, err := r.Flows.Summary(ctx, userID)
	if err != nil {
		log.Printf("[Social] Cannot build summary for %s: %v", userID, err)
		return replyOops
	}
	return fmt.Sprintf("📊 This week:\n%d posts total\n%d awaiting approval\n%d approved\n%d published\n%d failed",
		rep.Total, rep.Pending, rep.Approved, rep.Published, rep.Errors)
}

func (r *Router) stashIdea(userID, text string) {
	r.mu.Lock()
	r.pending[userID] = pendingIdea{text: text, createdAt: time.Now()}
	r.mu.Unlock()
}

func (r *Router) clearPending(userID string) {
	r.mu.Lock()
	delete(r.pending, userID)
	r.mu.Unlock()
}

// fmtPostsList renders numbered caption previews.
func fmtPostsList(posts []recordstore.Record) string {
	lines := make([]string, len(posts))
	for i, post := range posts {
		caption := post.Fields.Str("Caption", "")
		if len(caption) > 110 {
			caption = caption[:110] + "…"
		}
		lines[i] = fmt.Sprintf("%d. %s", i+1, caption)
	}
	return strings.Join(lines, "\n")
}

func isImageURL(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(t, "http") {
		return false
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(t, ext) {
			return true
		}
	}
	return false
}
