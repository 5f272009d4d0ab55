// Package intent maps raw chat text plus the current dialogue state to a
// deterministic (action, context) pair. Rules are an explicit ordered list
// evaluated first-match-wins: the order of the slice IS the priority, so a
// message containing both "show" and "new" always resolves to whichever
// rule sits earlier in the list. Messages no rule claims return ActionNone,
// signaling the caller to escalate to the LLM classifier.
package intent

import (
	"strconv"
	"strings"
	"time"

	"github.com/postpilot/postpilot/internal/convo"
)

// Action is a parsed user intention.
type Action string

const (
	ActionNone             Action = ""
	ActionGreeting         Action = "greeting"
	ActionMenu             Action = "menu"
	ActionDone             Action = "done"
	ActionSkip             Action = "skip"
	ActionShowPosts        Action = "show_posts"
	ActionShowAllPosts     Action = "show_all_posts"
	ActionCurateIdeas      Action = "curate_ideas"
	ActionModifyPost       Action = "modify_post"
	ActionApprovePost      Action = "approve_post"
	ActionPostSelected     Action = "post_selected"
	ActionIdeaSelected     Action = "idea_selected"
	ActionInvalidSelection Action = "selection_invalid"
	ActionIdeaText         Action = "idea_text"
	ActionImageNote        Action = "image_note"
	ActionUpdateText       Action = "update_text"
	ActionAnalytics        Action = "analytics"
	ActionSummary          Action = "summary"
	ActionCreateFromIdea   Action = "create_from_idea"
)

// Context carries whatever a rule extracted alongside the action.
type Context struct {
	PostID        string
	IdeaID        string
	PostIndex     int // 1-based index from "approve 2"; 0 = not given
	Text          string
	ImageURL      string
	Modifications map[string]string
	ScheduleAt    time.Time // zero = publish immediately
}

// rule couples a name with its matcher. A matcher returns ActionNone to
// pass the message to the next rule.
type rule struct {
	name  string
	match func(p *Parser, msg, raw string, st convo.State, ctx *Context) Action
}

// Parser is the deterministic rule engine. Keyword sets have baked-in
// defaults and may be overridden from YAML rule files (see LoadKeywords).
type Parser struct {
	greetings   []string
	exits       []string
	showKws     []string
	showAllKws  []string
	newKws      []string
	modifyKws   []string
	approveKws  []string
	analyticsKw []string
	summaryKws  []string
	creativeKws []string

	rules []rule
}

// NewParser creates a parser with the default keyword sets.
func NewParser() *Parser {
	p := &Parser{
		greetings:   []string{"hi", "hello", "hey", "start", "menu"},
		exits:       []string{"done", "skip", "no", "that's all"},
		showKws:     []string{"show", "see posts", "pending posts"},
		showAllKws:  []string{"all", "show all", "all posts"},
		newKws:      []string{"new", "create new", "new idea", "generate"},
		modifyKws:   []string{"update", "edit", "change", "modify"},
		approveKws:  []string{"approve", "publish"},
		analyticsKw: []string{"analytics"},
		summaryKws:  []string{"summary", "report", "performance"},
		creativeKws: []string{"post about", "idea", "create post", "make a post"},
	}
	// Order IS priority. Collection steps capture free text right after
	// the exit keywords so idea text containing "show" or "new" is not
	// hijacked into a fresh command; the update_pending continuation sits
	// after the keyword rules so "publish" still approves from there.
	p.rules = []rule{
		{"greeting", (*Parser).matchGreeting},
		{"exit", (*Parser).matchExit},
		{"collection-continuation", (*Parser).matchCollection},
		{"show-all-posts", (*Parser).matchShowAll},
		{"show-posts", (*Parser).matchShow},
		{"create-new-idea", (*Parser).matchNew},
		{"modify-post", (*Parser).matchModify},
		{"approve-post", (*Parser).matchApprove},
		{"numeric-selection", (*Parser).matchSelection},
		{"analytics", (*Parser).matchAnalytics},
		{"summary", (*Parser).matchSummary},
		{"update-continuation", (*Parser).matchUpdatePending},
		{"creative-idea", (*Parser).matchCreative},
	}
	return p
}

// Parse runs the rule list against a message. raw preserves the user's
// original casing for payload capture; matching happens on the lowered,
// trimmed form.
func (p *Parser) Parse(raw string, st convo.State) (Action, Context) {
	msg := strings.ToLower(strings.TrimSpace(raw))
	ctx := Context{}
	for _, r := range p.rules {
		if action := r.match(p, msg, strings.TrimSpace(raw), st, &ctx); action != ActionNone {
			return action, ctx
		}
	}
	return ActionNone, ctx
}

// --- matchers, in priority order ---

func (p *Parser) matchGreeting(msg, _ string, _ convo.State, _ *Context) Action {
	if exact(msg, p.greetings) {
		return ActionGreeting
	}
	return ActionNone
}

func (p *Parser) matchExit(msg, _ string, _ convo.State, _ *Context) Action {
	if msg == "skip" || msg == "none" {
		return ActionSkip
	}
	if exact(msg, p.exits) {
		return ActionDone
	}
	return ActionNone
}

func (p *Parser) matchShowAll(msg, _ string, _ convo.State, _ *Context) Action {
	if containsAny(msg, p.showAllKws) {
		return ActionShowAllPosts
	}
	return ActionNone
}

func (p *Parser) matchShow(msg, _ string, _ convo.State, _ *Context) Action {
	if containsAny(msg, p.showKws) {
		return ActionShowPosts
	}
	return ActionNone
}

func (p *Parser) matchNew(msg, _ string, _ convo.State, _ *Context) Action {
	if containsAny(msg, p.newKws) {
		return ActionCurateIdeas
	}
	return ActionNone
}

func (p *Parser) matchModify(msg, _ string, st convo.State, ctx *Context) Action {
	if !containsAny(msg, p.modifyKws) {
		return ActionNone
	}
	ctx.PostID = st.LastPostID
	ctx.Modifications = extractModifications(msg)
	return ActionModifyPost
}

func (p *Parser) matchApprove(msg, _ string, _ convo.State, ctx *Context) Action {
	matched := false
	for _, kw := range p.approveKws {
		if msg == kw || strings.HasPrefix(msg, kw+" ") {
			matched = true
			break
		}
	}
	if !matched {
		return ActionNone
	}
	// The post index is the first bare digit run; digit runs that carry
	// ":mm" or am/pm belong to the schedule clock, not the index.
	for _, m := range clockExpr.FindAllStringSubmatch(msg, -1) {
		if m[2] == "" && m[3] == "" {
			ctx.PostIndex, _ = strconv.Atoi(m[1])
			break
		}
	}
	ctx.ScheduleAt = ParseScheduleTime(msg, time.Now())
	return ActionApprovePost
}

var ordinals = map[string]int{"first": 1, "second": 2, "third": 3}

func (p *Parser) matchSelection(msg, _ string, st convo.State, ctx *Context) Action {
	index := 0
	if n, err := strconv.Atoi(msg); err == nil && n > 0 {
		index = n
	} else if n, ok := ordinals[msg]; ok {
		index = n
	}
	if index == 0 {
		return ActionNone
	}

	// Numeric replies are only selections right after the show step that
	// populated the option list; anywhere else they resolve against the
	// top-level menu mapping.
	switch st.LastAction {
	case convo.StepShowPosts:
		if index <= len(st.PostOptions) {
			ctx.PostID = st.PostOptions[index-1]
			return ActionPostSelected
		}
		ctx.PostIndex = index
		return ActionInvalidSelection
	case convo.StepShowIdeas:
		if index <= len(st.IdeaOptions) {
			ctx.IdeaID = st.IdeaOptions[index-1]
			return ActionIdeaSelected
		}
		ctx.PostIndex = index
		return ActionInvalidSelection
	}
	ctx.PostIndex = index
	return ActionMenu
}

func (p *Parser) matchAnalytics(msg, _ string, _ convo.State, _ *Context) Action {
	if containsAny(msg, p.analyticsKw) {
		return ActionAnalytics
	}
	return ActionNone
}

func (p *Parser) matchSummary(msg, _ string, _ convo.State, _ *Context) Action {
	if containsAny(msg, p.summaryKws) {
		return ActionSummary
	}
	return ActionNone
}

// matchCollection captures free text as the expected payload of a draft
// collection step. Exit keywords never reach here: they match earlier.
func (p *Parser) matchCollection(_, raw string, st convo.State, ctx *Context) Action {
	switch st.LastAction {
	case convo.StepAwaitingIdea:
		ctx.Text = raw
		return ActionIdeaText
	case convo.StepAwaitingImage:
		ctx.Text = raw
		return ActionImageNote
	}
	return ActionNone
}

func (p *Parser) matchUpdatePending(_, raw string, st convo.State, ctx *Context) Action {
	if st.LastAction != convo.StepUpdatePending {
		return ActionNone
	}
	ctx.Text = raw
	return ActionUpdateText
}

func (p *Parser) matchCreative(msg, raw string, st convo.State, ctx *Context) Action {
	if !containsAny(msg, p.creativeKws) {
		return ActionNone
	}
	ctx.Text = extractIdeaText(raw)
	ctx.ImageURL = st.LastImageURL
	return ActionCreateFromIdea
}

// --- helpers ---

func exact(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if msg == kw {
			return true
		}
	}
	return false
}

func containsAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func extractModifications(msg string) map[string]string {
	mods := make(map[string]string)
	if strings.Contains(msg, "image") || strings.Contains(msg, "photo") {
		mods["image"] = "change_requested"
	}
	for _, kw := range []string{"content", "caption", "text"} {
		if strings.Contains(msg, kw) {
			mods["content"] = "change_requested"
			break
		}
	}
	if strings.Contains(msg, "hashtag") {
		mods["hashtags"] = "change_requested"
	}
	return mods
}

func extractIdeaText(raw string) string {
	lower := strings.ToLower(raw)
	for _, phrase := range []string{"take this idea", "create post", "make a post", "post about", "idea for", "idea"} {
		for {
			i := strings.Index(lower, phrase)
			if i < 0 {
				break
			}
			raw = raw[:i] + raw[i+len(phrase):]
			lower = lower[:i] + lower[i+len(phrase):]
		}
	}
	return strings.TrimSpace(raw)
}
