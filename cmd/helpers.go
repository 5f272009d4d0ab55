package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/postpilot/postpilot/internal/channel"
	"github.com/postpilot/postpilot/internal/config"
	"github.com/postpilot/postpilot/internal/convo"
	"github.com/postpilot/postpilot/internal/dispatch"
	"github.com/postpilot/postpilot/internal/flows"
	"github.com/postpilot/postpilot/internal/intent"
	"github.com/postpilot/postpilot/internal/llm"
	"github.com/postpilot/postpilot/internal/orchestrator"
	"github.com/postpilot/postpilot/internal/recordstore"
	"github.com/postpilot/postpilot/internal/session"
	"github.com/postpilot/postpilot/internal/social"
	"github.com/postpilot/postpilot/internal/store"
)

// app bundles the wired components shared by serve, bridge, workflow
// and chat. Close stops the dispatcher.
type app struct {
	cfg      config.Config
	tables   *recordstore.Tables
	flows    *flows.Service
	dispatch *dispatch.Dispatcher
	orch     *orchestrator.Orchestrator
	sender   channel.Sender
}

func (a *app) Close() { a.dispatch.Stop() }

// buildApp assembles the full stack. newSender receives the wired
// tables so transports can resolve client record IDs to phone numbers.
// Settings resolve config.json first, environment variables second.
func buildApp(cfg config.Config, newSender func(tables *recordstore.Tables) channel.Sender) (*app, error) {
	tables, err := makeTables(cfg.Records)
	if err != nil {
		return nil, err
	}
	sender := newSender(tables)
	model := makeLLM(cfg.LLM)

	parser := intent.NewParser()
	if dir := cfg.Intent.KeywordsDir; dir != "" {
		if err := parser.LoadKeywords(dir); err != nil {
			return nil, fmt.Errorf("loading keyword overrides: %w", err)
		}
	}

	ttl := time.Duration(cfg.Session.TTL) * time.Second
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	convoBackend, err := makeBackend(cfg.Session, tables.C, "convo", recordstore.TableStates, ttl)
	if err != nil {
		return nil, err
	}
	sessionBackend, err := makeBackend(cfg.Session, tables.C, "session", recordstore.TableSessions, ttl)
	if err != nil {
		return nil, err
	}

	fl := flows.New(tables, model)
	disp := dispatch.New(dispatch.Config{
		Workers:     cfg.Dispatch.Workers,
		QueueSize:   cfg.Dispatch.QueueSize,
		TaskTimeout: time.Duration(cfg.Dispatch.TaskTimeout) * time.Second,
	}, tables, sender)

	socialRouter := social.NewRouter(
		convo.NewStore(convoBackend, ttl),
		tables, parser, model, fl, disp, sender,
	)
	sessions := session.NewStore(sessionBackend, ttl)

	return &app{
		cfg:      cfg,
		tables:   tables,
		flows:    fl,
		dispatch: disp,
		orch:     orchestrator.New(sessions, socialRouter),
		sender:   sender,
	}, nil
}

func makeTables(rc config.RecordsConfig) (*recordstore.Tables, error) {
	apiKey := rc.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("AIRTABLE_API_KEY")
	}
	baseID := rc.BaseID
	if baseID == "" {
		baseID = os.Getenv("AIRTABLE_BASE_ID")
	}
	if apiKey == "" || baseID == "" {
		return nil, fmt.Errorf("record store not configured (records.apiKey/baseId or AIRTABLE_API_KEY/AIRTABLE_BASE_ID)")
	}
	return recordstore.NewTables(recordstore.NewHTTPClient(apiKey, rc.BaseURL, baseID)), nil
}

func makeLLM(lc config.LLMConfig) *llm.HTTPClient {
	apiKey := lc.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	client := llm.NewHTTPClient(apiKey, lc.APIBase, lc.Model)
	if lc.EmbedModel != "" {
		client.EmbedModel = lc.EmbedModel
	}
	return client
}

// makeBackend picks the durable layer for a cache: Redis when
// configured, otherwise the record store's state tables (one row per
// user, blob in a text column).
func makeBackend(sc config.SessionConfig, client recordstore.Client, prefix, table string, ttl time.Duration) (store.Backend, error) {
	if sc.RedisURL != "" {
		backend, err := store.NewRedisBackend(sc.RedisURL, "postpilot:"+prefix+":", ttl)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		log.Printf("[Init] %s store on redis", prefix)
		return backend, nil
	}
	return store.NewRecordBackend(client, table, "User ID", "Data"), nil
}

// makeTwilio builds the outbound WhatsApp sender for webhook mode.
func makeTwilio(cfg config.Config) (*channel.Twilio, error) {
	var sid, token, from string
	if tw := cfg.Channel.Twilio; tw != nil {
		sid, token, from = tw.AccountSID, tw.AuthToken, tw.FromNumber
	}
	if sid == "" {
		sid = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if token == "" {
		token = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if from == "" {
		from = os.Getenv("TWILIO_WHATSAPP_NUMBER")
	}
	if sid == "" || token == "" || from == "" {
		return nil, fmt.Errorf("twilio not configured (channel.twilio or TWILIO_* env vars)")
	}
	return channel.NewTwilio(sid, token, from), nil
}

// phoneSender adapts a transport to the internal addressing scheme:
// everything inside the app addresses users by client record ID, while
// Twilio and the bridge want the client's WhatsApp phone.
type phoneSender struct {
	tables *recordstore.Tables
	inner  channel.Sender
}

func (p phoneSender) Name() string { return p.inner.Name() }

func (p phoneSender) Send(ctx context.Context, clientID, body string) error {
	cfg, err := p.tables.ClientConfig(ctx, clientID)
	if err != nil {
		return fmt.Errorf("resolve client %s: %w", clientID, err)
	}
	if cfg.Phone == "" {
		return fmt.Errorf("client %s has no WhatsApp phone on file", clientID)
	}
	return p.inner.Send(ctx, cfg.Phone, body)
}

// consoleSender prints background-task messages to stdout. Used by the
// chat and workflow commands where there is no real transport.
type consoleSender struct{}

func (consoleSender) Name() string { return "console" }

func (consoleSender) Send(_ context.Context, to, body string) error {
	fmt.Printf("\n🤖 [to %s]\n%s\n", to, body)
	return nil
}
