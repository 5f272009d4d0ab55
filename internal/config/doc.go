// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level postpilot configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	Records  RecordsConfig  `json:"records"`
	LLM      LLMConfig      `json:"llm"`
	Channel  ChannelConfig  `json:"channel"`
	Server   ServerConfig   `json:"server"`
	Dispatch DispatchConfig `json:"dispatch"`
	Session  SessionConfig  `json:"session"`
	Intent   IntentConfig   `json:"intent"`
}

// RecordsConfig holds record store (CRM base) connection settings.
type RecordsConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
	BaseID  string `json:"baseId,omitempty"`
}

// LLMConfig holds model provider settings.
type LLMConfig struct {
	APIKey      string  `json:"apiKey,omitempty"`
	APIBase     string  `json:"apiBase,omitempty"`
	Model       string  `json:"model,omitempty"`
	EmbedModel  string  `json:"embedModel,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// ChannelConfig holds per-channel settings.
type ChannelConfig struct {
	Twilio *TwilioConfig `json:"twilio,omitempty"`
	Bridge *BridgeConfig `json:"bridge,omitempty"`
}

// TwilioConfig holds Twilio WhatsApp sender settings.
type TwilioConfig struct {
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	FromNumber string `json:"fromNumber"`
}

// BridgeConfig holds the websocket relay settings used instead of Twilio
// when running against a self-hosted WhatsApp bridge.
type BridgeConfig struct {
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// ServerConfig holds webhook server settings.
type ServerConfig struct {
	Port int    `json:"port,omitempty"`
	Host string `json:"host,omitempty"`
	// ReplyTimeout is how many seconds the webhook waits for a reply
	// before answering with a "still working" message.
	ReplyTimeout int `json:"replyTimeout,omitempty"`
}

// DispatchConfig holds background task pool settings.
type DispatchConfig struct {
	Workers     int `json:"workers,omitempty"`
	QueueSize   int `json:"queueSize,omitempty"`
	TaskTimeout int `json:"taskTimeout,omitempty"` // seconds
}

// SessionConfig holds the session and conversation cache settings.
type SessionConfig struct {
	// RedisURL switches the caches from in-process maps to Redis.
	RedisURL string `json:"redisUrl,omitempty"`
	TTL      int    `json:"ttl,omitempty"` // seconds a session survives without traffic
}

// IntentConfig holds intent parser settings.
type IntentConfig struct {
	// KeywordsDir points at a directory of per-client YAML keyword
	// overrides. Empty means built-in keywords only.
	KeywordsDir string `json:"keywordsDir,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Model:      "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Server: ServerConfig{
			Port:         8000,
			Host:         "0.0.0.0",
			ReplyTimeout: 20,
		},
		Dispatch: DispatchConfig{
			Workers:     4,
			QueueSize:   64,
			TaskTimeout: 300,
		},
		Session: SessionConfig{
			TTL: 900,
		},
	}
}
