package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents runtime configuration for the service. It is built once by
// Load and treated as read-only afterwards.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Assistant   AssistantConfig           `json:"assistant"`
	Provider    string                    `json:"provider"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Slack       SlackConfig               `json:"slack"`
	Delivery    DeliveryConfig            `json:"delivery"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"-"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	HistoryLimit      int    `json:"history_limit"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // seconds
	TaskTimeout       int    `json:"task_timeout"`        // seconds
}

// SlackConfig holds the platform credentials. Secrets only come from the environment.
type SlackConfig struct {
	SigningSecret string `json:"-"`
	BotToken      string `json:"-"`
	LogLevel      string `json:"-"`
	APIURL        string `json:"api_url"`
}

type SuggestedPrompt struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type AssistantConfig struct {
	Greeting              string            `json:"greeting"`
	Status                string            `json:"status"`
	SystemInstruction     string            `json:"system_instruction"`
	SuggestedPromptsTitle string            `json:"suggested_prompts_title"`
	SuggestedPrompts      []SuggestedPrompt `json:"suggested_prompts"`
	CommandName           string            `json:"command_name"`
	CommandReply          string            `json:"command_reply"`
}

type DeliveryConfig struct {
	Backend string `json:"backend"` // none, redis, sqlite3, mysql
	TTL     int    `json:"ttl"`     // seconds, redis only
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

const (
	EnvConfigPath    = "MOOAI_CONFIG"
	EnvProvider      = "MOOAI_PROVIDER"
	EnvModel         = "MOOAI_MODEL"
	EnvSigningSecret = "SLACK_SIGNING_SECRET"
	EnvBotToken      = "SLACK_BOT_TOKEN"
	EnvLogLevel      = "SLACK_LOGGING_LEVEL"
)

// providerKeyEnv maps a completion provider to the environment variable holding its API key.
var providerKeyEnv = map[string]string{
	"openai":   "OPENAI_API_KEY",
	"claude":   "ANTHROPIC_API_KEY",
	"gemini":   "GEMINI_API_KEY",
	"deepseek": "DEEPSEEK_API_KEY",
	"ark":      "ARK_API_KEY",
}

var defaultModels = map[string]string{
	"openai":   "gpt-4o-mini",
	"claude":   "claude-3-5-haiku-latest",
	"gemini":   "gemini-2.0-flash",
	"deepseek": "deepseek-chat",
}

var logLevels = map[string]struct{}{
	"DEBUG": {},
	"INFO":  {},
	"WARN":  {},
	"ERROR": {},
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		BasicConfig: BasicConfig{
			ServerAddress:     ":8090",
			HistoryLimit:      100,
			MinWorkers:        1,
			MaxWorkers:        4,
			QueueSize:         64,
			WorkerIdleTimeout: 30,
			TaskTimeout:       10,
		},
		Assistant: AssistantConfig{
			Greeting:          "Hi, how can I help you today?",
			Status:            "is typing...",
			SystemInstruction: "You are MooAI, a friendly assistant living in Slack. Answer concisely and use Slack mrkdwn formatting.",
			SuggestedPrompts: []SuggestedPrompt{
				{Title: "What does SLACK stand for?", Message: "What does SLACK stand for?"},
			},
			CommandName:  "/moo-hello",
			CommandReply: "🐮 Mooooooo from MooAI!",
		},
		Provider:  "openai",
		Providers: map[string]ProviderConfig{},
		Delivery: DeliveryConfig{
			Backend: "none",
			TTL:     3600,
		},
		Databases: map[string]DatabaseConfig{},
	}
}

// Load reads configuration from the provided path (falls back to MOOAI_CONFIG, then
// to defaults only), overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	for name, db := range cfg.Databases {
		if name == "sqlite3" && db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Slack.SigningSecret = strings.TrimSpace(os.Getenv(EnvSigningSecret))
	cfg.Slack.BotToken = strings.TrimSpace(os.Getenv(EnvBotToken))
	cfg.Slack.LogLevel = strings.ToUpper(strings.TrimSpace(os.Getenv(EnvLogLevel)))

	if v := strings.TrimSpace(os.Getenv(EnvProvider)); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	prov := cfg.Providers[cfg.Provider]
	if v := strings.TrimSpace(os.Getenv(EnvModel)); v != "" {
		prov.Model = v
	}
	if prov.Model == "" {
		prov.Model = defaultModels[cfg.Provider]
	}
	if env, ok := providerKeyEnv[cfg.Provider]; ok {
		prov.APIKey = strings.TrimSpace(os.Getenv(env))
	}
	cfg.Providers[cfg.Provider] = prov
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Slack.SigningSecret == "" {
		errs = append(errs, fmt.Errorf("%s must be set", EnvSigningSecret))
	}
	if c.Slack.BotToken == "" {
		errs = append(errs, fmt.Errorf("%s must be set", EnvBotToken))
	}
	if c.Slack.LogLevel == "" {
		errs = append(errs, fmt.Errorf("%s must be set", EnvLogLevel))
	} else if _, ok := logLevels[c.Slack.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("%s must be one of DEBUG, INFO, WARN, ERROR; got %q", EnvLogLevel, c.Slack.LogLevel))
	}

	keyEnv, ok := providerKeyEnv[c.Provider]
	if !ok {
		errs = append(errs, fmt.Errorf("unsupported provider: %s", c.Provider))
	} else {
		prov := c.Providers[c.Provider]
		if prov.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s must be set for provider %s", keyEnv, c.Provider))
		}
		if prov.Model == "" {
			errs = append(errs, fmt.Errorf("model must be configured for provider %s", c.Provider))
		}
	}

	if c.Assistant.CommandName == "" || !strings.HasPrefix(c.Assistant.CommandName, "/") {
		errs = append(errs, fmt.Errorf("command_name must start with /, got %q", c.Assistant.CommandName))
	}
	if c.BasicConfig.HistoryLimit <= 0 {
		errs = append(errs, errors.New("history_limit must be positive"))
	}

	switch strings.ToLower(c.Delivery.Backend) {
	case "", "none", "redis":
	case "sqlite", "sqlite3", "mysql":
		if _, ok := c.Databases[c.Delivery.Backend]; !ok {
			errs = append(errs, fmt.Errorf("database config for %s not found", c.Delivery.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported delivery backend: %s", c.Delivery.Backend))
	}
	return errors.Join(errs...)
}

// Model returns the model identifier of the active provider.
func (c *Config) Model() string {
	return c.Providers[c.Provider].Model
}
