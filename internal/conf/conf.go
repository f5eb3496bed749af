package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/infra/tropo"
	"github.com/DevRickLin/feishu-meetbot/internal/service"
)

// Store backends
const (
	StoreSQLite = "sqlite"
	StoreNats   = "nats"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Telephony configuration (optional)
	Voice VoiceConfig

	// Entity store configuration
	Store StoreConfig

	// HTTP server configuration
	Server ServerConfig

	// Lifecycle timing
	Schedule ScheduleConfig

	// Transcript rendering
	Transcript TranscriptConfig

	// Chat texts (loaded from YAML)
	Messages *MessagesConfig

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID     string
	AppSecret string
	BotName   string
}

// VoiceConfig contains Tropo configuration
type VoiceConfig struct {
	Token        string // Empty disables outbound calls and signals
	APIURL       string
	PhoneNumber  string
	SIPNumber    string
	SIPDomain    string
	RecordingURL string // Upload target for call recordings
}

// Enabled reports whether outbound telephony is configured
func (c *VoiceConfig) Enabled() bool {
	return c.Token != ""
}

// StoreConfig contains entity store configuration
type StoreConfig struct {
	Backend string
	DBPath  string
	NatsURL string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port      int
	PublicURL string // Base URL Tropo uses for IVR callbacks
}

// ScheduleConfig contains lifecycle timing
type ScheduleConfig struct {
	StageDelay      time.Duration
	Tick            time.Duration
	TranscriptPolls int
	StaleAfter      time.Duration
}

// TranscriptConfig contains PDF rendering options
type TranscriptConfig struct {
	FontPath string // Optional TrueType font; core fonts cover Latin-1 only
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".feishu-meetbot", "meetbot.db")
	}

	backend := strings.ToLower(os.Getenv("STORE_BACKEND"))
	if backend == "" {
		backend = StoreSQLite
	}

	apiURL := os.Getenv("TROPO_API_URL")
	if apiURL == "" {
		apiURL = tropo.DefaultAPIURL
	}

	// Load chat texts from YAML
	messages, err := LoadMessagesConfig(os.Getenv("MESSAGES_CONFIG_PATH"))
	if err != nil {
		messages = DefaultMessagesConfig()
	}
	if helpURL := os.Getenv("HELP_URL"); helpURL != "" {
		messages.HelpURL = helpURL
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:     os.Getenv("FEISHU_APP_ID"),
			AppSecret: os.Getenv("FEISHU_APP_SECRET"),
			BotName:   os.Getenv("BOT_NAME"),
		},
		Voice: VoiceConfig{
			Token:        os.Getenv("TROPO_TOKEN"),
			APIURL:       apiURL,
			PhoneNumber:  os.Getenv("VOICE_PHONE_NUMBER"),
			SIPNumber:    os.Getenv("VOICE_SIP_NUMBER"),
			SIPDomain:    os.Getenv("VOICE_SIP_DOMAIN"),
			RecordingURL: os.Getenv("VOICE_RECORDING_URL"),
		},
		Store: StoreConfig{
			Backend: backend,
			DBPath:  dbPath,
			NatsURL: os.Getenv("NATS_URL"),
		},
		Server: ServerConfig{
			Port:      envInt("HTTP_PORT", 8080),
			PublicURL: strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		},
		Schedule: ScheduleConfig{
			StageDelay:      envDuration("STAGE_DELAY", service.DefaultScheduleConfig.StageDelay),
			Tick:            envDuration("TICK", service.DefaultScheduleConfig.Tick),
			TranscriptPolls: envInt("TRANSCRIPT_POLLS", service.DefaultScheduleConfig.TranscriptPolls),
			StaleAfter:      envDuration("STALE_AFTER", 2*time.Hour),
		},
		Transcript: TranscriptConfig{
			FontPath: os.Getenv("TRANSCRIPT_FONT_PATH"),
		},
		Messages: messages,
		Debug:    os.Getenv("DEBUG") == "true",
	}
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}

// ToScheduleConfig converts to scheduler configuration
func (c *Config) ToScheduleConfig() service.ScheduleConfig {
	return service.ScheduleConfig{
		StageDelay:      c.Schedule.StageDelay,
		Tick:            c.Schedule.Tick,
		TranscriptPolls: c.Schedule.TranscriptPolls,
	}
}

// ToVoiceSettings converts to the join instructions used in announcements
func (c *Config) ToVoiceSettings() usecase.VoiceSettings {
	return usecase.VoiceSettings{
		PhoneNumber: c.Voice.PhoneNumber,
		SIPNumber:   c.Voice.SIPNumber,
		SIPDomain:   c.Voice.SIPDomain,
	}
}

// ToTemplates converts to chat templates
func (c *Config) ToTemplates() usecase.Templates {
	if c.Messages == nil {
		return usecase.DefaultTemplates
	}
	return c.Messages.ToTemplates()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	switch c.Store.Backend {
	case StoreSQLite:
	case StoreNats:
		if c.Store.NatsURL == "" {
			return &ConfigError{Field: "NATS_URL", Message: "required for the nats store"}
		}
	default:
		return &ConfigError{Field: "STORE_BACKEND", Message: "must be sqlite or nats"}
	}
	if c.Schedule.Tick <= 0 {
		return &ConfigError{Field: "TICK", Message: "must be positive"}
	}
	if c.Schedule.StageDelay < 0 || c.Schedule.TranscriptPolls < 0 {
		return &ConfigError{Field: "STAGE_DELAY/TRANSCRIPT_POLLS", Message: "must not be negative"}
	}
	if c.Voice.Enabled() && c.Server.PublicURL == "" {
		return &ConfigError{Field: "PUBLIC_URL", Message: "required when TROPO_TOKEN is set"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
