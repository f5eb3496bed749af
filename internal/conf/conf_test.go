package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_a")
	t.Setenv("FEISHU_APP_SECRET", "secret")
	t.Setenv("MESSAGES_CONFIG_PATH", "")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Schedule.StageDelay)
	assert.Equal(t, time.Second, cfg.Schedule.Tick)
	assert.Equal(t, 30, cfg.Schedule.TranscriptPolls)
	assert.Equal(t, 2*time.Hour, cfg.Schedule.StaleAfter)
	assert.False(t, cfg.Voice.Enabled())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("FEISHU_APP_ID", "cli_a")
	t.Setenv("FEISHU_APP_SECRET", "secret")
	t.Setenv("STORE_BACKEND", "NATS")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("TICK", "250ms")
	t.Setenv("STAGE_DELAY", "not-a-duration")
	t.Setenv("PUBLIC_URL", "https://meet.example.com/")
	t.Setenv("HELP_URL", "https://help.example.com")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StoreNats, cfg.Store.Backend)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.ToScheduleConfig().Tick)
	assert.Equal(t, 60*time.Second, cfg.ToScheduleConfig().StageDelay)
	assert.Equal(t, "https://meet.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "https://help.example.com", cfg.ToTemplates().HelpURL)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Feishu:   FeishuConfig{AppID: "a", AppSecret: "b"},
			Store:    StoreConfig{Backend: StoreSQLite},
			Schedule: ScheduleConfig{Tick: time.Second},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing feishu", func(c *Config) { c.Feishu.AppSecret = "" }, "FEISHU_APP_ID/FEISHU_APP_SECRET"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "STORE_BACKEND"},
		{"nats without url", func(c *Config) { c.Store.Backend = StoreNats }, "NATS_URL"},
		{"zero tick", func(c *Config) { c.Schedule.Tick = 0 }, "TICK"},
		{"voice without public url", func(c *Config) { c.Voice.Token = "t" }, "PUBLIC_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, valid().Validate())
}

func TestLoadMessagesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("complete: Done!\njoin:\n  audio_bridge: Dial in\n"), 0o644))

	cfg, err := LoadMessagesConfig(path)
	require.NoError(t, err)

	tmpl := cfg.ToTemplates()
	assert.Equal(t, "Done!", tmpl.Complete)
	assert.Equal(t, "Dial in", tmpl.JoinAudioBridge)
	// Missing keys fall back to defaults
	assert.Equal(t, usecase.DefaultTemplates.TopicBanner, tmpl.TopicBanner)
	assert.Equal(t, usecase.DefaultTemplates.HelpURL, tmpl.HelpURL)
}

func TestLoadMessagesConfig_Errors(t *testing.T) {
	_, err := LoadMessagesConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("welcome: [unclosed"), 0o644))
	_, err = LoadMessagesConfig(path)
	assert.Error(t, err)
}

func TestDefaultMessagesConfig_MatchesTemplates(t *testing.T) {
	assert.Equal(t, usecase.DefaultTemplates, DefaultMessagesConfig().ToTemplates())
}

func TestRepoMessagesFile(t *testing.T) {
	cfg, err := LoadMessagesConfig(filepath.Join("..", "..", "configs", "messages.yaml"))
	require.NoError(t, err)
	assert.Equal(t, usecase.DefaultTemplates, cfg.ToTemplates())
}
