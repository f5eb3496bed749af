package conf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
)

// MessagesConfig contains the chat texts loaded from YAML.
// Placeholders use the {{name}} form.
type MessagesConfig struct {
	HelpURL      string       `yaml:"help_url"`
	Welcome      string       `yaml:"welcome"`
	Announcement string       `yaml:"announcement"`
	Join         JoinMessages `yaml:"join"`
	TopicBanner  string       `yaml:"topic_banner"`
	Complete     string       `yaml:"complete"`
	Canceled     string       `yaml:"canceled"`
	Status       string       `yaml:"status"`
}

// JoinMessages contains the join instructions of the announcement
type JoinMessages struct {
	Phone       string `yaml:"phone"`
	AudioBridge string `yaml:"audio_bridge"`
}

// LoadMessagesConfig loads the chat texts from a YAML file
func LoadMessagesConfig(configPath string) (*MessagesConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/messages.yaml",
			"/etc/feishu-meetbot/messages.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "messages.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = raw, p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read %s", configPath)
		}
		slog.Debug("no messages.yaml found, using defaults")
		return DefaultMessagesConfig(), nil
	}

	slog.Debug("loading messages", "path", loadedPath)

	var config MessagesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse messages.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *MessagesConfig) fillDefaults() {
	defaults := DefaultMessagesConfig()

	fields := []struct {
		value *string
		def   string
	}{
		{&c.HelpURL, defaults.HelpURL},
		{&c.Welcome, defaults.Welcome},
		{&c.Announcement, defaults.Announcement},
		{&c.Join.Phone, defaults.Join.Phone},
		{&c.Join.AudioBridge, defaults.Join.AudioBridge},
		{&c.TopicBanner, defaults.TopicBanner},
		{&c.Complete, defaults.Complete},
		{&c.Canceled, defaults.Canceled},
		{&c.Status, defaults.Status},
	}
	for _, f := range fields {
		if *f.value == "" {
			*f.value = f.def
		}
	}
}

// ToTemplates converts to chat templates
func (c *MessagesConfig) ToTemplates() usecase.Templates {
	return usecase.Templates{
		Welcome:         c.Welcome,
		Announcement:    c.Announcement,
		JoinPhone:       c.Join.Phone,
		JoinAudioBridge: c.Join.AudioBridge,
		TopicBanner:     c.TopicBanner,
		Complete:        c.Complete,
		Canceled:        c.Canceled,
		Status:          c.Status,
		HelpURL:         c.HelpURL,
	}
}

// DefaultMessagesConfig returns the built-in chat texts
func DefaultMessagesConfig() *MessagesConfig {
	t := usecase.DefaultTemplates
	return &MessagesConfig{
		HelpURL:      t.HelpURL,
		Welcome:      t.Welcome,
		Announcement: t.Announcement,
		Join: JoinMessages{
			Phone:       t.JoinPhone,
			AudioBridge: t.JoinAudioBridge,
		},
		TopicBanner: t.TopicBanner,
		Complete:    t.Complete,
		Canceled:    t.Canceled,
		Status:      t.Status,
	}
}
