// Package config loads milo configuration from a YAML file, a .env file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/selalipop/milo-firmware/pkg/audioio"
	"github.com/selalipop/milo-firmware/pkg/conversation"
)

// Default values.
const (
	DefaultSocketPath    = "/tmp/milo.sock"
	DefaultWebAddr       = "127.0.0.1:8090"
	DefaultSpotifyPlayer = "spotify_player"
)

// Config is the complete milo configuration.
type Config struct {
	Agent   AgentConfig    `yaml:"agent"`
	Audio   audioio.Config `yaml:"audio"`
	Session SessionConfig  `yaml:"session"`
	Tools   ToolsConfig    `yaml:"tools"`
	Wake    WakeConfig     `yaml:"wake"`
	Web     WebConfig      `yaml:"web"`
	Logging LoggingConfig  `yaml:"logging"`
	Proxy   ProxyConfig    `yaml:"proxy"`
}

// AgentConfig identifies the remote conversational agent.
type AgentConfig struct {
	ID           string `yaml:"id"`
	APIKey       string `yaml:"api_key"`
	RequiresAuth bool   `yaml:"requires_auth"`
	BaseURL      string `yaml:"base_url"`
	APIBaseURL   string `yaml:"api_base_url"`
}

// SessionConfig tunes the conversation session.
type SessionConfig struct {
	PollInterval     time.Duration     `yaml:"poll_interval"`
	MaxMessageSize   int64             `yaml:"max_message_size"`
	HandshakeTimeout time.Duration     `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration     `yaml:"write_timeout"`
	DynamicVariables map[string]string `yaml:"dynamic_variables"`
}

// ToolsConfig configures the client tools offered to the agent.
type ToolsConfig struct {
	Music MusicConfig `yaml:"music"`
}

// MusicConfig configures the track playback tool.
type MusicConfig struct {
	Enabled bool   `yaml:"enabled"`
	Binary  string `yaml:"binary"`
}

// WakeConfig configures the wake trigger.
type WakeConfig struct {
	SocketPath string `yaml:"socket_path"`
	// Chime is an mp3 played on every wake. Empty disables it.
	Chime string `yaml:"chime"`
}

// WebConfig configures the status dashboard.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProxyConfig routes API and websocket traffic through a SOCKS5 proxy.
type ProxyConfig struct {
	SOCKS5 string `yaml:"socks5"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			BaseURL:    conversation.DefaultBaseURL,
			APIBaseURL: conversation.DefaultBaseURL,
		},
		Audio: audioio.DefaultConfig(),
		Session: SessionConfig{
			PollInterval:     conversation.DefaultPollInterval,
			MaxMessageSize:   conversation.DefaultMaxMessageSize,
			HandshakeTimeout: 30 * time.Second,
			WriteTimeout:     10 * time.Second,
		},
		Tools: ToolsConfig{
			Music: MusicConfig{Enabled: true, Binary: DefaultSpotifyPlayer},
		},
		Wake: WakeConfig{SocketPath: DefaultSocketPath},
		Web:  WebConfig{Enabled: true, Addr: DefaultWebAddr},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. Values come from the defaults, then the
// YAML file at path (skipped when path is empty or missing), then the
// environment. ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or with an
// empty string when it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(dst *bool, key string) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: key, Message: fmt.Sprintf("%s must be a boolean, got %q", key, v)}
		}
		*dst = b
		return nil
	}

	setString(&c.Agent.APIKey, "ELEVENLABS_API_KEY")
	setString(&c.Agent.ID, "ELEVENLABS_AGENT_ID")
	setString(&c.Agent.BaseURL, "MILO_BASE_URL")
	setString(&c.Audio.Device, "MILO_AUDIO_DEVICE")
	setString(&c.Wake.SocketPath, "MILO_SOCKET")
	setString(&c.Wake.Chime, "MILO_CHIME")
	setString(&c.Web.Addr, "MILO_WEB_ADDR")
	setString(&c.Logging.Level, "MILO_LOG_LEVEL")
	setString(&c.Logging.Format, "MILO_LOG_FORMAT")
	setString(&c.Proxy.SOCKS5, "MILO_PROXY")
	setString(&c.Tools.Music.Binary, "MILO_SPOTIFY_PLAYER")

	if v := os.Getenv("MILO_AUDIO_BACKEND"); v != "" {
		c.Audio.Backend = audioio.Backend(v)
	}
	if err := setBool(&c.Agent.RequiresAuth, "MILO_REQUIRES_AUTH"); err != nil {
		return err
	}
	return setBool(&c.Web.Enabled, "MILO_WEB_ENABLED")
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Agent.ID == "" {
		return &ConfigError{Field: "agent.id", Message: "ELEVENLABS_AGENT_ID environment variable or agent.id is required"}
	}
	if c.Agent.RequiresAuth && c.Agent.APIKey == "" {
		return &ConfigError{Field: "agent.api_key", Message: "ELEVENLABS_API_KEY is required when agent.requires_auth is set"}
	}
	if err := c.Audio.Validate(); err != nil {
		return &ConfigError{Field: "audio", Message: err.Error()}
	}
	if c.Session.PollInterval <= 0 {
		return &ConfigError{Field: "session.poll_interval", Message: "session.poll_interval must be positive"}
	}
	if c.Session.MaxMessageSize <= 0 {
		return &ConfigError{Field: "session.max_message_size", Message: "session.max_message_size must be positive"}
	}
	if c.Wake.SocketPath == "" {
		return &ConfigError{Field: "wake.socket_path", Message: "wake.socket_path is required"}
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		return &ConfigError{Field: "web.addr", Message: "web.addr is required when the dashboard is enabled"}
	}
	if c.Tools.Music.Enabled && c.Tools.Music.Binary == "" {
		return &ConfigError{Field: "tools.music.binary", Message: "tools.music.binary is required when the music tool is enabled"}
	}
	return nil
}

// SessionOptions converts the agent and session sections into
// conversation options.
func (c *Config) SessionOptions() []conversation.Option {
	return []conversation.Option{
		conversation.WithAgentID(c.Agent.ID),
		conversation.WithAPIKey(c.Agent.APIKey),
		conversation.WithRequiresAuth(c.Agent.RequiresAuth),
		conversation.WithBaseURL(c.Agent.BaseURL),
		conversation.WithAPIBaseURL(c.Agent.APIBaseURL),
		conversation.WithPollInterval(c.Session.PollInterval),
		conversation.WithMaxMessageSize(c.Session.MaxMessageSize),
		conversation.WithTimeout(c.Session.HandshakeTimeout),
		conversation.WithWriteTimeout(c.Session.WriteTimeout),
	}
}

// InitiationData builds the data sent when a conversation starts.
func (c *Config) InitiationData() conversation.InitiationData {
	var vars map[string]any
	if len(c.Session.DynamicVariables) > 0 {
		vars = make(map[string]any, len(c.Session.DynamicVariables))
		for k, v := range c.Session.DynamicVariables {
			vars[k] = v
		}
	}
	return conversation.InitiationData{DynamicVariables: vars}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
