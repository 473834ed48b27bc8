package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/selalipop/milo-firmware/internal/httpc"
)

// Defaults for the ElevenLabs service.
const (
	DefaultBaseURL        = "https://api.elevenlabs.io"
	DefaultMaxMessageSize = 16 * 1024 * 1024
	DefaultPollInterval   = 250 * time.Millisecond
)

// Config holds configuration for a conversation session.
type Config struct {
	// APIKey is the ElevenLabs API key. Required when RequiresAuth is set.
	APIKey string

	// AgentID is the agent identifier from the ElevenLabs dashboard.
	AgentID string

	// RequiresAuth makes the session fetch a signed URL before connecting.
	// Public agents connect directly.
	RequiresAuth bool

	// BaseURL is the HTTP(S) base the websocket URL is derived from.
	BaseURL string

	// APIBaseURL is the REST endpoint used to obtain signed URLs.
	APIBaseURL string

	// MaxMessageSize limits inbound websocket messages.
	MaxMessageSize int64

	// PollInterval bounds how long the receive loop waits before
	// re-checking whether the session should end.
	PollInterval time.Duration

	// HandshakeTimeout is the websocket handshake timeout.
	HandshakeTimeout time.Duration

	// WriteTimeout is the deadline for each websocket write.
	WriteTimeout time.Duration

	// HTTPClient is used for signed URL requests.
	HTTPClient *http.Client

	// NetDialContext dials the websocket connection. Nil dials directly.
	NetDialContext func(ctx context.Context, network, addr string) (net.Conn, error)

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          DefaultBaseURL,
		APIBaseURL:       DefaultBaseURL,
		MaxMessageSize:   DefaultMaxMessageSize,
		PollInterval:     DefaultPollInterval,
		HandshakeTimeout: 30 * time.Second,
		WriteTimeout:     10 * time.Second,
		HTTPClient:       httpc.Client,
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.AgentID == "" {
		return ErrMissingAgentID
	}
	if c.RequiresAuth && c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("conversation: max message size must be positive, got %d", c.MaxMessageSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("conversation: poll interval must be positive, got %v", c.PollInterval)
	}
	return nil
}

// Option is a functional option for configuring sessions.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithAgentID sets the agent ID.
func WithAgentID(id string) Option {
	return func(c *Config) {
		c.AgentID = id
	}
}

// WithRequiresAuth selects signed URL authentication.
func WithRequiresAuth(required bool) Option {
	return func(c *Config) {
		c.RequiresAuth = required
	}
}

// WithBaseURL sets the base URL the websocket URL is derived from.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIBaseURL sets the REST API base URL.
func WithAPIBaseURL(url string) Option {
	return func(c *Config) {
		c.APIBaseURL = url
	}
}

// WithMaxMessageSize sets the inbound message size limit in bytes.
func WithMaxMessageSize(n int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = n
	}
}

// WithPollInterval sets the receive loop poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithTimeout sets the connection handshake timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

// WithWriteTimeout sets the per-write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

// WithHTTPClient sets the client used for REST calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithNetDialContext sets the dialer for the websocket connection.
func WithNetDialContext(dial func(ctx context.Context, network, addr string) (net.Conn, error)) Option {
	return func(c *Config) {
		c.NetDialContext = dial
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
