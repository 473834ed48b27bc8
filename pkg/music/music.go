// Package music provides the playExistingSong client tool, which plays a
// track through the spotify_player CLI.
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/selalipop/milo-firmware/pkg/tools"
)

// ToolName is the name the agent uses to call the tool.
const ToolName = "playExistingSong"

// QueryParam is the tool's single argument.
const QueryParam = "songQuery"

// DefaultTimeout bounds each CLI invocation.
const DefaultTimeout = 20 * time.Second

// Runner executes a command and returns its standard output and error.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Player searches for and plays tracks.
type Player struct {
	binary  string
	run     Runner
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Player.
type Option func(*Player)

// WithRunner replaces the command runner.
func WithRunner(run Runner) Option {
	return func(p *Player) { p.run = run }
}

// WithTimeout sets the per-command timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Player) { p.timeout = d }
}

// NewPlayer creates a Player that invokes binary.
func NewPlayer(binary string, logger *slog.Logger, opts ...Option) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		binary:  binary,
		run:     ExecRunner,
		timeout: DefaultTimeout,
		logger:  logger.With("component", "music"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play searches for query and starts radio playback seeded by the first
// matching track. It returns the track as reported by the search.
func (p *Player) Play(ctx context.Context, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty song query")
	}

	stdout, err := p.exec(ctx, "search", query)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if !gjson.ValidBytes(stdout) {
		return nil, fmt.Errorf("error parsing search results: invalid JSON")
	}

	track := gjson.GetBytes(stdout, "tracks.0")
	if !track.Exists() {
		return nil, fmt.Errorf("no tracks found for query: %s", query)
	}
	id := track.Get("id").String()
	if id == "" {
		return nil, fmt.Errorf("error parsing search results: track has no id")
	}

	p.logger.Info("track found", "query", query, "id", id, "name", track.Get("name").String())

	if _, err := p.exec(ctx, "playback", "start", "radio", "track", "--id", id); err != nil {
		return nil, fmt.Errorf("playback failed: %w", err)
	}

	p.logger.Info("playback started", "name", track.Get("name").String())
	return json.RawMessage(track.Raw), nil
}

func (p *Player) exec(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.logger.Debug("running command", "binary", p.binary, "args", args)

	stdout, stderr, err := p.run(ctx, p.binary, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout, nil
}

type playResult struct {
	Success bool            `json:"success,omitempty"`
	Track   json.RawMessage `json:"track,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Handle is the tools.Handler for playExistingSong. Failures are reported
// to the agent inside the result rather than as an error.
func (p *Player) Handle(ctx context.Context, params map[string]any) (any, error) {
	query, _ := params[QueryParam].(string)

	track, err := p.Play(ctx, query)
	if err != nil {
		p.logger.Warn("play failed", "query", query, "error", err)
		return marshalResult(playResult{Error: err.Error()}), nil
	}
	return marshalResult(playResult{Success: true, Track: track}), nil
}

func marshalResult(r playResult) json.RawMessage {
	data, err := json.Marshal(r)
	if err != nil {
		return json.RawMessage(`{"error":"unexpected error encoding result"}`)
	}
	return data
}

// Tool returns the tool definition for registration.
func (p *Player) Tool() tools.Tool {
	return tools.Tool{
		Name:        ToolName,
		Description: "Search for a song by a plain English query and start playing it.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				QueryParam: map[string]any{
					"type":        "string",
					"description": "Song title, optionally with the artist",
				},
			},
			"required": []string{QueryParam},
		},
		Handler: p.Handle,
	}
}
