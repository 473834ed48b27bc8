package conversation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const conversationPath = "/v1/convai/conversation"

// apiClient handles REST API calls to ElevenLabs.
type apiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// newAPIClient creates a new API client.
func newAPIClient(cfg *Config) *apiClient {
	return &apiClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		httpClient: cfg.HTTPClient,
	}
}

// SignedURL requests a short-lived websocket URL for a private agent.
func (c *apiClient) SignedURL(ctx context.Context, agentID string) (string, error) {
	u := c.baseURL + conversationPath + "/get_signed_url?agent_id=" + url.QueryEscape(agentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", NewAPIError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	signed := gjson.GetBytes(body, "signed_url").String()
	if signed == "" {
		return "", fmt.Errorf("get signed url: response has no signed_url")
	}
	return signed, nil
}

// publicURL derives the websocket URL for a public agent from an HTTP(S)
// base URL.
func publicURL(baseURL, agentID string) (string, error) {
	base := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1)

	u, err := url.Parse(base + conversationPath)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// endpoint resolves the websocket URL for cfg.
func endpoint(ctx context.Context, cfg *Config) (string, error) {
	if cfg.RequiresAuth {
		return newAPIClient(cfg).SignedURL(ctx, cfg.AgentID)
	}
	return publicURL(cfg.BaseURL, cfg.AgentID)
}
