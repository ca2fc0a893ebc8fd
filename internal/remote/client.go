// Package remote implements the punch platform's two remote operations:
// logging in and submitting a punch. punchd treats both as opaque; only the
// session token flows between them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"punchd/internal/punch"
	logx "punchd/pkg/logx"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySnippet = 512
)

// Config points the client at a deployment of the timeclock platform.
type Config struct {
	BaseURL   string
	LoginPath string // default "/api/login"
	PunchPath string // default "/api/punch"
	Username  string
	Password  string
	Timeout   time.Duration
}

// Client implements punch.Authenticator and punch.Submitter over HTTP.
// Each call is bounded by the configured request timeout; a timeout is an
// ordinary failure for retry-counting purposes.
type Client struct {
	log logx.Logger

	mu   sync.Mutex
	cfg  Config
	http *http.Client
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = withDefaults(cfg)
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

func withDefaults(cfg Config) Config {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/api/login"
	}
	if cfg.PunchPath == "" {
		cfg.PunchPath = "/api/punch"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// Apply swaps credentials and endpoints. In-flight requests finish on the
// old transport.
func (c *Client) Apply(cfg Config) {
	cfg = withDefaults(cfg)
	c.mu.Lock()
	if cfg.Timeout != c.cfg.Timeout {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Client) config() (Config, *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg, c.http
}

type loginResponse struct {
	Token string `json:"token"`
}

// Authenticate posts credentials to the login endpoint and extracts the
// session token. The token is never logged.
func (c *Client) Authenticate(ctx context.Context) (punch.Token, error) {
	cfg, _ := c.config()
	body, err := json.Marshal(map[string]string{
		"username": cfg.Username,
		"password": cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("auth: marshal: %w", err)
	}

	status, resp, err := c.post(ctx, cfg.LoginPath, "", body)
	if err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("auth: status %d: %s", status, snippet(resp))
	}

	var lr loginResponse
	if err := json.Unmarshal(resp, &lr); err != nil {
		return "", fmt.Errorf("auth: decode: %w", err)
	}
	if strings.TrimSpace(lr.Token) == "" {
		return "", fmt.Errorf("auth: empty token in response")
	}
	return punch.Token(lr.Token), nil
}

// SubmitPunch posts the punch with the freshly obtained token and returns the
// platform's response body as the opaque success payload.
func (c *Client) SubmitPunch(ctx context.Context, tok punch.Token) (string, error) {
	cfg, _ := c.config()
	status, resp, err := c.post(ctx, cfg.PunchPath, string(tok), []byte("{}"))
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("submit: status %d: %s", status, snippet(resp))
	}
	return snippet(resp), nil
}

func (c *Client) post(ctx context.Context, path, bearer string, body []byte) (int, []byte, error) {
	cfg, hc := c.config()
	url := strings.TrimRight(cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	// Cap reads; the payload is only ever reported, never parsed for business data.
	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxBodySnippet {
		return s[:maxBodySnippet-3] + "..."
	}
	return s
}
