package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds each driver request
	DefaultTimeout = 60 * time.Second
	// DefaultScriptTimeout is the script timeout sent when a test sets none
	DefaultScriptTimeout = 30 * time.Second
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultStatusTimeout bounds a single crash check
	DefaultStatusTimeout = 5 * time.Second
)

// Client is a Driver backed by the driver's HTTP endpoint.
type Client struct {
	address       string
	httpClient    *http.Client
	timeout       time.Duration
	statusTimeout time.Duration
	limiter       *rate.Limiter
	capabilities  map[string]any
	logger        hclog.Logger

	mu        sync.Mutex
	sessionID string
	crashed   bool
}

var _ Driver = (*Client)(nil)

type ClientOption func(*Client)

// NewClient creates a client for the driver listening at address. The
// session is not opened until StartSession.
func NewClient(address string, opts ...ClientOption) *Client {
	c := &Client{
		address:       strings.TrimRight(address, "/"),
		timeout:       DefaultTimeout,
		statusTimeout: DefaultStatusTimeout,
		capabilities:  make(map[string]any),
		logger:        hclog.NewNullLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConns,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithStatusTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.statusTimeout = d
	}
}

// WithRateLimit caps driver requests to rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithCapabilities(caps map[string]any) ClientOption {
	return func(c *Client) {
		for k, v := range caps {
			c.capabilities[k] = v
		}
	}
}

func WithLogger(l hclog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSession attaches the client to an already open session.
func WithSession(id string) ClientOption {
	return func(c *Client) {
		c.sessionID = id
	}
}

func (c *Client) Address() string {
	return c.address
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// StartSession opens a new driver session and returns its id.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	body := map[string]any{
		"capabilities": map[string]any{"alwaysMatch": c.capabilities},
	}
	resp, err := c.do(ctx, http.MethodPost, "/session", body)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	if err := resp.Err(); err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	id := resp.Value("sessionId").String()
	if id == "" {
		return "", fmt.Errorf("failed to start session: driver returned no session id")
	}

	c.mu.Lock()
	c.sessionID = id
	c.crashed = false
	c.mu.Unlock()

	c.logger.Debug("session started", "session", id)
	return id, nil
}

// Status describes whether the driver accepts work.
type Status struct {
	Ready   bool
	Crashed bool
	Message string
}

// Status queries the driver's status endpoint.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, err
	}
	return parseStatus(resp)
}

func parseStatus(resp *Response) (*Status, error) {
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &Status{
		Ready:   resp.Value("ready").Bool(),
		Crashed: resp.Value("crashed").Bool(),
		Message: resp.Value("message").String(),
	}, nil
}

// CheckForCrash reports whether the driver process has died. Once a crash is
// seen it stays reported until a new session is started.
func (c *Client) CheckForCrash() bool {
	c.mu.Lock()
	crashed := c.crashed
	c.mu.Unlock()
	if crashed {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.statusTimeout)
	defer cancel()

	// crash checks skip the rate limiter
	var status *Status
	resp, err := c.send(ctx, http.MethodGet, "/status", nil)
	if err == nil {
		status, err = parseStatus(resp)
	}
	switch {
	case err != nil:
		c.logger.Warn("driver unreachable, treating as crash", "error", err)
		crashed = true
	case status.Crashed:
		c.logger.Warn("driver reported crash", "message", status.Message)
		crashed = true
	}

	if crashed {
		c.mu.Lock()
		c.crashed = true
		c.mu.Unlock()
	}
	return crashed
}

// ExecuteScript runs a script synchronously in the current session.
func (c *Client) ExecuteScript(ctx context.Context, req *ScriptRequest) (*ScriptResult, error) {
	id, err := c.liveSession()
	if err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	args := req.Args
	if args == nil {
		args = []any{}
	}
	body := map[string]any{
		"script":  req.Script,
		"args":    args,
		"timeout": timeout.Milliseconds(),
	}
	if req.Context != "" {
		body["context"] = req.Context
	}

	c.logger.Debug("executing script", "name", req.Name, "timeout", timeout)

	resp, err := c.do(ctx, http.MethodPost, "/session/"+neturl.PathEscape(id)+"/execute/sync", body)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", req.Name, err)
	}
	if err := resp.Err(); err != nil {
		return nil, fmt.Errorf("failed to execute %s: %w", req.Name, err)
	}

	return parseScriptResult(resp), nil
}

// Close deletes the session. Closing a crashed or closed client is a no-op.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	id := c.sessionID
	crashed := c.crashed
	c.sessionID = ""
	c.mu.Unlock()

	if id == "" || crashed {
		return nil
	}

	resp, err := c.do(ctx, http.MethodDelete, "/session/"+neturl.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("failed to close session %s: %w", id, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("failed to close session %s: %w", id, err)
	}
	c.logger.Debug("session closed", "session", id)
	return nil
}

func (c *Client) liveSession() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crashed {
		return "", failure.New(failure.Crashed, c.address, "driver at %s has crashed", c.address)
	}
	if c.sessionID == "" {
		return "", fmt.Errorf("no session open on driver %s", c.address)
	}
	return c.sessionID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	return c.send(ctx, method, path, body)
}

// send performs the request without waiting on the rate limiter.
func (c *Client) send(ctx context.Context, method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.address+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

// ValidateAddress checks that address is an absolute http(s) URL.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("driver address is empty")
	}
	u, err := neturl.Parse(address)
	if err != nil {
		return fmt.Errorf("invalid driver address %q: %w", address, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid driver address %q: scheme must be http or https", address)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid driver address %q: missing host", address)
	}
	return nil
}
