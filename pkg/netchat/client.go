package netchat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	wrongPasswordBody = "Wrong Password!"
	initializingMark  = "<title>Initializing...</title>"
)

// Client is the NetChat room service collaborator. All reads are
// idempotent GETs; SendMessage is the single write.
type Client interface {
	FetchRoom(ctx context.Context, name, password string) (string, error)
	MessageCount(ctx context.Context, name, password string) (int, error)
	CachedMessageCount(ctx context.Context, name, password string) (int, error)
	RawMessages(ctx context.Context, name, password string) ([]string, error)
	SendMessage(ctx context.Context, name, password, username, body string) error
	IsInitializing(ctx context.Context, name, password string) (bool, error)
	IsCorrectPassword(ctx context.Context, name, password string) (bool, error)
}

// ClientConfig configures the HTTP client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Color   string
	// SessionTag is a per-process random identifier attached to the
	// User-Agent of outbound requests, computed once at startup.
	SessionTag string
	Version    string
}

type httpClient struct {
	baseURL   string
	color     string
	userAgent string
	client    *http.Client
	logger    *logrus.Logger
}

// NewClient builds a NetChat client.
func NewClient(cfg ClientConfig, logger *logrus.Logger) Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	color := cfg.Color
	if color == "" {
		color = "gray"
	}
	return &httpClient{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		color:     color,
		userAgent: fmt.Sprintf("netchat-bridge/%s (session:%s)", cfg.Version, cfg.SessionTag),
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

func (c *httpClient) get(ctx context.Context, op string, pathParts ...string) (string, error) {
	escaped := make([]string, len(pathParts))
	for i, part := range pathParts {
		escaped[i] = url.PathEscape(part)
	}
	endpoint := c.baseURL + "/" + strings.Join(escaped, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", newError(KindTransport, op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", newError(KindTransport, op, err)
	}
	defer resp.Body.Close()

	if err := statusError(op, resp.StatusCode); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(KindTransport, op, err)
	}
	return string(body), nil
}

func statusError(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return newError(KindRateLimited, op, fmt.Errorf("status %d", status))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(KindUnauthorized, op, fmt.Errorf("status %d", status))
	default:
		return newError(KindServerError, op, fmt.Errorf("status %d", status))
	}
}

// FetchRoom returns the rendered room page. Used for reachability,
// initialization and password checks.
func (c *httpClient) FetchRoom(ctx context.Context, name, password string) (string, error) {
	return c.get(ctx, "fetchRoom", password, name, "allMessages")
}

// MessageCount returns the room's current message counter.
func (c *httpClient) MessageCount(ctx context.Context, name, password string) (int, error) {
	body, err := c.get(ctx, "messageCount", password, name, "messageCount")
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return 0, newError(KindDeserialize, "messageCount", err)
	}
	return count, nil
}

// CachedMessageCount returns the server-side cached counter proxy. It
// may lag MessageCount but is cheaper for the server to produce.
func (c *httpClient) CachedMessageCount(ctx context.Context, name, password string) (int, error) {
	body, err := c.get(ctx, "cachedMessageCount", password, name, "cachedMessageCount")
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil {
		return 0, newError(KindDeserialize, "cachedMessageCount", err)
	}
	return count, nil
}

// RawMessages returns the full ordered message list.
func (c *httpClient) RawMessages(ctx context.Context, name, password string) ([]string, error) {
	body, err := c.get(ctx, "rawMessages", password, name, "rawMessages")
	if err != nil {
		return nil, err
	}
	var messages []string
	if err := json.Unmarshal([]byte(body), &messages); err != nil {
		return nil, newError(KindDeserialize, "rawMessages", err)
	}
	return messages, nil
}

// SendMessage posts one message into the room. Username and body travel
// in the request path, so both run through the substitution table first.
func (c *httpClient) SendMessage(ctx context.Context, name, password, username, body string) error {
	_, err := c.get(ctx, "sendMessage",
		password, name, c.color,
		EscapePathField(username),
		"sendMessage",
		EscapePathField(body),
	)
	return err
}

// IsInitializing reports whether the room is still being set up server
// side. Detection is by marker in the rendered page.
func (c *httpClient) IsInitializing(ctx context.Context, name, password string) (bool, error) {
	page, err := c.FetchRoom(ctx, name, password)
	if err != nil {
		return false, err
	}
	return strings.Contains(page, initializingMark), nil
}

// IsCorrectPassword reports whether the supplied password opens the
// room.
func (c *httpClient) IsCorrectPassword(ctx context.Context, name, password string) (bool, error) {
	page, err := c.FetchRoom(ctx, name, password)
	if err != nil {
		return false, err
	}
	return page != wrongPasswordBody, nil
}
