package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	replyPath      = "/api/chat/reply"

	// SessionHeader carries the widget session id for log correlation.
	SessionHeader = "X-Session-Id"

	maxReplyBytes = 1 << 20
)

// ErrMalformedReply is returned when a JSON response is not a JSON string.
var ErrMalformedReply = errors.New("responder: malformed reply payload")

// replyRequest is the wire shape of a chat turn.
type replyRequest struct {
	Message string `json:"message"`
}

// HTTPStatusError captures non-2xx responder responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("responder: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts chat messages to a remote responder and returns its reply text.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each request. The zero value leaves requests unbounded.
// It applies to a copy of the configured http.Client, so a caller's transport
// is kept.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := http.Client{}
		if c.httpClient != nil {
			hc = *c.httpClient
		}
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// NewClient creates a Client for the responder at DefaultBaseURL unless
// WithBaseURL says otherwise. Requests carry no timeout by default.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return http.DefaultClient
}

func replyURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, replyPath) {
		return base
	}
	return base + replyPath
}

// Reply sends message verbatim; callers normalize it beforehand.
func (c *Client) Reply(ctx context.Context, sessionID, message string) (string, error) {
	body, err := json.Marshal(replyRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("responder: marshal request: %w", err)
	}

	url := replyURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("responder: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain, application/json")
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}

	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return "", fmt.Errorf("responder: request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("responder: read response body: %w", err)
	}
	return decodeReply(res.Header.Get("Content-Type"), raw)
}

// decodeReply treats the whole body as the reply. A JSON body must be a
// single JSON string; anything else is malformed.
func decodeReply(contentType string, raw []byte) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" && !strings.HasSuffix(mediaType, "+json") {
		return string(raw), nil
	}
	var reply string
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return reply, nil
}
