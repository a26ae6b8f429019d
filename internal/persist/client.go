package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/parley-im/parley/internal/domain"
)

// SaveRequest is the persistence endpoint's request body.
type SaveRequest struct {
	ConversationID string           `json:"conversationId"`
	Messages       []domain.Message `json:"messages"`
}

// SaveResult is the persistence endpoint's response. MessageIDs lists every
// acknowledged id, including duplicates the store already held; Saved counts
// only newly written rows.
type SaveResult struct {
	Success    bool     `json:"success"`
	Saved      int      `json:"saved"`
	MessageIDs []string `json:"messageIds"`
	Skipped    bool     `json:"skipped,omitempty"`
}

// HTTPError is a non-2xx response from the persistence endpoint.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("persistence endpoint returned %d: %s", e.StatusCode, e.Body)
}

// Retryable classifies an error per the save retry policy: network-class
// failures and 408/429/5xx responses are transient; anything else, including
// other HTTP statuses and marshal or response-parse failures, is permanent
// and must not be retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		switch {
		case he.StatusCode == http.StatusRequestTimeout:
			return true
		case he.StatusCode == http.StatusTooManyRequests:
			return true
		case he.StatusCode >= 500:
			return true
		default:
			return false
		}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Transport failures (connection refused, reset) arrive as url.Error
	// wrapping syscall errors. Everything else retrying cannot fix.
	var ue *url.Error
	return errors.As(err, &ue)
}

// Saver issues the durable write for a batch of messages.
type Saver interface {
	Save(ctx context.Context, conversationID string, msgs []domain.Message) (*SaveResult, error)
}

// Client is the HTTP Saver talking to the persistence endpoint.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a persistence client for the given base URL.
func NewClient(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

// Save posts a batch to the persistence endpoint. Duplicate ids are reported
// by the endpoint as already-saved, never as an error.
func (c *Client) Save(ctx context.Context, conversationID string, msgs []domain.Message) (*SaveResult, error) {
	payload, err := json.Marshal(SaveRequest{ConversationID: conversationID, Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("marshaling save request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("save request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading save response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result SaveResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing save response: %w", err)
	}
	return &result, nil
}
