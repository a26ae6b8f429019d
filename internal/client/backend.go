// Package client drives a conversation turn end to end: it opens the
// backend turn stream, forwards it to the consumer, and hands finished
// messages to the persistence worker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TurnRequest asks the backend to run one model turn.
type TurnRequest struct {
	Message         string `json:"message"`
	ConversationKey string `json:"conversationKey"`
	TargetID        string `json:"targetId"`
	TargetType      string `json:"targetType"`
}

// BackendClient talks to the turn backend.
type BackendClient struct {
	base string
	http *http.Client
}

// NewBackendClient creates a backend client for the given base URL. Turn
// streams can run for minutes, so the client carries no overall timeout;
// cancellation comes from the request context.
func NewBackendClient(base string) *BackendClient {
	return &BackendClient{
		base: base,
		http: &http.Client{},
	}
}

// StartTurn opens a turn stream. The caller owns the returned body and must
// close it.
func (c *BackendClient) StartTurn(ctx context.Context, req TurnRequest) (io.ReadCloser, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling turn request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/turn", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating turn request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("starting turn: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("turn endpoint returned %d: %s", resp.StatusCode, body)
	}
	return resp.Body, nil
}

// OfflineClient fetches a user's queued peer messages from the relay. It
// satisfies the reconciler's fetcher interface.
type OfflineClient struct {
	base string
	http *http.Client
}

// NewOfflineClient creates an offline-queue client for the given relay URL.
func NewOfflineClient(base string, timeout time.Duration) *OfflineClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OfflineClient{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}
