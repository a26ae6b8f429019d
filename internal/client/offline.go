package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/parley-im/parley/internal/domain"
)

type offlineResponse struct {
	OfflineMessages []domain.OfflineItem `json:"offlineMessages"`
}

// FetchOffline drains the relay's offline queue for userID. The relay
// deletes what it returns, so the caller must deliver everything it gets.
func (c *OfflineClient) FetchOffline(ctx context.Context, userID string) ([]domain.OfflineItem, error) {
	u := c.base + "/api/messages/offline?userId=" + url.QueryEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating offline request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching offline messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("offline endpoint returned %d: %s", resp.StatusCode, body)
	}

	var out offlineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parsing offline response: %w", err)
	}
	return out.OfflineMessages, nil
}
