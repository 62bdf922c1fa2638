// Package identity ходит в сервис идентификации, которому принадлежат записи пользователей.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chat-service/internal/apperr"
	"github.com/chat-service/internal/logger"
	"github.com/chat-service/internal/model"
)

const maxResponseBytes = 4 << 20

// Client запрашивает профили пачками: POST {baseURL}/users/batch {"userIds":[...]}.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient создаёт клиент. Нулевой timeout заменяется на 5s.
func NewClient(baseURL, apiToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiToken:   apiToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type batchRequest struct {
	UserIDs []int64 `json:"userIds"`
}

type batchResponse struct {
	Data []model.RemoteUserProfile `json:"data"`
}

// FetchProfiles возвращает известные сервису профили; неизвестных id в карте просто нет.
// Любой сбой оборачивает apperr.ErrUpstreamUnavailable.
func (c *Client) FetchProfiles(ctx context.Context, ids []int64) (map[int64]model.RemoteUserProfile, error) {
	if len(ids) == 0 {
		return map[int64]model.RemoteUserProfile{}, nil
	}
	defer logger.DeferLogDuration("identity.FetchProfiles", time.Now())()
	if c.baseURL == "" {
		return nil, fmt.Errorf("identity: base url not configured: %w", apperr.ErrUpstreamUnavailable)
	}
	body, err := json.Marshal(batchRequest{UserIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("identity: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/batch", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("identity: status %d: %w", resp.StatusCode, apperr.ErrUpstreamUnavailable)
	}
	var payload batchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("identity: decode response: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	out := make(map[int64]model.RemoteUserProfile, len(payload.Data))
	for _, p := range payload.Data {
		if p.ID > 0 {
			out[p.ID] = p
		}
	}
	return out, nil
}
