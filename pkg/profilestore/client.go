package profilestore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable is returned when the store cannot be reached after all
// retries. Callers treat mirroring as best-effort and keep the local copy.
var ErrUnavailable = errors.New("profile store unavailable")

// Client is the HTTP client for the profile store API
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new profile store client
func NewClient(config *ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// NewClientWithHTTPClient creates a client with a custom HTTP client (for testing)
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) *Client {
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// computeHMAC computes the HMAC-SHA256 signature of the request body
func (c *Client) computeHMAC(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.config.APISecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// doRequest performs a signed POST and decodes the response envelope.
// Transport failures are retried; API errors are not.
func doRequest[T any](ctx context.Context, c *Client, path string, payload interface{}) (*T, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.config.BaseURL + path
	signature := c.computeHMAC(body)

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.config.APIKey)
		req.Header.Set("x-api-hmac", signature)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("store returned status %d", resp.StatusCode)
			continue
		}

		var envelope Response[T]
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		if envelope.Error != nil {
			return nil, envelope.Error
		}
		if envelope.Result == nil {
			return nil, fmt.Errorf("store returned empty result")
		}
		return envelope.Result, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// UpsertProfile creates or updates the mirrored player profile
func (c *Client) UpsertProfile(ctx context.Context, profile *Profile) (*UpsertProfileResult, error) {
	req := &UpsertProfileRequest{
		SiteCode: c.config.SiteCode,
		Profile:  profile,
	}
	return doRequest[UpsertProfileResult](ctx, c, "/profiles/upsert", req)
}

// GetProfile fetches the mirrored profile for a player
func (c *Client) GetProfile(ctx context.Context, playerID string) (*Profile, error) {
	req := &GetProfileRequest{
		SiteCode: c.config.SiteCode,
		PlayerID: playerID,
	}
	return doRequest[Profile](ctx, c, "/profiles/get", req)
}

// RecordRound mirrors a resolved round. The store dedupes on round ID,
// replays return Duplicated true.
func (c *Client) RecordRound(ctx context.Context, round *RoundRecord) (*RecordRoundResult, error) {
	req := &RecordRoundRequest{
		SiteCode: c.config.SiteCode,
		Round:    round,
	}
	return doRequest[RecordRoundResult](ctx, c, "/rounds/record", req)
}

// GetHistory fetches a player's mirrored round history, newest first
func (c *Client) GetHistory(ctx context.Context, playerID string, limit int) (*HistoryResult, error) {
	req := &HistoryRequest{
		SiteCode: c.config.SiteCode,
		PlayerID: playerID,
		Limit:    limit,
	}
	return doRequest[HistoryResult](ctx, c, "/rounds/history", req)
}
