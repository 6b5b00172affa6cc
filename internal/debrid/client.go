// Package debrid reads the Real-Debrid torrent list used to confirm that a
// triggered stream actually registered on the account.
package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the Real-Debrid REST API root.
const DefaultBaseURL = "https://api.real-debrid.com/rest/1.0"

var ErrEmptyResponse = errors.New("real-debrid returned an empty body")

// Torrent is one entry from the account torrent list.
type Torrent struct {
	ID       string  `json:"id"`
	Filename string  `json:"filename"`
	Hash     string  `json:"hash"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Added    string  `json:"added"`
}

// Client is a read-only Real-Debrid API client.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  zerolog.Logger
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With().Str("component", "realdebrid").Logger(),
	}
}

// ListTorrents returns the torrents currently on the account.
func (c *Client) ListTorrents(ctx context.Context) ([]Torrent, error) {
	endpoint := c.baseURL + "/torrents"
	c.logger.Debug().
		Str("curl", fmt.Sprintf("curl -X GET --max-time 30 -H 'Authorization: Bearer ***' '%s'", endpoint)).
		Msg("Equivalent curl command")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("real-debrid returned status %d: %s", resp.StatusCode, string(body))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w (status %d)", ErrEmptyResponse, resp.StatusCode)
	}

	var torrents []Torrent
	if err := json.Unmarshal(body, &torrents); err != nil {
		return nil, fmt.Errorf("failed to parse torrents: %w", err)
	}
	return torrents, nil
}
