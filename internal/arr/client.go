// Package arr talks to the Radarr and Sonarr v3 APIs: it lists wanted items
// and unmonitors them once a stream has been grabbed.
package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aiodarr/aiodarr/internal/media"
)

// wantedPageSize matches the largest page the *arr UIs request.
const wantedPageSize = 1000

// SourceType identifies the source application type.
type SourceType string

const (
	SourceTypeRadarr SourceType = "radarr"
	SourceTypeSonarr SourceType = "sonarr"
)

// ConnectionConfig holds the connection parameters for a source.
type ConnectionConfig struct {
	URL    string
	APIKey string
}

// Library is a source of wanted items of one kind.
type Library interface {
	Name() string
	Kind() media.Kind
	Wanted(ctx context.Context) ([]media.WantedItem, error)
	Unmonitor(ctx context.Context, item media.WantedItem) error
	Validate(ctx context.Context) error
}

type apiClient struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	sourceType SourceType
}

func newAPIClient(cfg ConnectionConfig, sourceType SourceType) *apiClient {
	return &apiClient{
		client:     &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		sourceType: sourceType,
	}
}

func (c *apiClient) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func (c *apiClient) validate(ctx context.Context) error {
	data, err := c.doRequest(ctx, http.MethodGet, "/api/v3/system/status", nil)
	if err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}

	var status struct {
		AppName string `json:"appName"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return fmt.Errorf("failed to parse status response: %w", err)
	}

	expectedApp := "Radarr"
	if c.sourceType == SourceTypeSonarr {
		expectedApp = "Sonarr"
	}
	if !strings.EqualFold(status.AppName, expectedApp) {
		return fmt.Errorf("expected %s but connected to %s", expectedApp, status.AppName)
	}
	return nil
}

// setUnmonitored fetches the resource at path and writes it back with
// monitored=false, keeping every other field as the server sent it.
func (c *apiClient) setUnmonitored(ctx context.Context, path string) error {
	data, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	var resource map[string]any
	if err := json.Unmarshal(data, &resource); err != nil {
		return fmt.Errorf("failed to parse resource: %w", err)
	}
	resource["monitored"] = false

	if _, err := c.doRequest(ctx, http.MethodPut, path, resource); err != nil {
		return err
	}
	return nil
}

func wantedPath(extra string) string {
	return fmt.Sprintf("/api/v3/wanted/missing?pageSize=%d%s", wantedPageSize, extra)
}
