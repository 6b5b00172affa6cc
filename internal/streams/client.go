// Package streams queries an AIOStreams (Stremio addon) instance and reduces
// its stream listing to cached candidates.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiodarr/aiodarr/internal/media"
)

var (
	ErrUnavailable       = errors.New("stream service unavailable")
	ErrMalformedResponse = errors.New("malformed stream response")
)

const defaultTimeout = 30 * time.Second

// cacheIndicators mark a stream as already cached on the debrid provider.
// Matching is case-sensitive.
var cacheIndicators = []string{"⚡", "RD+", "[RD]"}

// Client queries the stream-discovery service.
type Client struct {
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewClient creates a stream client for the given base URL.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("component", "streams").Logger(),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	c.client = client
	return c
}

// streamResponse keeps entries raw so one malformed stream cannot fail the
// whole listing.
type streamResponse struct {
	Streams []json.RawMessage `json:"streams"`
}

type rawStream struct {
	Name          string         `json:"name"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	URL           string         `json:"url"`
	BehaviorHints *behaviorHints `json:"behaviorHints"`
}

type behaviorHints struct {
	Filename string `json:"filename"`
}

// FindCandidates returns the cached streams for query in source order.
func (c *Client) FindCandidates(ctx context.Context, query media.Query) ([]media.Candidate, error) {
	endpoint := c.baseURL + query.Path()
	c.logger.Debug().Str("curl", fmt.Sprintf("curl -X GET --max-time %d '%s'", int(defaultTimeout.Seconds()), endpoint)).Msg("Equivalent curl command")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data streamResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	candidates := filterCached(c.decodeStreams(data.Streams))
	c.logger.Debug().
		Str("query", query.String()).
		Int("streams", len(data.Streams)).
		Int("cached", len(candidates)).
		Msg("Filtered streams")
	return candidates, nil
}

// decodeStreams drops entries that do not decode, keeping the rest in order.
func (c *Client) decodeStreams(entries []json.RawMessage) []rawStream {
	streams := make([]rawStream, 0, len(entries))
	for i, entry := range entries {
		var s rawStream
		if err := json.Unmarshal(entry, &s); err != nil {
			c.logger.Debug().Err(err).Int("index", i).Msg("Skipping malformed stream entry")
			continue
		}
		streams = append(streams, s)
	}
	return streams
}

func filterCached(streams []rawStream) []media.Candidate {
	candidates := make([]media.Candidate, 0, len(streams))
	for i := range streams {
		s := &streams[i]
		name := s.Name
		if name == "" {
			name = s.Title
		}
		if !isCached(name) || s.URL == "" {
			continue
		}

		qualitySource := s.Description
		if qualitySource == "" {
			qualitySource = name
		}

		var filename string
		if s.BehaviorHints != nil {
			filename = s.BehaviorHints.Filename
		}

		candidates = append(candidates, media.Candidate{
			Label:            strings.TrimSpace(name),
			PlaybackURL:      s.URL,
			VerificationName: filename,
			Quality:          media.ParseQuality(qualitySource),
		})
	}
	return candidates
}

func isCached(name string) bool {
	for _, token := range cacheIndicators {
		if strings.Contains(name, token) {
			return true
		}
	}
	return false
}
