package arr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aiodarr/aiodarr/internal/media"
)

// RadarrClient lists wanted movies.
type RadarrClient struct {
	api *apiClient
}

// NewRadarrClient creates a Radarr client.
func NewRadarrClient(cfg ConnectionConfig) *RadarrClient {
	return &RadarrClient{api: newAPIClient(cfg, SourceTypeRadarr)}
}

func (c *RadarrClient) Name() string { return "Radarr" }

func (c *RadarrClient) Kind() media.Kind { return media.KindMovie }

func (c *RadarrClient) Validate(ctx context.Context) error { return c.api.validate(ctx) }

type apiWantedMovie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	ImdbID    string `json:"imdbId"`
	TmdbID    int    `json:"tmdbId"`
	Monitored bool   `json:"monitored"`
}

// WantedMovies returns the movies Radarr reports as missing.
func (c *RadarrClient) WantedMovies(ctx context.Context) ([]media.Movie, error) {
	data, err := c.api.doRequest(ctx, http.MethodGet, wantedPath(""), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wanted movies: %w", err)
	}

	var page struct {
		Records []apiWantedMovie `json:"records"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to parse wanted movies: %w", err)
	}

	movies := make([]media.Movie, 0, len(page.Records))
	for _, r := range page.Records {
		movies = append(movies, media.Movie{
			LibraryID: r.ID,
			Title:     r.Title,
			Year:      r.Year,
			IMDbID:    r.ImdbID,
		})
	}
	return movies, nil
}

// Wanted implements Library.
func (c *RadarrClient) Wanted(ctx context.Context) ([]media.WantedItem, error) {
	movies, err := c.WantedMovies(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]media.WantedItem, len(movies))
	for i, m := range movies {
		items[i] = m
	}
	return items, nil
}

// UnmonitorMovie sets the movie as unmonitored.
func (c *RadarrClient) UnmonitorMovie(ctx context.Context, movieID int64) error {
	if err := c.api.setUnmonitored(ctx, fmt.Sprintf("/api/v3/movie/%d", movieID)); err != nil {
		return fmt.Errorf("failed to unmonitor movie %d: %w", movieID, err)
	}
	return nil
}

// Unmonitor implements Library.
func (c *RadarrClient) Unmonitor(ctx context.Context, item media.WantedItem) error {
	movie, ok := item.(media.Movie)
	if !ok {
		return fmt.Errorf("radarr cannot unmonitor %s item", item.Kind())
	}
	return c.UnmonitorMovie(ctx, movie.LibraryID)
}
