package arr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aiodarr/aiodarr/internal/media"
)

// SonarrClient lists wanted episodes.
type SonarrClient struct {
	api *apiClient
}

// NewSonarrClient creates a Sonarr client.
func NewSonarrClient(cfg ConnectionConfig) *SonarrClient {
	return &SonarrClient{api: newAPIClient(cfg, SourceTypeSonarr)}
}

func (c *SonarrClient) Name() string { return "Sonarr" }

func (c *SonarrClient) Kind() media.Kind { return media.KindEpisode }

func (c *SonarrClient) Validate(ctx context.Context) error { return c.api.validate(ctx) }

type apiWantedEpisode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	Monitored     bool   `json:"monitored"`
	Series        *struct {
		Title  string `json:"title"`
		ImdbID string `json:"imdbId"`
		TvdbID int64  `json:"tvdbId"`
	} `json:"series"`
}

// WantedEpisodes returns the episodes Sonarr reports as missing.
func (c *SonarrClient) WantedEpisodes(ctx context.Context) ([]media.Episode, error) {
	data, err := c.api.doRequest(ctx, http.MethodGet, wantedPath("&includeSeries=true"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wanted episodes: %w", err)
	}

	var page struct {
		Records []apiWantedEpisode `json:"records"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to parse wanted episodes: %w", err)
	}

	episodes := make([]media.Episode, 0, len(page.Records))
	for _, r := range page.Records {
		ep := media.Episode{
			LibraryID:     r.ID,
			SeasonNumber:  r.SeasonNumber,
			EpisodeNumber: r.EpisodeNumber,
			EpisodeTitle:  r.Title,
		}
		if r.Series != nil {
			ep.SeriesTitle = r.Series.Title
			ep.IMDbID = r.Series.ImdbID
			ep.TVDbID = r.Series.TvdbID
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// Wanted implements Library.
func (c *SonarrClient) Wanted(ctx context.Context) ([]media.WantedItem, error) {
	episodes, err := c.WantedEpisodes(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]media.WantedItem, len(episodes))
	for i, e := range episodes {
		items[i] = e
	}
	return items, nil
}

// UnmonitorEpisode sets the episode as unmonitored.
func (c *SonarrClient) UnmonitorEpisode(ctx context.Context, episodeID int64) error {
	if err := c.api.setUnmonitored(ctx, fmt.Sprintf("/api/v3/episode/%d", episodeID)); err != nil {
		return fmt.Errorf("failed to unmonitor episode %d: %w", episodeID, err)
	}
	return nil
}

// Unmonitor implements Library.
func (c *SonarrClient) Unmonitor(ctx context.Context, item media.WantedItem) error {
	episode, ok := item.(media.Episode)
	if !ok {
		return fmt.Errorf("sonarr cannot unmonitor %s item", item.Kind())
	}
	return c.UnmonitorEpisode(ctx, episode.LibraryID)
}
