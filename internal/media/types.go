// Package media defines the wanted-item and candidate types shared by the
// stream catalog, the grab attempter and the bridge orchestrator.
package media

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingExternalID is returned when a wanted item carries no IMDb id.
var ErrMissingExternalID = errors.New("no IMDB ID found")

// Kind represents the type of media.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindEpisode Kind = "episode"
)

// WantedItem is a unit of media the library wants but does not have.
// Implemented by Movie and Episode.
type WantedItem interface {
	Kind() Kind
	// Key is unique per item across kinds.
	Key() string
	DisplayTitle() string
	ExternalID() string
	Query() (Query, error)
}

// Movie is a wanted movie from Radarr.
type Movie struct {
	LibraryID int64
	Title     string
	Year      int
	IMDbID    string
}

func (m Movie) Kind() Kind { return KindMovie }

func (m Movie) Key() string { return fmt.Sprintf("movie_%d", m.LibraryID) }

func (m Movie) DisplayTitle() string {
	if m.Year > 0 {
		return fmt.Sprintf("%s (%d)", m.Title, m.Year)
	}
	return m.Title
}

func (m Movie) ExternalID() string { return strings.TrimSpace(m.IMDbID) }

func (m Movie) Query() (Query, error) {
	id := m.ExternalID()
	if id == "" {
		return Query{}, ErrMissingExternalID
	}
	return Query{Kind: KindMovie, IMDbID: id}, nil
}

// Episode is a wanted episode from Sonarr.
type Episode struct {
	LibraryID     int64
	SeriesTitle   string
	SeasonNumber  int
	EpisodeNumber int
	EpisodeTitle  string
	IMDbID        string
	TVDbID        int64
}

func (e Episode) Kind() Kind { return KindEpisode }

func (e Episode) Key() string { return fmt.Sprintf("episode_%d", e.LibraryID) }

func (e Episode) DisplayTitle() string {
	series := e.SeriesTitle
	if series == "" {
		series = "Unknown Series"
	}
	label := fmt.Sprintf("%s S%02dE%02d", series, e.SeasonNumber, e.EpisodeNumber)
	if e.EpisodeTitle != "" {
		label += " - " + e.EpisodeTitle
	}
	return label
}

func (e Episode) ExternalID() string { return strings.TrimSpace(e.IMDbID) }

// Query requires an IMDb id; the stream catalog cannot be queried by TVDb id.
func (e Episode) Query() (Query, error) {
	id := e.ExternalID()
	if id == "" {
		return Query{}, ErrMissingExternalID
	}
	return Query{
		Kind:    KindEpisode,
		IMDbID:  id,
		Season:  e.SeasonNumber,
		Episode: e.EpisodeNumber,
	}, nil
}

// Query identifies one stream search.
type Query struct {
	Kind    Kind
	IMDbID  string
	Season  int
	Episode int
}

// Path returns the stream endpoint path for the query.
func (q Query) Path() string {
	if q.Kind == KindEpisode {
		return fmt.Sprintf("/stream/series/%s:%d:%d.json", q.IMDbID, q.Season, q.Episode)
	}
	return fmt.Sprintf("/stream/movie/%s.json", q.IMDbID)
}

func (q Query) String() string {
	if q.Kind == KindEpisode {
		return fmt.Sprintf("%s S%dE%d", q.IMDbID, q.Season, q.Episode)
	}
	return q.IMDbID
}

// Candidate is a cached stream that passed the catalog filter.
type Candidate struct {
	Label            string
	PlaybackURL      string
	VerificationName string
	Quality          Quality
}
