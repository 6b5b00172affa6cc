// Package bridge runs the poll cycle: it pulls wanted items from the media
// libraries, finds cached streams for each, triggers up to MaxAttempts of them
// and records and reports the outcome.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aiodarr/aiodarr/internal/arr"
	"github.com/aiodarr/aiodarr/internal/grab"
	"github.com/aiodarr/aiodarr/internal/health"
	"github.com/aiodarr/aiodarr/internal/history"
	"github.com/aiodarr/aiodarr/internal/media"
	"github.com/aiodarr/aiodarr/internal/notification"
	"github.com/aiodarr/aiodarr/internal/processed"
)

// ErrCycleRunning is returned by RunCycle when another cycle is in progress.
var ErrCycleRunning = errors.New("cycle already running")

const flushTimeout = 30 * time.Second

// Catalog finds cached stream candidates for a query.
type Catalog interface {
	FindCandidates(ctx context.Context, query media.Query) ([]media.Candidate, error)
}

// Attempter triggers and verifies a single candidate.
type Attempter interface {
	Attempt(ctx context.Context, candidate media.Candidate) grab.Outcome
}

// HistoryRecorder persists terminal item outcomes.
type HistoryRecorder interface {
	Record(ctx context.Context, entry history.Entry)
}

// HealthReporter receives reachability changes of upstream services.
type HealthReporter interface {
	SetError(category health.HealthCategory, id, message string)
	SetWarning(category health.HealthCategory, id, message string)
	ClearStatus(category health.HealthCategory, id string)
}

type nopHealth struct{}

func (nopHealth) SetError(health.HealthCategory, string, string)   {}
func (nopHealth) SetWarning(health.HealthCategory, string, string) {}
func (nopHealth) ClearStatus(health.HealthCategory, string)        {}

// Dependencies are the collaborators of a Service. Libraries are processed in
// the given order; Notifier, History and Health may be nil.
type Dependencies struct {
	Libraries []arr.Library
	Catalog   Catalog
	Attempter Attempter
	Store     *processed.Store
	Notifier  notification.Notifier
	History   HistoryRecorder
	Health    HealthReporter
}

// Service runs poll cycles.
type Service struct {
	libraries []arr.Library
	catalog   Catalog
	attempter Attempter
	store     *processed.Store
	notifier  notification.Notifier
	history   HistoryRecorder
	health    HealthReporter
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	last    *CycleResult
}

// NewService creates a cycle service.
func NewService(deps Dependencies, logger zerolog.Logger) *Service {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notification.Nop{}
	}
	var reporter HealthReporter = nopHealth{}
	if deps.Health != nil {
		reporter = deps.Health
	}
	return &Service{
		libraries: deps.Libraries,
		catalog:   deps.Catalog,
		attempter: deps.Attempter,
		store:     deps.Store,
		notifier:  notifier,
		history:   deps.History,
		health:    reporter,
		logger:    logger.With().Str("component", "bridge").Logger(),
		now:       time.Now,
	}
}

// Store returns the processed item store.
func (s *Service) Store() *processed.Store {
	return s.store
}

// IsRunning reports whether a cycle is in progress.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastResult returns the most recently completed cycle, if any.
func (s *Service) LastResult() (CycleResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return CycleResult{}, false
	}
	return *s.last, true
}

// Run executes one cycle and adapts it to a scheduler task signature.
func (s *Service) Run(ctx context.Context) error {
	_, err := s.RunCycle(ctx)
	if errors.Is(err, ErrCycleRunning) {
		s.logger.Debug().Msg("Cycle already running, skipping")
		return nil
	}
	return err
}

// RunCycle processes every wanted item once. Item-level problems never abort
// the cycle; only a concurrent cycle or a cancelled context end it early.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return CycleResult{}, ErrCycleRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	result := CycleResult{
		ID:      uuid.NewString(),
		Started: s.now(),
	}
	log := s.logger.With().Str("cycle", result.ID).Logger()
	log.Info().Int("libraries", len(s.libraries)).Msg("Starting cycle")

	for _, lib := range s.libraries {
		if ctx.Err() != nil {
			break
		}
		s.processLibrary(ctx, log, lib, &result)
	}

	result.Stats = s.store.Stats()
	result.Duration = s.now().Sub(result.Started)

	log.Info().
		Int("total", result.Stats.Total).
		Int("successful", result.Stats.Succeeded).
		Int("failed", result.Stats.Failed).
		Msg("Statistics")

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	s.notifier.Flush(flushCtx)
	cancel()

	log.Info().
		Int("items", len(result.Items)).
		Int("succeeded", result.Count(StateSucceeded)).
		Int("skipped", result.Count(StateSkip)).
		Dur("elapsed", result.Duration).
		Msg("Cycle completed")

	s.mu.Lock()
	last := result
	s.last = &last
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) processLibrary(ctx context.Context, log zerolog.Logger, lib arr.Library, result *CycleResult) {
	log = log.With().Str("library", lib.Name()).Logger()
	log.Info().Msgf("Checking for wanted %ss...", lib.Kind())

	items, err := lib.Wanted(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch wanted items")
		result.LibraryErrors = append(result.LibraryErrors, LibraryError{Library: lib.Name(), Error: err.Error()})
		s.health.SetError(health.CategoryLibraries, LibraryHealthID(lib), err.Error())
		return
	}
	s.health.ClearStatus(health.CategoryLibraries, LibraryHealthID(lib))
	log.Info().Int("count", len(items)).Msgf("Found %d wanted %ss", len(items), lib.Kind())

	for _, item := range items {
		if ctx.Err() != nil {
			log.Warn().Msg("Cycle cancelled")
			return
		}
		itemResult := s.processItem(ctx, log, lib, item)
		result.Items = append(result.Items, itemResult)
		if itemResult.State.Terminal() {
			s.recordHistory(ctx, result.ID, itemResult)
		}
	}
}

// processItem drives one item through the skip gate and its attempts.
func (s *Service) processItem(ctx context.Context, log zerolog.Logger, lib arr.Library, item media.WantedItem) ItemResult {
	res := ItemResult{
		Key:   item.Key(),
		Kind:  item.Kind(),
		Title: item.DisplayTitle(),
		State: StateSkip,
	}
	log = log.With().Str("key", res.Key).Str("title", res.Title).Logger()

	if s.store.ShouldSkip(res.Key) {
		log.Debug().Msg("Skipping, recently processed")
		return res
	}

	query, err := item.Query()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot search, skipping")
		res.State = StateInvalid
		res.Reason = ReasonMissingID
		s.notifier.CollectFailure(s.failureEvent(item, res.Reason, map[string]string{
			"Library ID": libraryID(item),
		}))
		return res
	}

	log.Info().Str("query", query.String()).Msgf("Processing %s", item.Kind())

	candidates, err := s.catalog.FindCandidates(ctx, query)
	if err != nil && ctx.Err() != nil {
		log.Warn().Msg("Cycle cancelled during stream search")
		res.State = StateCancelled
		return res
	}
	if err != nil || len(candidates) == 0 {
		res.State = StateNoCandidates
		res.Reason = ReasonNoStreams
		if err != nil {
			res.Reason = ReasonSearchFailed
			log.Error().Err(err).Msg("Stream search failed")
			s.health.SetWarning(health.CategoryStreams, health.IDAIOStreams, err.Error())
		} else {
			s.health.ClearStatus(health.CategoryStreams, health.IDAIOStreams)
			log.Warn().Msg("No cached streams found")
		}
		s.store.Mark(res.Key, false)
		s.notifier.CollectFailure(s.failureEvent(item, res.Reason, queryDetails(query)))
		return res
	}
	res.Candidates = len(candidates)
	s.health.ClearStatus(health.CategoryStreams, health.IDAIOStreams)

	limit := min(MaxAttempts, len(candidates))
	log.Info().Int("candidates", len(candidates)).Int("maxAttempts", limit).Msg("Found cached streams")

	res.State = StateAttempting
	for i, candidate := range candidates[:limit] {
		if ctx.Err() != nil {
			log.Warn().Msg("Cycle cancelled between attempts")
			res.State = StateCancelled
			return res
		}
		res.Attempts = i + 1
		log.Info().
			Int("attempt", res.Attempts).
			Int("of", limit).
			Str("stream", candidate.Label).
			Msg("Trying stream")

		outcome := s.attempter.Attempt(ctx, candidate)
		if outcome == grab.OutcomeCancelled {
			log.Warn().Str("stream", candidate.Label).Msg("Cycle cancelled during attempt")
			res.State = StateCancelled
			return res
		}
		s.reportVerifier(outcome)
		if !outcome.Succeeded() {
			log.Warn().Str("outcome", outcome.String()).Str("stream", candidate.Label).Msg("Stream attempt failed")
			continue
		}

		res.State = StateSucceeded
		res.Stream = candidate.Label
		res.Quality = candidate.Quality
		log.Info().Str("outcome", outcome.String()).Str("quality", string(candidate.Quality)).Msg("Successfully triggered")

		if err := lib.Unmonitor(ctx, item); err != nil {
			log.Warn().Err(err).Msgf("Failed to unmonitor in %s", lib.Name())
		} else {
			log.Info().Msgf("Unmonitored in %s", lib.Name())
		}

		s.store.Mark(res.Key, true)
		s.notifier.NotifySuccess(ctx, notification.SuccessEvent{
			Kind:        item.Kind(),
			Title:       res.Title,
			IMDbID:      item.ExternalID(),
			Quality:     candidate.Quality,
			StreamTitle: candidate.Label,
			Attempts:    res.Attempts,
			OccurredAt:  s.now(),
		})
		return res
	}

	res.State = StateExhausted
	res.Reason = fmt.Sprintf(reasonExhaustedTmpl, res.Attempts)
	log.Error().Int("attempts", res.Attempts).Msg("All stream attempts failed")

	s.store.Mark(res.Key, false)
	details := queryDetails(query)
	details["Streams found"] = strconv.Itoa(len(candidates))
	s.notifier.CollectFailure(s.failureEvent(item, res.Reason, details))
	return res
}

func (s *Service) reportVerifier(outcome grab.Outcome) {
	switch outcome {
	case grab.OutcomeVerifyDegraded:
		s.health.SetWarning(health.CategoryDebrid, health.IDRealDebrid, "torrent list unavailable, trusting trigger results")
	case grab.OutcomeVerified, grab.OutcomeNotFound:
		s.health.ClearStatus(health.CategoryDebrid, health.IDRealDebrid)
	}
}

// LibraryHealthID is the health item id for a library.
func LibraryHealthID(lib arr.Library) string {
	return strings.ToLower(lib.Name())
}

func (s *Service) failureEvent(item media.WantedItem, reason string, details map[string]string) notification.FailureEvent {
	return notification.FailureEvent{
		Kind:       item.Kind(),
		Title:      item.DisplayTitle(),
		Reason:     reason,
		Details:    details,
		OccurredAt: s.now(),
	}
}

func (s *Service) recordHistory(ctx context.Context, cycleID string, res ItemResult) {
	if s.history == nil {
		return
	}
	s.history.Record(ctx, history.Entry{
		CycleID:     cycleID,
		ItemKey:     res.Key,
		MediaKind:   string(res.Kind),
		Title:       res.Title,
		Outcome:     historyOutcome(res.State),
		Reason:      res.Reason,
		StreamLabel: res.Stream,
		Quality:     string(res.Quality),
		Attempts:    res.Attempts,
		CreatedAt:   s.now().UTC(),
	})
}

func historyOutcome(state State) history.Outcome {
	switch state {
	case StateSucceeded:
		return history.OutcomeSucceeded
	case StateNoCandidates:
		return history.OutcomeNoCandidates
	case StateExhausted:
		return history.OutcomeExhausted
	default:
		return history.OutcomeInvalid
	}
}

func queryDetails(q media.Query) map[string]string {
	details := map[string]string{"IMDb": q.IMDbID}
	if q.Kind == media.KindEpisode {
		details["Season"] = strconv.Itoa(q.Season)
		details["Episode"] = strconv.Itoa(q.Episode)
	}
	return details
}

func libraryID(item media.WantedItem) string {
	switch v := item.(type) {
	case media.Movie:
		return strconv.FormatInt(v.LibraryID, 10)
	case media.Episode:
		return strconv.FormatInt(v.LibraryID, 10)
	default:
		return item.Key()
	}
}
