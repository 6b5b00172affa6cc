// Package grab triggers a debrid download for a single candidate stream and
// optionally confirms it against the debrid account.
package grab

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiodarr/aiodarr/internal/debrid"
	"github.com/aiodarr/aiodarr/internal/media"
)

// DefaultVerifyDelay is how long Real-Debrid needs before a triggered
// torrent shows up in the account listing.
const DefaultVerifyDelay = 5 * time.Second

const triggerTimeout = 30 * time.Second

// Verifier lists the items currently registered on the debrid account.
type Verifier interface {
	ListTorrents(ctx context.Context) ([]debrid.Torrent, error)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Outcome is the result of one attempt.
type Outcome int

const (
	// OutcomeRejected means the candidate had no playback URL.
	OutcomeRejected Outcome = iota
	OutcomeTriggerFailed
	// OutcomeAccepted means the trigger succeeded and verification was not possible.
	OutcomeAccepted
	OutcomeVerified
	// OutcomeVerifyDegraded means the verifier itself failed and the trigger result stands.
	OutcomeVerifyDegraded
	// OutcomeNotFound means the verifier answered but listed no matching item.
	OutcomeNotFound
	// OutcomeCancelled means ctx ended before the attempt could finish.
	OutcomeCancelled
)

// Succeeded reports whether the attempt counts as a successful grab.
func (o Outcome) Succeeded() bool {
	switch o {
	case OutcomeAccepted, OutcomeVerified, OutcomeVerifyDegraded:
		return true
	default:
		return false
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeTriggerFailed:
		return "trigger_failed"
	case OutcomeAccepted:
		return "accepted"
	case OutcomeVerified:
		return "verified"
	case OutcomeVerifyDegraded:
		return "verify_degraded"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Attempter triggers and verifies candidates one at a time.
type Attempter struct {
	client      *http.Client
	verifier    Verifier
	verifyDelay time.Duration
	sleep       SleepFunc
	logger      zerolog.Logger
}

// Option configures an Attempter.
type Option func(*Attempter)

// WithVerifier enables post-trigger verification.
func WithVerifier(v Verifier) Option {
	return func(a *Attempter) { a.verifier = v }
}

// WithVerifyDelay overrides DefaultVerifyDelay.
func WithVerifyDelay(d time.Duration) Option {
	return func(a *Attempter) { a.verifyDelay = d }
}

// WithSleep replaces the delay implementation.
func WithSleep(fn SleepFunc) Option {
	return func(a *Attempter) { a.sleep = fn }
}

// WithHTTPClient replaces the client used for the trigger request.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Attempter) { a.client = c }
}

// NewAttempter creates an attempter. Without WithVerifier a successful
// trigger alone counts as success.
func NewAttempter(logger zerolog.Logger, opts ...Option) *Attempter {
	a := &Attempter{
		client:      &http.Client{Timeout: triggerTimeout},
		verifyDelay: DefaultVerifyDelay,
		sleep:       sleepContext,
		logger:      logger.With().Str("component", "grab").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Attempt triggers the candidate and, when possible, verifies it.
func (a *Attempter) Attempt(ctx context.Context, c media.Candidate) Outcome {
	if c.PlaybackURL == "" {
		a.logger.Debug().Str("stream", c.Label).Msg("Stream has no playback URL, skipping")
		return OutcomeRejected
	}

	if err := a.trigger(ctx, c.PlaybackURL); err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}
		a.logger.Error().Err(err).Str("stream", c.Label).Msg("Error triggering download")
		return OutcomeTriggerFailed
	}
	a.logger.Info().Str("stream", c.Label).Msg("Successfully triggered download")

	if a.verifier == nil {
		return OutcomeAccepted
	}
	if c.VerificationName == "" {
		a.logger.Debug().Str("stream", c.Label).Msg("No filename for verification, assuming success")
		return OutcomeAccepted
	}

	a.logger.Info().
		Dur("delay", a.verifyDelay).
		Str("filename", c.VerificationName).
		Msg("Waiting before verifying in Real-Debrid")
	if err := a.sleep(ctx, a.verifyDelay); err != nil {
		a.logger.Warn().Err(err).Str("stream", c.Label).Msg("Verification interrupted")
		return OutcomeCancelled
	}

	torrents, err := a.verifier.ListTorrents(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeCancelled
		}
		a.logger.Warn().Err(err).Msg("Verification unavailable, trusting trigger result")
		return OutcomeVerifyDegraded
	}

	if match, ok := findMatch(c.VerificationName, torrents); ok {
		a.logger.Info().Str("filename", match.Filename).Msg("Verified in Real-Debrid")
		return OutcomeVerified
	}

	a.logger.Warn().Str("filename", c.VerificationName).Msg("Not found in Real-Debrid after trigger")
	return OutcomeNotFound
}

// trigger sends the HEAD request that makes the addon add the torrent.
func (a *Attempter) trigger(ctx context.Context, url string) error {
	a.logger.Info().Str("url", truncate(url, 100)).Msg("Triggering download via HEAD request")

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("trigger returned status %d", resp.StatusCode)
	}
	return nil
}

// findMatch reports the first torrent whose filename and name contain one
// another, ignoring case.
func findMatch(name string, torrents []debrid.Torrent) (debrid.Torrent, bool) {
	want := strings.ToLower(name)
	for _, t := range torrents {
		got := strings.ToLower(t.Filename)
		if got == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return t, true
		}
	}
	return debrid.Torrent{}, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate shortens s to at most maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
