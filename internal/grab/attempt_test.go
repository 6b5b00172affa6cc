package grab

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiodarr/aiodarr/internal/debrid"
	"github.com/aiodarr/aiodarr/internal/media"
)

type fakeVerifier struct {
	torrents []debrid.Torrent
	err      error
	calls    int
}

func (f *fakeVerifier) ListTorrents(ctx context.Context) ([]debrid.Torrent, error) {
	f.calls++
	return f.torrents, f.err
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTriggerServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestAttempt_EmptyURLMakesNoRequest(t *testing.T) {
	_, calls := newTriggerServer(t, http.StatusOK)
	verifier := &fakeVerifier{}

	a := NewAttempter(zerolog.Nop(), WithVerifier(verifier), WithSleep(noSleep))
	outcome := a.Attempt(context.Background(), media.Candidate{Label: "[RD+] no url"})

	assert.Equal(t, OutcomeRejected, outcome)
	assert.False(t, outcome.Succeeded())
	assert.Equal(t, int32(0), calls.Load())
	assert.Equal(t, 0, verifier.calls)
}

func TestAttempt_NoVerifierReturnsTriggerResult(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Outcome
	}{
		{"ok", http.StatusOK, OutcomeAccepted},
		{"partial content", http.StatusPartialContent, OutcomeAccepted},
		{"not found", http.StatusNotFound, OutcomeTriggerFailed},
		{"server error", http.StatusInternalServerError, OutcomeTriggerFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, calls := newTriggerServer(t, tt.status)
			a := NewAttempter(zerolog.Nop())

			outcome := a.Attempt(context.Background(), media.Candidate{PlaybackURL: server.URL + "/playback/x"})
			assert.Equal(t, tt.want, outcome)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestAttempt_FollowsRedirects(t *testing.T) {
	final, calls := newTriggerServer(t, http.StatusOK)
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/file.mkv", http.StatusFound)
	}))
	defer redirect.Close()

	outcome := NewAttempter(zerolog.Nop()).Attempt(context.Background(), media.Candidate{PlaybackURL: redirect.URL})
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAttempt_UnreachableTrigger(t *testing.T) {
	server, _ := newTriggerServer(t, http.StatusOK)
	url := server.URL
	server.Close()

	outcome := NewAttempter(zerolog.Nop()).Attempt(context.Background(), media.Candidate{PlaybackURL: url})
	assert.Equal(t, OutcomeTriggerFailed, outcome)
}

func TestAttempt_Verification(t *testing.T) {
	torrents := []debrid.Torrent{
		{ID: "1", Filename: "Other.Movie.2023.1080p.mkv"},
		{ID: "2", Filename: "Shrinking S03E04 The Field 2160p ATVP WEB-DL DDP5 1 DV H 265-NTb.mkv"},
	}

	tests := []struct {
		name     string
		filename string
		want     Outcome
	}{
		{"exact", "Shrinking S03E04 The Field 2160p ATVP WEB-DL DDP5 1 DV H 265-NTb.mkv", OutcomeVerified},
		{"case insensitive", "SHRINKING S03E04 THE FIELD 2160P ATVP WEB-DL DDP5 1 DV H 265-NTB.MKV", OutcomeVerified},
		{"candidate contains listed", "/downloads/Other.Movie.2023.1080p.mkv", OutcomeVerified},
		{"listed contains candidate", "Shrinking S03E04", OutcomeVerified},
		{"no match", "Severance.S02E01.mkv", OutcomeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTriggerServer(t, http.StatusOK)
			verifier := &fakeVerifier{torrents: torrents}
			a := NewAttempter(zerolog.Nop(), WithVerifier(verifier), WithSleep(noSleep))

			outcome := a.Attempt(context.Background(), media.Candidate{
				PlaybackURL:      server.URL,
				VerificationName: tt.filename,
			})
			assert.Equal(t, tt.want, outcome)
			assert.Equal(t, tt.want == OutcomeVerified, outcome.Succeeded())
			assert.Equal(t, 1, verifier.calls)
		})
	}
}

func TestAttempt_SkipsVerificationWithoutName(t *testing.T) {
	server, _ := newTriggerServer(t, http.StatusOK)
	verifier := &fakeVerifier{}
	slept := false
	a := NewAttempter(zerolog.Nop(), WithVerifier(verifier), WithSleep(func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}))

	outcome := a.Attempt(context.Background(), media.Candidate{PlaybackURL: server.URL})
	assert.Equal(t, OutcomeAccepted, outcome)
	assert.Equal(t, 0, verifier.calls)
	assert.False(t, slept)
}

func TestAttempt_VerifierFailureDegrades(t *testing.T) {
	server, _ := newTriggerServer(t, http.StatusOK)
	verifier := &fakeVerifier{err: errors.New("rd down")}
	a := NewAttempter(zerolog.Nop(), WithVerifier(verifier), WithSleep(noSleep))

	outcome := a.Attempt(context.Background(), media.Candidate{PlaybackURL: server.URL, VerificationName: "x.mkv"})
	assert.Equal(t, OutcomeVerifyDegraded, outcome)
	assert.True(t, outcome.Succeeded())
}

func TestAttempt_UsesConfiguredDelay(t *testing.T) {
	server, _ := newTriggerServer(t, http.StatusOK)
	var got time.Duration
	a := NewAttempter(zerolog.Nop(),
		WithVerifier(&fakeVerifier{torrents: []debrid.Torrent{{Filename: "x.mkv"}}}),
		WithVerifyDelay(42*time.Millisecond),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			got = d
			return nil
		}),
	)

	outcome := a.Attempt(context.Background(), media.Candidate{PlaybackURL: server.URL, VerificationName: "x.mkv"})
	assert.Equal(t, OutcomeVerified, outcome)
	assert.Equal(t, 42*time.Millisecond, got)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestFindMatch_IgnoresEmptyFilenames(t *testing.T) {
	_, ok := findMatch("Movie.mkv", []debrid.Torrent{{ID: "1", Filename: ""}})
	assert.False(t, ok)
}

func TestAttempt_CancelledDuringDelay(t *testing.T) {
	server, _ := newTriggerServer(t, http.StatusOK)
	verifier := &fakeVerifier{torrents: []debrid.Torrent{{Filename: "x.mkv"}}}
	a := NewAttempter(zerolog.Nop(), WithVerifier(verifier), WithVerifyDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	defer cancel()

	outcome := a.Attempt(ctx, media.Candidate{PlaybackURL: server.URL, VerificationName: "x.mkv"})
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.False(t, outcome.Succeeded())
	assert.Zero(t, verifier.calls)
}

func TestAttempt_CancelledBeforeTrigger(t *testing.T) {
	server, calls := newTriggerServer(t, http.StatusOK)
	a := NewAttempter(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, OutcomeCancelled, a.Attempt(ctx, media.Candidate{PlaybackURL: server.URL}))
	assert.Zero(t, calls.Load())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ééé...", truncate("éééééééé", 6))
}
