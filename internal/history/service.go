// Package history keeps an audit log of per-item cycle outcomes in SQLite.
//
// The log is informational only; retry decisions never read it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Service provides history management functionality.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
		now:    time.Now,
	}
}

// Create inserts an entry and returns it with its id and timestamp set.
func (s *Service) Create(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO grab_history
			(cycle_id, item_key, media_kind, title, outcome, reason, stream_label, quality, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CycleID, entry.ItemKey, entry.MediaKind, entry.Title, string(entry.Outcome),
		entry.Reason, entry.StreamLabel, entry.Quality, entry.Attempts, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read history id: %w", err)
	}
	entry.ID = id
	return &entry, nil
}

// Record stores entry and logs, rather than returns, any failure.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if _, err := s.Create(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("key", entry.ItemKey).Msg("Failed to record history")
	}
}

// List returns the newest entries first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Limit < 1 {
		opts.Limit = defaultLimit
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}

	where, args := opts.filter()

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM grab_history"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	query := `SELECT id, cycle_id, item_key, media_kind, title, outcome, reason, stream_label, quality, attempts, created_at
		FROM grab_history` + where + ` ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, opts.Limit)
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.ID, &e.CycleID, &e.ItemKey, &e.MediaKind, &e.Title, &outcome,
			&e.Reason, &e.StreamLabel, &e.Quality, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListResponse{Items: entries, TotalCount: total}, nil
}

// ListByItem returns all entries for one item key, newest first.
func (s *Service) ListByItem(ctx context.Context, key string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cycle_id, item_key, media_kind, title, outcome, reason, stream_label, quality, attempts, created_at
		FROM grab_history WHERE item_key = ? ORDER BY id DESC`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.ID, &e.CycleID, &e.ItemKey, &e.MediaKind, &e.Title, &outcome,
			&e.Reason, &e.StreamLabel, &e.Quality, &e.Attempts, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// DeleteAll removes every entry.
func (s *Service) DeleteAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM grab_history")
	return err
}

// DeleteOlderThan removes entries created before cutoff.
func (s *Service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM grab_history WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (o ListOptions) filter() (string, []any) {
	var clauses []string
	var args []any
	if o.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(o.Outcome))
	}
	if o.MediaKind != "" {
		clauses = append(clauses, "media_kind = ?")
		args = append(args, o.MediaKind)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
