package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/billy-core/internal/playback"
)

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed width so timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one finished playback session.
type Entry struct {
	ID          string        `json:"id"`
	Song        string        `json:"song"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
	Played      time.Duration `json:"-"`
	PlayedMS    int64         `json:"played_ms"`
	Frames      int64         `json:"frames"`
	Chunks      int64         `json:"chunks"`
	FrameRate   int           `json:"frame_rate"`
	ReachedTail bool          `json:"reached_tail"`
	Outcome     string        `json:"outcome"`
	Error       string        `json:"error,omitempty"`
}

// FromReport converts a playback report into a history entry.
func FromReport(r playback.Report) Entry {
	return Entry{
		ID:          r.SessionID,
		Song:        r.Song,
		StartedAt:   r.StartedAt,
		EndedAt:     r.EndedAt,
		Played:      r.Played,
		PlayedMS:    r.Played.Milliseconds(),
		Frames:      r.Frames,
		Chunks:      r.Chunks,
		FrameRate:   r.FrameRate,
		ReachedTail: r.ReachedTail,
		Outcome:     r.Outcome,
		Error:       r.Error,
	}
}

// Filter selects history entries. Zero fields match everything.
type Filter struct {
	Song    string
	Outcome string
	Limit   int // default 50, max 200
	Offset  int
}

// ListResult is one page of history.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// SongStats aggregates the history of one song.
type SongStats struct {
	Song       string    `json:"song"`
	Plays      int       `json:"plays"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	PlayedMS   int64     `json:"played_ms"`
	LastPlayed time.Time `json:"last_played"`
}

// Repository stores play history.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, f Filter) (*ListResult, error)
	Stats(ctx context.Context) ([]SongStats, error)
}

// SQLiteRepository keeps play history in the play_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on db. The schema must have
// been migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordSession stores a finished session. It makes the repository a
// playback.Reporter.
func (r *SQLiteRepository) RecordSession(ctx context.Context, rep playback.Report) error {
	e := FromReport(rep)
	return r.Record(ctx, &e)
}

// Record inserts e. A missing ID is generated and a missing EndedAt is
// set to now.
func (r *SQLiteRepository) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.EndedAt.IsZero() {
		e.EndedAt = time.Now().UTC()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.EndedAt
	}
	if e.PlayedMS == 0 && e.Played > 0 {
		e.PlayedMS = e.Played.Milliseconds()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO play_history
		    (id, song, started_at, ended_at, played_ms, frames, chunks, frame_rate, reached_tail, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Song,
		e.StartedAt.UTC().Format(timeLayout),
		e.EndedAt.UTC().Format(timeLayout),
		e.PlayedMS, e.Frames, e.Chunks, e.FrameRate,
		boolToInt(e.ReachedTail), e.Outcome, nullableString(e.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// Get returns the entry with id, or ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM play_history WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns entries matching f, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var conds []string
	var args []any
	if f.Song != "" {
		conds = append(conds, "song = ?")
		args = append(args, f.Song)
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, f.Outcome)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM play_history " + where //nolint:gosec // WHERE built from fixed, parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting history: %w", err)
	}

	query := "SELECT " + entryColumns + " FROM play_history " + where + //nolint:gosec // as above
		" ORDER BY started_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// Stats aggregates the history per song, most played first.
func (r *SQLiteRepository) Stats(ctx context.Context) ([]SongStats, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT song,
		       COUNT(*),
		       SUM(CASE WHEN outcome = 'completed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END),
		       SUM(played_ms),
		       MAX(started_at)
		FROM play_history
		GROUP BY song
		ORDER BY COUNT(*) DESC, song`)
	if err != nil {
		return nil, fmt.Errorf("querying history stats: %w", err)
	}
	defer rows.Close()

	stats := []SongStats{}
	for rows.Next() {
		var s SongStats
		var last string
		if err := rows.Scan(&s.Song, &s.Plays, &s.Completed, &s.Failed, &s.PlayedMS, &last); err != nil {
			return nil, fmt.Errorf("scanning history stats: %w", err)
		}
		if s.LastPlayed, err = parseTime(last); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history stats: %w", err)
	}
	return stats, nil
}

const entryColumns = "id, song, started_at, ended_at, played_ms, frames, chunks, frame_rate, reached_tail, outcome, error"

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var e Entry
	var started, ended string
	var tail int
	var errText sql.NullString

	if err := s.Scan(&e.ID, &e.Song, &started, &ended, &e.PlayedMS, &e.Frames,
		&e.Chunks, &e.FrameRate, &tail, &e.Outcome, &errText); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning history entry: %w", err)
	}

	var err error
	if e.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if e.EndedAt, err = parseTime(ended); err != nil {
		return nil, err
	}
	e.Played = time.Duration(e.PlayedMS) * time.Millisecond
	e.ReachedTail = tail != 0
	e.Error = errText.String
	return &e, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing history timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
