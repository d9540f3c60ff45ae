package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/campusfuel/healthos-engine/internal/state"
)

// #region journal
// Journal writes feedback decisions to the feedback_log table created by the
// SQLite weight backend.
type Journal struct {
	db *sql.DB
}

// NewJournal wraps an open database.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}
// #endregion journal

// #region record
// Record writes one entry.
func (j *Journal) Record(ctx context.Context, e state.FeedbackEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO feedback_log (user_id, version_id, feedback_text, signals_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID,
		nullIfEmpty(e.VersionID),
		nullIfEmpty(e.Text),
		nullIfEmpty(e.SignalsJSON),
		e.Decision,
		nullIfEmpty(e.Reason),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}
// #endregion record

// #region entries
// Entries returns the user's journal in insertion order. limit <= 0 returns all.
func (j *Journal) Entries(ctx context.Context, userID string, limit int) ([]state.FeedbackEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT user_id, version_id, feedback_text, signals_json, decision, reason, created_at
		 FROM feedback_log WHERE user_id = ? ORDER BY id ASC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []state.FeedbackEntry
	for rows.Next() {
		var e state.FeedbackEntry
		var versionID, text, signalsJSON, reason sql.NullString
		var created string
		if err := rows.Scan(&e.UserID, &versionID, &text, &signalsJSON, &e.Decision, &reason, &created); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		e.VersionID = versionID.String
		e.Text = text.String
		e.SignalsJSON = signalsJSON.String
		e.Reason = reason.String
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: created_at: %w: %w", state.ErrCorrupt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of journal entries per decision for a user.
func (j *Journal) Counts(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT decision, COUNT(*) FROM feedback_log WHERE user_id = ? GROUP BY decision`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[d] = n
	}
	return out, rows.Err()
}
// #endregion entries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
