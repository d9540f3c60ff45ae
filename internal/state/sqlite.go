package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS weight_versions (
	version_id    TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	parent_id     TEXT,
	weights_json  TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES weight_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_weight_versions_user ON weight_versions(user_id, created_at);

CREATE TABLE IF NOT EXISTS active_weights (
	user_id       TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES weight_versions(version_id)
);

CREATE TABLE IF NOT EXISTS feedback_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       TEXT NOT NULL,
	version_id    TEXT,
	feedback_text TEXT,
	signals_json  TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region sqlite-struct
// SQLiteBackend keeps every saved map as an immutable version and points each
// user at their active one, so history can be listed and rolled back.
type SQLiteBackend struct {
	db *sql.DB
}
// #endregion sqlite-struct

// #region constructor
// NewSQLiteBackend opens a SQLite database and runs migrations.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	b, err := NewSQLiteBackendWithDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLiteBackendWithDB runs migrations on an already opened database.
func NewSQLiteBackendWithDB(db *sql.DB) (*SQLiteBackend, error) {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("pragma busy: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (b *SQLiteBackend) DB() *sql.DB {
	return b.db
}
// #endregion db-accessor

// #region get
// Get reads the user's active weights.
func (b *SQLiteBackend) Get(ctx context.Context, userID string) (Weights, bool, error) {
	var raw string
	err := b.db.QueryRowContext(ctx,
		`SELECT v.weights_json FROM active_weights a
		 JOIN weight_versions v ON v.version_id = a.version_id
		 WHERE a.user_id = ?`, userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get active: %w", err)
	}
	w, err := decodeWeights(raw)
	if err != nil {
		return nil, false, err
	}
	return w, true, nil
}
// #endregion get

// #region put
// Put inserts a new version and moves the user's active pointer atomically.
func (b *SQLiteBackend) Put(ctx context.Context, userID string, w Weights, metricsJSON string) (string, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("marshal weights: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parent sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT version_id FROM active_weights WHERE user_id = ?`, userID).Scan(&parent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get parent: %w", err)
	}

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO weight_versions (version_id, user_id, parent_id, weights_json, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, parent, string(data), time.Now().UTC().Format(timeFormat), nullIfEmpty(metricsJSON),
	)
	if err != nil {
		return "", fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_weights (user_id, version_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET version_id = excluded.version_id`,
		userID, id,
	)
	if err != nil {
		return "", fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}
// #endregion put

// #region rollback
// Rollback points the user back at one of their earlier versions.
func (b *SQLiteBackend) Rollback(ctx context.Context, userID, versionID string) error {
	var owner string
	err := b.db.QueryRowContext(ctx,
		`SELECT user_id FROM weight_versions WHERE version_id = ?`, versionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return fmt.Errorf("rollback %s: %w: %s", userID, ErrVersionNotFound, versionID)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}

	_, err = b.db.ExecContext(ctx,
		`INSERT INTO active_weights (user_id, version_id) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET version_id = excluded.version_id`,
		userID, versionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region get-version
// GetVersion retrieves a specific version by id.
func (b *SQLiteBackend) GetVersion(ctx context.Context, id string) (Version, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT v.version_id, v.user_id, v.parent_id, v.weights_json, v.created_at, v.metrics_json,
		        a.version_id IS NOT NULL
		 FROM weight_versions v
		 LEFT JOIN active_weights a ON a.version_id = v.version_id
		 WHERE v.version_id = ?`, id)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("get version %s: %w", id, ErrVersionNotFound)
	}
	if err != nil {
		return Version{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}
// #endregion get-version

// #region list-versions
// ListVersions returns the user's most recent versions, newest first.
func (b *SQLiteBackend) ListVersions(ctx context.Context, userID string, limit int) ([]Version, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT v.version_id, v.user_id, v.parent_id, v.weights_json, v.created_at, v.metrics_json,
		        a.version_id IS NOT NULL
		 FROM weight_versions v
		 LEFT JOIN active_weights a ON a.version_id = v.version_id
		 WHERE v.user_id = ?
		 ORDER BY v.created_at DESC, v.rowid DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Users returns every user with an active record, sorted.
func (b *SQLiteBackend) Users(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT user_id FROM active_weights ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
// #endregion list-versions

// #region encoding
// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner) (Version, error) {
	var v Version
	var parentID, metricsJSON sql.NullString
	var raw, createdStr string
	if err := row.Scan(&v.VersionID, &v.UserID, &parentID, &raw, &createdStr, &metricsJSON, &v.Active); err != nil {
		return Version{}, err
	}
	w, err := decodeWeights(raw)
	if err != nil {
		return Version{}, err
	}
	v.Weights = w
	v.ParentID = parentID.String
	v.MetricsJSON = metricsJSON.String
	created, err := time.Parse(timeFormat, createdStr)
	if err != nil {
		return Version{}, fmt.Errorf("decode created_at: %w: %w", ErrCorrupt, err)
	}
	v.CreatedAt = created
	return v, nil
}

func decodeWeights(raw string) (Weights, error) {
	var w Weights
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("decode weights: %w: %w", ErrCorrupt, err)
	}
	if w == nil {
		return nil, fmt.Errorf("decode weights: %w: null record", ErrCorrupt)
	}
	return w, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
// #endregion encoding
