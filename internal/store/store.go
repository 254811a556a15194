// Package store persists committed observations and their question keys in
// SQLite so answers learned on one site can be offered on the next.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/a3tai/mcp-form-reader/internal/form"
)

// timeLayout sorts lexically in UTC
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a looked-up row does not exist
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS question_keys (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	phrases TEXT NOT NULL,
	section_hints TEXT,
	choice_set_hash TEXT
);
CREATE TABLE IF NOT EXISTS observations (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	site_key TEXT NOT NULL,
	url TEXT,
	question_key_id TEXT NOT NULL,
	answer_id TEXT NOT NULL,
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	confidence REAL NOT NULL,
	widget_signature TEXT
);
CREATE INDEX IF NOT EXISTS idx_observations_site ON observations(site_key);
CREATE INDEX IF NOT EXISTS idx_observations_question_key ON observations(question_key_id);
CREATE INDEX IF NOT EXISTS idx_question_keys_type ON question_keys(type);
`

// Store is a SQLite-backed observation log
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Open creates or opens the database at path, creating parent directories
// and tables as needed
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	logger.Debug("observation store opened", zap.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes observations and their question keys in one transaction.
// Re-saving an observation id replaces the row.
func (s *Store) Save(ctx context.Context, observations ...form.Observation) error {
	if len(observations) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, obs := range observations {
		if obs.QuestionKey != nil {
			if err := saveQuestionKey(ctx, tx, obs.QuestionKey); err != nil {
				return err
			}
		}
		sig, err := json.Marshal(obs.WidgetSignature)
		if err != nil {
			return fmt.Errorf("failed to encode widget signature: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO observations
			(id, timestamp, site_key, url, question_key_id, answer_id, type, value, confidence, widget_signature)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			obs.ID, obs.Timestamp.UTC().Format(timeLayout), obs.SiteKey, obs.URL,
			obs.QuestionKeyID, obs.AnswerID, string(obs.Type), obs.Value, obs.Confidence, string(sig))
		if err != nil {
			return fmt.Errorf("failed to insert observation %s: %w", obs.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}
	s.logger.Debug("observations saved", zap.Int("count", len(observations)))
	return nil
}

func saveQuestionKey(ctx context.Context, tx *sql.Tx, qk *form.QuestionKey) error {
	phrases, err := json.Marshal(qk.Phrases)
	if err != nil {
		return fmt.Errorf("failed to encode phrases: %w", err)
	}
	hints, err := json.Marshal(qk.SectionHints)
	if err != nil {
		return fmt.Errorf("failed to encode section hints: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO question_keys
		(id, type, phrases, section_hints, choice_set_hash) VALUES (?, ?, ?, ?, ?)`,
		qk.ID, string(qk.Type), string(phrases), string(hints), qk.ChoiceSetHash)
	if err != nil {
		return fmt.Errorf("failed to insert question key %s: %w", qk.ID, err)
	}
	return nil
}

const selectObservations = `SELECT o.id, o.timestamp, o.site_key, o.url, o.question_key_id, o.answer_id,
	o.type, o.value, o.confidence, o.widget_signature,
	q.id, q.type, q.phrases, q.section_hints, q.choice_set_hash
	FROM observations o LEFT JOIN question_keys q ON q.id = o.question_key_id`

// ListBySite returns the observations recorded on site, oldest first. An
// empty site lists every observation; limit <= 0 means no limit.
func (s *Store) ListBySite(ctx context.Context, site string, limit int) ([]form.Observation, error) {
	query := selectObservations
	var args []any
	if site != "" {
		query += ` WHERE o.site_key = ?`
		args = append(args, site)
	}
	query += ` ORDER BY o.timestamp, o.id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	out := []form.Observation{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	return out, nil
}

// ListByType returns every observation classified as t, newest first
func (s *Store) ListByType(ctx context.Context, t form.Taxonomy) ([]form.Observation, error) {
	rows, err := s.db.QueryContext(ctx, selectObservations+` WHERE o.type = ? ORDER BY o.timestamp DESC, o.id`, string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	out := []form.Observation{}
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// QuestionKey loads one question key
func (s *Store) QuestionKey(ctx context.Context, id string) (*form.QuestionKey, error) {
	var (
		qk           form.QuestionKey
		typ, phrases string
		hints, hash  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, phrases, section_hints, choice_set_hash FROM question_keys WHERE id = ?`, id).
		Scan(&qk.ID, &typ, &phrases, &hints, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("question key %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question key: %w", err)
	}
	qk.Type = form.Taxonomy(typ)
	if err := decodeQuestionKey(&qk, phrases, hints, hash); err != nil {
		return nil, err
	}
	return &qk, nil
}

// Count returns the number of stored observations
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

func scanObservation(rows *sql.Rows) (form.Observation, error) {
	var (
		obs                 form.Observation
		ts, typ, sig        string
		url                 sql.NullString
		qkID, qkType, qkPhr sql.NullString
		qkHints, qkHash     sql.NullString
	)
	err := rows.Scan(&obs.ID, &ts, &obs.SiteKey, &url, &obs.QuestionKeyID, &obs.AnswerID,
		&typ, &obs.Value, &obs.Confidence, &sig,
		&qkID, &qkType, &qkPhr, &qkHints, &qkHash)
	if err != nil {
		return obs, fmt.Errorf("failed to scan observation: %w", err)
	}

	obs.URL = url.String
	obs.Type = form.Taxonomy(typ)
	if obs.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
		return obs, fmt.Errorf("bad timestamp on observation %s: %w", obs.ID, err)
	}
	if sig != "" {
		if err := json.Unmarshal([]byte(sig), &obs.WidgetSignature); err != nil {
			return obs, fmt.Errorf("bad widget signature on observation %s: %w", obs.ID, err)
		}
	}
	if qkID.Valid {
		qk := &form.QuestionKey{ID: qkID.String, Type: form.Taxonomy(qkType.String)}
		if err := decodeQuestionKey(qk, qkPhr.String, qkHints, qkHash); err != nil {
			return obs, err
		}
		obs.QuestionKey = qk
	}
	return obs, nil
}

func decodeQuestionKey(qk *form.QuestionKey, phrases string, hints, hash sql.NullString) error {
	qk.Phrases = []string{}
	if phrases != "" {
		if err := json.Unmarshal([]byte(phrases), &qk.Phrases); err != nil {
			return fmt.Errorf("bad phrases on question key %s: %w", qk.ID, err)
		}
	}
	if hints.Valid && hints.String != "" && hints.String != "null" {
		if err := json.Unmarshal([]byte(hints.String), &qk.SectionHints); err != nil {
			return fmt.Errorf("bad section hints on question key %s: %w", qk.ID, err)
		}
	}
	qk.ChoiceSetHash = hash.String
	return nil
}
