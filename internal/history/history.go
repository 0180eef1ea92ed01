// Package history persists detection events, the user-settings bag and the
// notification badge total in SQLite.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/raysh454/darkscan/internal/logging"
	"github.com/raysh454/darkscan/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

var ErrNotFound = errors.New("history entry not found")

const badgeCounter = "badge"

type Config struct {
	// Path of the SQLite file; ":memory:" keeps everything in memory.
	Path string `mapstructure:"path"`
	// Capacity is the number of detection events retained.
	Capacity int `mapstructure:"capacity"`
}

func DefaultConfig() Config {
	return Config{Path: "darkscan.db", Capacity: 100}
}

// Entry is one recorded detection event.
type Entry struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId"`
	URL       string          `json:"url"`
	Trigger   string          `json:"trigger"`
	Count     int             `json:"count"`
	Patterns  []model.Pattern `json:"patterns"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Store struct {
	db       *sql.DB
	capacity int
	logger   logging.Logger
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config, logger logging.Logger) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s, err := New(db, cfg.Capacity, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New applies the schema to db and returns a store over it.
func New(db *sql.DB, capacity int, logger logging.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if capacity <= 0 {
		capacity = DefaultConfig().Capacity
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{
		db:       db,
		capacity: capacity,
		logger:   logger.With(logging.Field{Key: "component", Value: "history"}),
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Append records e and trims the table to the newest Capacity entries.
func (s *Store) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Patterns == nil {
		e.Patterns = []model.Pattern{}
	}
	e.Count = len(e.Patterns)
	encoded, err := json.Marshal(e.Patterns)
	if err != nil {
		return Entry{}, fmt.Errorf("encode patterns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO detections (session_id, url, scan_trigger, pattern_count, patterns, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.URL, e.Trigger, e.Count, string(encoded), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert detection: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("detection id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM detections WHERE id NOT IN (
             SELECT id FROM detections ORDER BY created_at DESC, id DESC LIMIT ?)`,
		s.capacity,
	); err != nil {
		return Entry{}, fmt.Errorf("trim detections: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, url, scan_trigger, pattern_count, patterns, created_at
         FROM detections
         ORDER BY created_at DESC, id DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, url, scan_trigger, pattern_count, patterns, created_at
         FROM detections WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Clear removes every detection event.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM detections`); err != nil {
		return fmt.Errorf("clear detections: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e        Entry
		patterns string
		created  int64
	)
	if err := sc.Scan(&e.ID, &e.SessionID, &e.URL, &e.Trigger, &e.Count, &patterns, &created); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(patterns), &e.Patterns); err != nil {
		return Entry{}, fmt.Errorf("decode patterns of detection %d: %w", e.ID, err)
	}
	e.CreatedAt = time.UnixMilli(created)
	return e, nil
}

// Settings returns the stored settings, with defaults for missing keys.
func (s *Store) Settings(ctx context.Context) (Settings, error) {
	out := DefaultSettings()
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return out, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return out, err
		}
		if err := out.Set(key, value); err != nil {
			s.logger.Warn("ignoring stored setting",
				logging.Field{Key: "key", Value: key},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	return out, rows.Err()
}

// SaveSettings stores every field of st.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()
	for _, key := range SettingKeys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
             ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, st.values()[key],
		); err != nil {
			return fmt.Errorf("save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// SetSetting updates one setting and returns the resulting bag.
func (s *Store) SetSetting(ctx context.Context, key, value string) (Settings, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return st, err
	}
	if err := st.Set(key, value); err != nil {
		return st, err
	}
	if err := s.SaveSettings(ctx, st); err != nil {
		return st, err
	}
	return st, nil
}

// AddBadge adds n to the notification badge total and returns the new total.
func (s *Store) AddBadge(ctx context.Context, n int) (int, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO counters (name, value) VALUES (?, ?)
         ON CONFLICT(name) DO UPDATE SET value = value + excluded.value`,
		badgeCounter, n,
	); err != nil {
		return 0, fmt.Errorf("update badge: %w", err)
	}
	return s.Badge(ctx)
}

// Badge returns the notification badge total.
func (s *Store) Badge(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, badgeCounter).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read badge: %w", err)
	}
	return n, nil
}

// ResetBadge clears the notification badge total.
func (s *Store) ResetBadge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM counters WHERE name = ?`, badgeCounter); err != nil {
		return fmt.Errorf("reset badge: %w", err)
	}
	return nil
}
