package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SomeRandomTV/AXIOM/pkg/axiom/config"
	axerrors "github.com/SomeRandomTV/AXIOM/pkg/axiom/errors"
)

// DefaultPoolSize is the default connection pool capacity.
const DefaultPoolSize = 5

// StoreConfig configures the SQLite state store.
type StoreConfig struct {
	// Path is the database file location. Parent directories are created
	// if missing.
	Path string

	// PoolSize caps concurrent connections. When all connections are in
	// use, operations fail fast with DatabaseConnectionError rather than
	// queueing. Defaults to DefaultPoolSize.
	PoolSize int

	// Logger for store operations. May be nil.
	Logger *slog.Logger
}

// StoreConfigFrom builds a StoreConfig from a configuration section.
func StoreConfigFrom(cfg config.Config) StoreConfig {
	return StoreConfig{
		Path:     cfg.String("db_path", "data/axiom.db"),
		PoolSize: cfg.Int("pool_size", DefaultPoolSize),
	}
}

// Store persists conversation turns, system events, and alerts in SQLite.
// All methods are safe for concurrent use. Methods on a closed store return
// ErrStoreClosed.
type Store struct {
	db     *sql.DB
	sem    chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewStore opens (creating if necessary) the database at cfg.Path, enables
// WAL mode, and applies any pending schema migrations. A migration failure
// is fatal and the store is not usable.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = "data/axiom.db"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &DatabaseConnectionError{Message: "create database directory", Err: err}
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, &DatabaseConnectionError{Message: "open database", Err: err}
	}
	db.SetMaxOpenConns(cfg.PoolSize)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, &DatabaseConnectionError{Message: "enable WAL mode", Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	sem := make(chan struct{}, cfg.PoolSize)
	for i := 0; i < cfg.PoolSize; i++ {
		sem <- struct{}{}
	}

	s := &Store{
		db:     db,
		sem:    sem,
		logger: cfg.Logger,
	}
	if s.logger != nil {
		s.logger.Info("state store opened",
			slog.String("path", cfg.Path),
			slog.Int("pool_size", cfg.PoolSize))
	}
	return s, nil
}

// acquire takes a pool slot without blocking. When the pool is exhausted the
// caller gets a DatabaseConnectionError immediately.
func (s *Store) acquire() (release func(), err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStoreClosed
	}
	s.mu.Unlock()

	select {
	case <-s.sem:
		return func() { s.sem <- struct{}{} }, nil
	default:
		return nil, &DatabaseConnectionError{Message: "connection pool exhausted"}
	}
}

// LogConversationTurn appends one conversation turn. Transient write
// failures (lock contention) are retried with backoff before giving up.
func (s *Store) LogConversationTurn(ctx context.Context, turn ConversationTurn) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	intentJSON, err := marshalNullable(turn.DetectedIntent)
	if err != nil {
		return &QueryExecutionError{Operation: "encode detected intent", Err: err}
	}
	metaJSON, err := marshalNullable(turn.Metadata)
	if err != nil {
		return &QueryExecutionError{Operation: "encode turn metadata", Err: err}
	}

	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	result := axerrors.WithRetryContext(ctx, axerrors.DefaultRetry, func(ctx context.Context) (struct{}, error) {
		_, err := s.db.ExecContext(ctx, insertConversation,
			turn.SessionID, turn.UserInput, turn.AssistantResponse,
			intentJSON, turn.ProcessingTime,
			ts.Format(time.RFC3339Nano), metaJSON)
		return struct{}{}, err
	})
	if result.Err != nil {
		return &QueryExecutionError{Operation: "insert conversation turn", Err: result.Err}
	}
	return nil
}

// ConversationHistory returns up to limit turns for a session, newest first.
func (s *Store) ConversationHistory(ctx context.Context, sessionID string, limit int) ([]ConversationTurn, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, selectConversationHistory, sessionID, limit)
	if err != nil {
		return nil, &QueryExecutionError{Operation: "query conversation history", Err: err}
	}
	defer rows.Close()

	var turns []ConversationTurn
	for rows.Next() {
		var (
			turn       ConversationTurn
			intentJSON sql.NullString
			metaJSON   sql.NullString
			tsRaw      string
		)
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.UserInput,
			&turn.AssistantResponse, &intentJSON, &turn.ProcessingTime,
			&tsRaw, &metaJSON); err != nil {
			return nil, &QueryExecutionError{Operation: "scan conversation row", Err: err}
		}
		turn.Timestamp = parseTimestamp(tsRaw)
		if turn.DetectedIntent, err = unmarshalNullable(intentJSON); err != nil {
			return nil, &QueryExecutionError{Operation: "decode detected intent", Err: err}
		}
		if turn.Metadata, err = unmarshalNullable(metaJSON); err != nil {
			return nil, &QueryExecutionError{Operation: "decode turn metadata", Err: err}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryExecutionError{Operation: "iterate conversation rows", Err: err}
	}
	return turns, nil
}

// LogSystemEvent appends one system event row.
func (s *Store) LogSystemEvent(ctx context.Context, evt SystemEvent) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	payloadJSON, err := marshalNullable(evt.Payload)
	if err != nil {
		return &QueryExecutionError{Operation: "encode event payload", Err: err}
	}

	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	result := axerrors.WithRetryContext(ctx, axerrors.DefaultRetry, func(ctx context.Context) (struct{}, error) {
		_, err := s.db.ExecContext(ctx, insertSystemEvent,
			evt.EventType, payloadJSON,
			ts.Format(time.RFC3339Nano), evt.Source, evt.CorrelationID)
		return struct{}{}, err
	})
	if result.Err != nil {
		return &QueryExecutionError{Operation: "insert system event", Err: result.Err}
	}
	return nil
}

// SystemEvents returns up to limit events of the given type, newest first.
func (s *Store) SystemEvents(ctx context.Context, eventType string, limit int) ([]SystemEvent, error) {
	release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, selectSystemEvents, eventType, limit)
	if err != nil {
		return nil, &QueryExecutionError{Operation: "query system events", Err: err}
	}
	defer rows.Close()

	var events []SystemEvent
	for rows.Next() {
		var (
			evt         SystemEvent
			payloadJSON sql.NullString
			corrID      sql.NullString
			tsRaw       string
		)
		if err := rows.Scan(&evt.ID, &evt.EventType, &payloadJSON,
			&tsRaw, &evt.Source, &corrID); err != nil {
			return nil, &QueryExecutionError{Operation: "scan event row", Err: err}
		}
		evt.Timestamp = parseTimestamp(tsRaw)
		evt.CorrelationID = corrID.String
		if evt.Payload, err = unmarshalNullable(payloadJSON); err != nil {
			return nil, &QueryExecutionError{Operation: "decode event payload", Err: err}
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryExecutionError{Operation: "iterate event rows", Err: err}
	}
	return events, nil
}

// LogAlert appends one alert row.
func (s *Store) LogAlert(ctx context.Context, alert Alert) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if !alert.Severity.Valid() {
		return &QueryExecutionError{
			Operation: "insert alert",
			Err:       fmt.Errorf("invalid severity %q", alert.Severity),
		}
	}

	metaJSON, err := marshalNullable(alert.Metadata)
	if err != nil {
		return &QueryExecutionError{Operation: "encode alert metadata", Err: err}
	}

	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	var resolvedAt any
	if alert.ResolvedAt != nil {
		resolvedAt = alert.ResolvedAt.Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, insertAlert,
		alert.AlertType, string(alert.Severity), alert.Message,
		ts.Format(time.RFC3339Nano), resolvedAt, metaJSON)
	if err != nil {
		return &QueryExecutionError{Operation: "insert alert", Err: err}
	}
	return nil
}

// CleanupOldData deletes conversations and events older than the cutoff and
// returns the number of rows removed.
func (s *Store) CleanupOldData(ctx context.Context, cutoff time.Time) (int64, error) {
	release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()

	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)

	var total int64
	for _, q := range []string{deleteOldConversations, deleteOldEvents} {
		res, err := s.db.ExecContext(ctx, q, cutoffStr)
		if err != nil {
			return total, &QueryExecutionError{Operation: "delete old rows", Err: err}
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if s.logger != nil {
		s.logger.Info("cleaned up old data",
			slog.Time("cutoff", cutoff),
			slog.Int64("rows_deleted", total))
	}
	return total, nil
}

// Backup writes a consistent copy of the database to destPath.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	if dir := filepath.Dir(destPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &QueryExecutionError{Operation: "create backup directory", Err: err}
		}
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return &QueryExecutionError{Operation: "backup database", Err: err}
	}
	if s.logger != nil {
		s.logger.Info("database backed up", slog.String("dest", destPath))
	}
	return nil
}

// Close releases the database. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// marshalNullable encodes m as JSON, mapping nil to SQL NULL.
func marshalNullable(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// unmarshalNullable decodes a JSON column, mapping NULL to nil.
func unmarshalNullable(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func parseTimestamp(raw string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", raw)
	return t
}
