package state

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/leapstar/pkg/core"
)

var errNotOpened = errors.New("database not opened")

// SQLiteStore implements core.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(opts ...Option) *SQLiteStore {
	s := &SQLiteStore{
		logger: slog.New(slog.DiscardHandler),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	// Enable foreign keys and WAL mode for better performance
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema brings the database schema up to date.
func (s *SQLiteStore) InitSchema() error {
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

func (s *SQLiteStore) now() time.Time {
	return s.clock.Now().UTC()
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", v, err)
	}
	return t, nil
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func joinSelection(names []string) string {
	return strings.Join(names, ",")
}

func splitSelection(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// --- Run operations ---

// CreateRun creates a new pipeline run against target. selection lists the
// dimensions the run was limited to; empty means all.
func (s *SQLiteStore) CreateRun(target string, selection []string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &core.Run{
		ID:        generateID(),
		Target:    target,
		Selection: append([]string(nil), selection...),
		Status:    core.RunStatusRunning,
		StartedAt: s.now(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("target", target))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, target, selection, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Target, joinSelection(run.Selection), string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

const runColumns = `id, target, selection, status, started_at, completed_at, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*core.Run, error) {
	run := &core.Run{}
	var selection, status, startedAt string
	var completedAt, errMsg sql.NullString
	if err := row.Scan(&run.ID, &run.Target, &selection, &status, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Selection = splitSelection(selection)
	run.Status = core.RunStatus(status)
	run.Error = errMsg.String

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as completed with the given status.
func (s *SQLiteStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	res, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), formatTime(s.now()), nullString(errMsg), id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetLatestRun retrieves the most recent run. It returns nil without an
// error when no run has been recorded.
func (s *SQLiteStore) GetLatestRun() (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- Entity run operations ---

// RecordEntityRun inserts er. Empty ID, status and start time are filled in.
func (s *SQLiteStore) RecordEntityRun(er *core.EntityRun) error {
	if s.db == nil {
		return errNotOpened
	}
	if er.ID == "" {
		er.ID = generateID()
	}
	if er.Status == "" {
		er.Status = core.EntityRunStatusRunning
	}
	if er.StartedAt.IsZero() {
		er.StartedAt = s.now()
	}

	var completedAt sql.NullString
	if er.CompletedAt != nil {
		completedAt = nullString(formatTime(*er.CompletedAt))
	}

	_, err := s.db.Exec(
		`INSERT INTO entity_runs (id, run_id, entity, kind, status, rows_affected, started_at, completed_at, error, execution_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		er.ID, er.RunID, er.Entity, string(er.Kind), string(er.Status), er.RowsAffected,
		formatTime(er.StartedAt), completedAt, nullString(er.Error), er.ExecutionMS,
	)
	if err != nil {
		return fmt.Errorf("failed to record entity run: %w", err)
	}
	return nil
}

// UpdateEntityRun sets the final status of an entity run and computes its
// execution time from the recorded start.
func (s *SQLiteStore) UpdateEntityRun(id string, status core.EntityRunStatus, rowsAffected int64, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	var startedAt string
	err := s.db.QueryRow(`SELECT started_at FROM entity_runs WHERE id = ?`, id).Scan(&startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("entity run not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get entity run: %w", err)
	}
	start, err := parseTime(startedAt)
	if err != nil {
		return err
	}

	now := s.now()
	_, err = s.db.Exec(
		`UPDATE entity_runs SET status = ?, rows_affected = ?, completed_at = ?, error = ?, execution_ms = ? WHERE id = ?`,
		string(status), rowsAffected, formatTime(now), nullString(errMsg), now.Sub(start).Milliseconds(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update entity run: %w", err)
	}
	return nil
}

const entityRunColumns = `id, run_id, entity, kind, status, rows_affected, started_at, completed_at, error, execution_ms`

func scanEntityRun(row rowScanner) (*core.EntityRun, error) {
	er := &core.EntityRun{}
	var kind, status, startedAt string
	var completedAt, errMsg sql.NullString
	if err := row.Scan(&er.ID, &er.RunID, &er.Entity, &kind, &status, &er.RowsAffected,
		&startedAt, &completedAt, &errMsg, &er.ExecutionMS); err != nil {
		return nil, err
	}
	er.Kind = core.EntityKind(kind)
	er.Status = core.EntityRunStatus(status)
	er.Error = errMsg.String

	var err error
	if er.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if er.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	return er, nil
}

// GetEntityRunsForRun returns the entity runs of a run in the order they started.
func (s *SQLiteStore) GetEntityRunsForRun(runID string) ([]*core.EntityRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.Query(`SELECT `+entityRunColumns+` FROM entity_runs WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.EntityRun
	for rows.Next() {
		er, err := scanEntityRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity run: %w", err)
		}
		out = append(out, er)
	}
	return out, rows.Err()
}

// GetLatestEntityRun returns the most recent run of entity, or nil when it
// has never run.
func (s *SQLiteStore) GetLatestEntityRun(entity string) (*core.EntityRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	er, err := scanEntityRun(s.db.QueryRow(
		`SELECT `+entityRunColumns+` FROM entity_runs WHERE entity = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, entity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest entity run: %w", err)
	}
	return er, nil
}
