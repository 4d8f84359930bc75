package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding feature rows, error logs, and
// conversation turns.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "windbot.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Feature rows ---

// featureSelect lists exactly the numeric feature columns in schema order.
// Identifier, label, and remarks columns are deliberately absent: nothing
// outside this package ever sees them.
var featureSelect = strings.Join(FeatureColumns, ", ")

// FeatureRow returns the feature row for the given turbine. When logDate is
// non-empty it is a point lookup on (turbine_id, log_date); otherwise the
// most recent row for the turbine is returned. Missing rows yield ErrNotFound.
func (s *Store) FeatureRow(ctx context.Context, turbineID, logDate string) (FeatureRow, error) {
	var (
		query string
		args  []any
	)
	if logDate != "" {
		query = fmt.Sprintf(
			"SELECT log_date, %s FROM wtg_features WHERE turbine_id = ? AND log_date = ? LIMIT 1",
			featureSelect)
		args = []any{turbineID, logDate}
	} else {
		query = fmt.Sprintf(
			"SELECT log_date, %s FROM wtg_features WHERE turbine_id = ? ORDER BY log_date DESC LIMIT 1",
			featureSelect)
		args = []any{turbineID}
	}

	row := FeatureRow{TurbineID: turbineID, Values: make([]float64, len(FeatureColumns))}
	dest := make([]any, 0, len(FeatureColumns)+1)
	dest = append(dest, &row.LogDate)
	for i := range row.Values {
		dest = append(dest, &row.Values[i])
	}

	err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if err == sql.ErrNoRows {
		return FeatureRow{}, ErrNotFound
	}
	if err != nil {
		return FeatureRow{}, fmt.Errorf("querying feature row: %w", err)
	}
	return row, nil
}

// InsertFeatureRow writes one turbine-day of features, replacing any existing
// row for the same (turbine_id, log_date).
func (s *Store) InsertFeatureRow(row FeatureRow) error {
	if len(row.Values) != len(FeatureColumns) {
		return fmt.Errorf("feature row has %d values, want %d", len(row.Values), len(FeatureColumns))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(FeatureColumns)), ", ")
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO wtg_features (turbine_id, log_date, %s) VALUES (?, ?, %s)",
		featureSelect, placeholders)

	args := make([]any, 0, len(FeatureColumns)+2)
	args = append(args, row.TurbineID, row.LogDate)
	for _, v := range row.Values {
		args = append(args, v)
	}

	_, err := s.db.Exec(query, args...)
	return err
}

// --- Error logs ---

// ErrorLogs returns up to limit error events for the turbine on the given
// date, ordered by event time ascending. An empty result is not an error.
func (s *Store) ErrorLogs(ctx context.Context, turbineID, logDate string, limit int) ([]ErrorLog, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, turbine_id, error_time, alarm_code, short_description, duration
		FROM error_logs
		WHERE turbine_id = ? AND date(error_time) = ?
		ORDER BY error_time ASC
		LIMIT ?`, turbineID, logDate, limit)
	if err != nil {
		return nil, fmt.Errorf("querying error logs: %w", err)
	}
	defer rows.Close()

	var logs []ErrorLog
	for rows.Next() {
		var (
			l  ErrorLog
			ts string
		)
		if err := rows.Scan(&l.ID, &l.TurbineID, &ts, &l.AlarmCode, &l.ShortDescription, &l.Duration); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing error_time: %w", err)
		}
		l.ErrorTime = t
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// InsertErrorLog appends one operational error event.
func (s *Store) InsertErrorLog(l ErrorLog) error {
	_, err := s.db.Exec(`
		INSERT INTO error_logs (turbine_id, error_time, alarm_code, short_description, duration)
		VALUES (?, ?, ?, ?, ?)`,
		l.TurbineID, l.ErrorTime.UTC().Format(time.RFC3339), l.AlarmCode, l.ShortDescription, l.Duration)
	return err
}

// --- Conversation turns ---

// SaveTurn appends one conversation turn. Callers treat failures as
// best-effort: the write is never retried and never fails a request.
func (s *Store) SaveTurn(t Turn) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_turns (id, user_id, question, answer, intent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Question, t.Answer, t.Intent, t.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// RecentTurns returns the most recent turns for a user, newest first.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, question, answer, intent, created_at
		FROM chat_turns
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t  Turn
			ts string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Question, &t.Answer, &t.Intent, &ts); err != nil {
			return nil, err
		}
		created, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		t.CreatedAt = created
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
