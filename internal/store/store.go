// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/natural"

	"github.com/verte-zerg/typekaro/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrPersistence wraps every failed attempt read or write. Callers may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotAuthenticated is returned when saving without a user.
	ErrNotAuthenticated = fmt.Errorf("%w: you must be logged in to save results", ErrPersistence)
	// ErrTestNotFound is returned for unknown test ids.
	ErrTestNotFound = errors.New("test not found")
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for tests and attempts.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tests (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			duration_sec INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			test_id TEXT NOT NULL,
			wpm INTEGER NOT NULL,
			cpm INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			mistyped_words INTEGER NOT NULL,
			duration_sec INTEGER NOT NULL,
			completed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_test ON attempts(user_id, test_id);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_completed_at ON attempts(completed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertTest inserts a test or replaces the one with the same id.
func (s *Store) UpsertTest(ctx context.Context, t model.Test) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (id, title, content, category, difficulty, duration_sec, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			category = excluded.category,
			difficulty = excluded.difficulty,
			duration_sec = excluded.duration_sec`,
		t.ID,
		t.Title,
		t.Content,
		t.Category,
		string(t.Difficulty),
		t.DurationSeconds,
		createdAt.UTC().Format(timeLayout),
	)
	return err
}

// CountTests returns the number of tests in the catalog.
func (s *Store) CountTests(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tests`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetTest returns the test with id or ErrTestNotFound.
func (s *Store) GetTest(ctx context.Context, id string) (model.Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, category, difficulty, duration_sec, created_at
		 FROM tests WHERE id = ?`, id)
	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Test{}, fmt.Errorf("%w: %s", ErrTestNotFound, id)
	}
	if err != nil {
		return model.Test{}, err
	}
	return t, nil
}

// ListTests returns the catalog ordered by creation time, then by id in
// natural order so "test-2" comes before "test-10".
func (s *Store) ListTests(ctx context.Context) ([]model.Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, category, difficulty, duration_sec, created_at
		 FROM tests ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(tests, func(i, j int) bool {
		if !tests[i].CreatedAt.Equal(tests[j].CreatedAt) {
			return tests[i].CreatedAt.Before(tests[j].CreatedAt)
		}
		return natural.Less(tests[i].ID, tests[j].ID)
	})
	return tests, nil
}

// SaveAttempt stores a result for the user in creds and returns the stored
// record with its generated id and completion time. The result itself is
// never modified.
func (s *Store) SaveAttempt(ctx context.Context, creds model.Credentials, testID string, res model.ResultMetrics) (model.Attempt, error) {
	if !creds.Authenticated() {
		return model.Attempt{}, ErrNotAuthenticated
	}
	attempt := model.Attempt{
		ID:                  "attempt-" + uuid.NewString(),
		UserID:              creds.UserID,
		TestID:              testID,
		WPM:                 res.WPM,
		CPM:                 res.CPM,
		AccuracyPercent:     res.AccuracyPercent,
		MistypedWordsApprox: res.MistypedWordsApprox,
		DurationSeconds:     res.DurationSeconds,
		CompletedAt:         s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, test_id, wpm, cpm, accuracy, mistyped_words, duration_sec, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.UserID,
		attempt.TestID,
		attempt.WPM,
		attempt.CPM,
		attempt.AccuracyPercent,
		attempt.MistypedWordsApprox,
		attempt.DurationSeconds,
		attempt.CompletedAt.Format(timeLayout),
	)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("%w: failed to save attempt: %v", ErrPersistence, err)
	}
	return attempt, nil
}

// BestAttempt returns the user's attempt with the highest WPM for a test, or
// nil when there is none. Ties go to the earliest attempt.
func (s *Store) BestAttempt(ctx context.Context, userID, testID string) (*model.Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, test_id, wpm, cpm, accuracy, mistyped_words, duration_sec, completed_at
		 FROM attempts
		 WHERE user_id = ? AND test_id = ?
		 ORDER BY wpm DESC, completed_at ASC
		 LIMIT 1`, userID, testID)
	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query best attempt: %v", ErrPersistence, err)
	}
	return &attempt, nil
}

// BestAttempts returns the best attempt per test for a user, keyed by test id.
func (s *Store) BestAttempts(ctx context.Context, userID string) (map[string]model.Attempt, error) {
	attempts, err := s.ListAttempts(ctx, model.StatsConfig{UserID: userID})
	if err != nil {
		return nil, err
	}
	best := map[string]model.Attempt{}
	for _, a := range attempts {
		if cur, ok := best[a.TestID]; !ok || a.WPM > cur.WPM {
			best[a.TestID] = a
		}
	}
	return best, nil
}

// ListAttempts returns attempts filtered by stats config, oldest first.
func (s *Store) ListAttempts(ctx context.Context, cfg model.StatsConfig) ([]model.Attempt, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, cfg.UserID)
	}
	if cfg.TestID != "" {
		clauses = append(clauses, "test_id = ?")
		args = append(args, cfg.TestID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT id, user_id, test_id, wpm, cpm, accuracy, mistyped_words, duration_sec, completed_at
		FROM attempts
		WHERE %s
		ORDER BY completed_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list attempts: %v", ErrPersistence, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read attempt: %v", ErrPersistence, err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list attempts: %v", ErrPersistence, err)
	}
	return attempts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTest(row scanner) (model.Test, error) {
	var t model.Test
	var difficulty, createdAt string
	if err := row.Scan(&t.ID, &t.Title, &t.Content, &t.Category, &difficulty, &t.DurationSeconds, &createdAt); err != nil {
		return model.Test{}, err
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return model.Test{}, err
	}
	t.Difficulty = model.Difficulty(difficulty)
	t.CreatedAt = parsed
	return t, nil
}

func scanAttempt(row scanner) (model.Attempt, error) {
	var a model.Attempt
	var completedAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.TestID, &a.WPM, &a.CPM, &a.AccuracyPercent, &a.MistypedWordsApprox, &a.DurationSeconds, &completedAt); err != nil {
		return model.Attempt{}, err
	}
	parsed, err := time.Parse(timeLayout, completedAt)
	if err != nil {
		return model.Attempt{}, err
	}
	a.CompletedAt = parsed
	return a, nil
}
