package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one submission outcome kept across runs. The per-run result file
// stays the authoritative sink; the store exists for the status and serve
// commands.
type Record struct {
	ID          int64
	Email       string
	Occupation  string
	Proxy       string
	Success     bool
	SubmittedAt time.Time
	CreatedAt   time.Time
}

type Store struct {
	db *sql.DB
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".waitroll", "history.db")
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL,
		occupation TEXT,
		proxy TEXT,
		success INTEGER NOT NULL,
		submitted_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sub_email ON submissions(email);
	CREATE INDEX IF NOT EXISTS idx_sub_success ON submissions(success);
	CREATE INDEX IF NOT EXISTS idx_sub_submitted_at ON submissions(submitted_at);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Add(r *Record) error {
	query := `
	INSERT INTO submissions (email, occupation, proxy, success, submitted_at)
	VALUES (?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query, r.Email, r.Occupation, r.Proxy, r.Success, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	r.ID, _ = result.LastInsertId()
	return nil
}

// Recent returns the most recent submissions, newest first.
func (s *Store) Recent(limit int) ([]*Record, error) {
	query := `
	SELECT id, email, occupation, proxy, success, submitted_at, created_at
	FROM submissions
	ORDER BY submitted_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(scanner interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var occupation, proxyStr sql.NullString
	var submittedAt, createdAt sql.NullTime

	err := scanner.Scan(&r.ID, &r.Email, &occupation, &proxyStr, &r.Success, &submittedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	r.Occupation = occupation.String
	r.Proxy = proxyStr.String
	r.SubmittedAt = submittedAt.Time
	r.CreatedAt = createdAt.Time
	return &r, nil
}

// Stats returns all-time submission counters.
func (s *Store) Stats() (total, succeeded, failed int, err error) {
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
	FROM submissions
	`

	if err = s.db.QueryRow(query).Scan(&total, &succeeded, &failed); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get stats: %w", err)
	}
	return total, succeeded, failed, nil
}

// MonthlyStats returns counters for the current calendar month.
func (s *Store) MonthlyStats() (succeeded, failed int, err error) {
	query := `
	SELECT
		COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0)
	FROM submissions
	WHERE submitted_at >= ?
	`

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	if err = s.db.QueryRow(query, monthStart).Scan(&succeeded, &failed); err != nil {
		return 0, 0, fmt.Errorf("failed to get monthly stats: %w", err)
	}
	return succeeded, failed, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
