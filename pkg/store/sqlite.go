package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcclellann/emiTracker/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

const currentProfileSetting = "current_profile_id"

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the tables if they don't already exist and adds columns
// introduced after the first release.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loan_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_state (
		profile_id TEXT NOT NULL,
		key TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (profile_id, key),
		FOREIGN KEY(profile_id) REFERENCES loan_profiles(id)
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	columns := []string{
		"custom_type TEXT NOT NULL DEFAULT ''",
		"position INTEGER NOT NULL DEFAULT 0",
	}

	for _, col := range columns {
		_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE loan_profiles ADD COLUMN %s", col))
		if err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("failed to add column %s: %w", col, err)
		}
	}

	return nil
}

// isDuplicateColumnError checks if the error indicates a duplicate column.
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	return strings.HasPrefix(err.Error(), "duplicate column name")
}

// CreateProfile inserts a new loan profile at the end of the list.
func (s *SQLiteStore) CreateProfile(p *models.LoanProfile) error {
	_, err := s.db.Exec(
		`INSERT INTO loan_profiles (id, name, type, custom_type, created_at, updated_at, position)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM loan_profiles))`,
		p.ID, p.Name, string(p.Type), p.CustomType, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a loan profile by its ID.
func (s *SQLiteStore) GetProfile(id string) (*models.LoanProfile, error) {
	row := s.db.QueryRow(`SELECT id, name, type, custom_type, created_at, updated_at FROM loan_profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan profile: %w", err)
	}
	return p, nil
}

// UpdateProfile updates the identity fields of an existing profile.
func (s *SQLiteStore) UpdateProfile(p *models.LoanProfile) error {
	result, err := s.db.Exec(
		`UPDATE loan_profiles SET name = ?, type = ?, custom_type = ?, updated_at = ? WHERE id = ?`,
		p.Name, string(p.Type), p.CustomType, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfile removes a profile and all of its persisted state within a transaction.
func (s *SQLiteStore) DeleteProfile(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM loan_state WHERE profile_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete loan state: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loan_profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete loan profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(`DELETE FROM settings WHERE key = ? AND value = ?`, currentProfileSetting, id)
	if err != nil {
		return fmt.Errorf("failed to clear current loan: %w", err)
	}

	return tx.Commit()
}

// GetAllProfiles retrieves every profile in creation order.
func (s *SQLiteStore) GetAllProfiles() ([]*models.LoanProfile, error) {
	rows, err := s.db.Query(`SELECT id, name, type, custom_type, created_at, updated_at FROM loan_profiles ORDER BY position ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loan profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.LoanProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return profiles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(r rowScanner) (*models.LoanProfile, error) {
	var p models.LoanProfile
	var loanType string
	var created, updated time.Time
	if err := r.Scan(&p.ID, &p.Name, &loanType, &p.CustomType, &created, &updated); err != nil {
		return nil, err
	}
	p.Type = models.LoanType(loanType)
	p.CreatedAt = created
	p.UpdatedAt = updated
	return &p, nil
}

// SaveState upserts one state blob of a profile.
func (s *SQLiteStore) SaveState(profileID, key string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO loan_state (profile_id, key, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(profile_id, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		profileID, key, data, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save %s for loan %s: %w", key, profileID, err)
	}
	return nil
}

// LoadState returns the stored blob, or nil when there is none.
func (s *SQLiteStore) LoadState(profileID, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM loan_state WHERE profile_id = ? AND key = ?`, profileID, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load %s for loan %s: %w", key, profileID, err)
	}
	return data, nil
}

// SetCurrentProfileID records the active profile. An empty id clears it.
func (s *SQLiteStore) SetCurrentProfileID(id string) error {
	var err error
	if id == "" {
		_, err = s.db.Exec(`DELETE FROM settings WHERE key = ?`, currentProfileSetting)
	} else {
		_, err = s.db.Exec(
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			currentProfileSetting, id,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to set current loan: %w", err)
	}
	return nil
}

// GetCurrentProfileID returns the active profile id, or "" if none is set.
func (s *SQLiteStore) GetCurrentProfileID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, currentProfileSetting).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get current loan: %w", err)
	}
	return id, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
