package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/miktsoan/core/internal/domain"
	"github.com/miktsoan/core/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	snapshotRetries    = 3
	snapshotRetryDelay = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		phone TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		avatar TEXT,
		role TEXT NOT NULL,
		language TEXT NOT NULL,
		location_json TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS requests (
		request_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		images_json TEXT,
		status TEXT NOT NULL,
		location_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_user ON requests(user_id);

	CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		blob TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUserByPhone retrieves a user profile by phone number.
func (s *SQLiteStore) GetUserByPhone(ctx context.Context, phone string) (*domain.UserProfile, error) {
	query := `
		SELECT phone, user_id, name, avatar, role, language, location_json, created_at
		FROM users WHERE phone = ?`

	row := s.db.QueryRowContext(ctx, query, phone)

	var user domain.UserProfile
	var avatar, locationJSON sql.NullString
	var createdAt int64

	err := row.Scan(
		&user.Phone, &user.ID, &user.Name, &avatar,
		&user.Role, &user.Language, &locationJSON, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Avatar = avatar.String
	user.CreatedAt = time.Unix(createdAt, 0)

	if locationJSON.Valid && locationJSON.String != "" {
		var loc domain.GeoLocation
		if err := json.Unmarshal([]byte(locationJSON.String), &loc); err != nil {
			return nil, fmt.Errorf("decode user location: %w", err)
		}
		user.Location = &loc
	}

	return &user, nil
}

// UpsertUser creates or updates a user profile keyed by phone number.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.UserProfile) error {
	query := `
	INSERT INTO users (phone, user_id, name, avatar, role, language, location_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(phone) DO UPDATE SET
		name = excluded.name,
		avatar = excluded.avatar,
		role = excluded.role,
		language = excluded.language,
		location_json = excluded.location_json`

	var locationJSON interface{}
	if user.Location != nil {
		data, err := json.Marshal(user.Location)
		if err != nil {
			return fmt.Errorf("encode user location: %w", err)
		}
		locationJSON = string(data)
	}

	var avatar interface{}
	if user.Avatar != "" {
		avatar = user.Avatar
	}

	_, err := s.db.ExecContext(ctx, query,
		user.Phone, user.ID, user.Name, avatar,
		user.Role, user.Language, locationJSON, user.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// CreateRequest stores a new service request document.
func (s *SQLiteStore) CreateRequest(ctx context.Context, req *domain.ServiceRequest) error {
	query := `
	INSERT INTO requests (request_id, user_id, category, description, images_json, status, location_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var imagesJSON interface{}
	if len(req.Images) > 0 {
		data, err := json.Marshal(req.Images)
		if err != nil {
			return fmt.Errorf("encode request images: %w", err)
		}
		imagesJSON = string(data)
	}

	var locationJSON interface{}
	if req.Location != nil {
		data, err := json.Marshal(req.Location)
		if err != nil {
			return fmt.Errorf("encode request location: %w", err)
		}
		locationJSON = string(data)
	}

	_, err := s.db.ExecContext(ctx, query,
		req.ID, req.UserID, req.Category, req.Description,
		imagesJSON, req.Status, locationJSON, req.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// GetRequest retrieves a service request by ID.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	query := `
		SELECT request_id, user_id, category, description, images_json, status, location_json, created_at
		FROM requests WHERE request_id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var req domain.ServiceRequest
	var imagesJSON, locationJSON sql.NullString
	var createdAt int64

	err := row.Scan(
		&req.ID, &req.UserID, &req.Category, &req.Description,
		&imagesJSON, &req.Status, &locationJSON, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan request row: %w", err)
	}

	req.CreatedAt = time.Unix(createdAt, 0)

	if imagesJSON.Valid && imagesJSON.String != "" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &req.Images); err != nil {
			return nil, fmt.Errorf("decode request images: %w", err)
		}
	}
	if locationJSON.Valid && locationJSON.String != "" {
		var loc domain.GeoLocation
		if err := json.Unmarshal([]byte(locationJSON.String), &loc); err != nil {
			return nil, fmt.Errorf("decode request location: %w", err)
		}
		req.Location = &loc
	}

	return &req, nil
}

// SaveSnapshot writes the named state snapshot blob. Snapshot writes race
// with the request path on every state mutation, so concurrency conflicts
// are retried with backoff instead of surfacing to the caller.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, name string, blob []byte) error {
	query := `
	INSERT INTO snapshots (name, blob, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		blob = excluded.blob,
		updated_at = excluded.updated_at`

	var err error
	for attempt := 0; attempt < snapshotRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(snapshotRetryDelay << (attempt - 1)):
			}
		}
		_, err = s.db.ExecContext(ctx, query, name, string(blob), time.Now().Unix())
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) {
			break
		}
	}
	return fmt.Errorf("save snapshot: %w", err)
}

// LoadSnapshot reads the named state snapshot blob.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, name string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT blob FROM snapshots WHERE name = ?`, name)

	var blob string
	err := row.Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot row: %w", err)
	}
	return []byte(blob), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
