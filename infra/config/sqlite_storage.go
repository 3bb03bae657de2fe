package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage persists store settings in SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// retryOperation retries operation while SQLite reports the database as busy
func retryOperation(ctx context.Context, operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		// 10ms, 20ms, 40ms
		backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", maxRetries+1, lastErr)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// OpenSQLite opens (and creates) a WAL mode SQLite database at dbPath.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_timeout=20000&_txlock=immediate&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA temp_store = memory;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return db, nil
}

// NewSQLiteStorage creates the settings storage on db.
func NewSQLiteStorage(db *sql.DB, path string) (*SQLiteStorage, error) {
	storage := &SQLiteStorage{
		db:   db,
		path: path,
	}
	if err := storage.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS store_settings (
		store_id INTEGER PRIMARY KEY,
		settings_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// SaveSettings inserts or replaces the settings of settings.StoreID.
func (s *SQLiteStorage) SaveSettings(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return retryOperation(ctx, func() error {
		query := `
		INSERT INTO store_settings (store_id, settings_data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(store_id)
		DO UPDATE SET
			settings_data = excluded.settings_data,
			updated_at = CURRENT_TIMESTAMP
		`
		if _, err := s.db.ExecContext(ctx, query, settings.StoreID, string(data)); err != nil {
			return fmt.Errorf("failed to save settings for store %d: %w", settings.StoreID, err)
		}
		return nil
	}, 3)
}

// LoadSettings returns the stored settings of storeID or ErrSettingsNotFound.
func (s *SQLiteStorage) LoadSettings(ctx context.Context, storeID int64) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings Settings
	err := retryOperation(ctx, func() error {
		var data string
		err := s.db.QueryRowContext(ctx, `SELECT settings_data FROM store_settings WHERE store_id = ?`, storeID).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("store %d: %w", storeID, ErrSettingsNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to load settings for store %d: %w", storeID, err)
		}
		if err := json.Unmarshal([]byte(data), &settings); err != nil {
			return fmt.Errorf("failed to unmarshal settings for store %d: %w", storeID, err)
		}
		settings.StoreID = storeID
		return nil
	}, 3)
	return settings, err
}

// DeleteSettings removes the settings of storeID.
func (s *SQLiteStorage) DeleteSettings(ctx context.Context, storeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return retryOperation(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM store_settings WHERE store_id = ?`, storeID)
		if err != nil {
			return fmt.Errorf("failed to delete settings: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("store %d: %w", storeID, ErrSettingsNotFound)
		}
		return nil
	}, 3)
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetStats reports the number of configured stores and the database file size.
func (s *SQLiteStorage) GetStats(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]any)

	var configured int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM store_settings").Scan(&configured); err != nil {
		return nil, fmt.Errorf("failed to count settings: %w", err)
	}
	stats["configured_stores"] = configured

	if s.path != "" {
		if fileInfo, err := os.Stat(s.path); err == nil {
			stats["db_size_bytes"] = fileInfo.Size()
		}
	}
	return stats, nil
}
