package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresProgressStore keeps user progress in a PostgreSQL table.
type PostgresProgressStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ProgressStore = (*PostgresProgressStore)(nil)

// NewPostgresProgressStore connects, pings and creates the schema if needed.
func NewPostgresProgressStore(ctx context.Context, connectionString string, logger *slog.Logger) (*PostgresProgressStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresProgressStore{db: db, logger: logger}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (p *PostgresProgressStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS progress (
		username TEXT PRIMARY KEY,
		level INTEGER NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresProgressStore) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (p *PostgresProgressStore) Close() error {
	return p.db.Close()
}

func (p *PostgresProgressStore) GetProgress(ctx context.Context, username string) (int, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return 0, errors.New("username is required")
	}

	var level int
	err := p.db.QueryRowContext(ctx, `SELECT level FROM progress WHERE username = $1`, username).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultLevel, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load progress: %w", err)
	}
	return level, nil
}

func (p *PostgresProgressStore) SetProgress(ctx context.Context, username string, level int) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return errors.New("username is required")
	}
	if level < 1 {
		return fmt.Errorf("level must be at least 1, got %d", level)
	}

	query := `
	INSERT INTO progress (username, level)
	VALUES ($1, $2)
	ON CONFLICT (username)
	DO UPDATE SET level = $2, updated_at = NOW()
	`
	if _, err := p.db.ExecContext(ctx, query, username, level); err != nil {
		p.logger.Error("Failed to save progress", "username", username, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
