/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package scores stores users and their cumulative game scores in SQLite.
package scores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	TotalScore int    `json:"total_score"`
}

// Store persists users in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureUser returns the user named username, creating it if needed.
func (s *Store) EnsureUser(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("username is required")
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username) VALUES (?) ON CONFLICT (username) DO NOTHING`,
		username,
	); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}

	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, total_score FROM users WHERE username = ?`,
		username,
	).Scan(&u.ID, &u.Username, &u.TotalScore)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

// UsernameByID resolves a token subject to its display name.
func (s *Store) UsernameByID(ctx context.Context, id int64) (string, error) {
	var name string

	err := s.db.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user %d: %w", id, err)
	}

	return name, nil
}

// AddScore increments username's total by points.
func (s *Store) AddScore(ctx context.Context, username string, points int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET total_score = total_score + ? WHERE username = ?`,
		points, username,
	)
	if err != nil {
		return fmt.Errorf("add score for %q: %w", username, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add score for %q: %w", username, err)
	}
	if n == 0 {
		return fmt.Errorf("add score for %q: %w", username, ErrUserNotFound)
	}

	return nil
}

// Leaderboard returns up to limit users by descending total score.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, total_score FROM users ORDER BY total_score DESC, username ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, limit)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.TotalScore); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}
