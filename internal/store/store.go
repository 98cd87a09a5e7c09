// Package store persists finished game analyses and serves a user's move
// history for the cross-game weakness report.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var ErrDuplicateAnalysis = errors.New("game analysis already stored")

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// OpenPostgres opens and pings a lib/pq connection pool.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a modernc sqlite database with WAL and a busy timeout.
// An in-memory database is limited to one connection so every query sees the same data.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	return db, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(d Dialect, query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func schema(d Dialect) []string {
	idCol, boolCol, floatCol := "INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER", "REAL"
	if d == Postgres {
		idCol, boolCol, floatCol = "BIGSERIAL PRIMARY KEY", "BOOLEAN", "DOUBLE PRECISION"
	}
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS coach_games (
			id %s,
			analysis_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			user_color TEXT NOT NULL,
			opening TEXT NOT NULL DEFAULT '',
			eco TEXT NOT NULL DEFAULT '',
			result TEXT NOT NULL DEFAULT '',
			termination TEXT NOT NULL DEFAULT '',
			move_count INTEGER NOT NULL,
			brilliant INTEGER NOT NULL,
			blunders INTEGER NOT NULL,
			mistakes INTEGER NOT NULL,
			accuracy %s NOT NULL,
			avg_centipawn_loss %s NOT NULL,
			budget TEXT NOT NULL,
			degraded %s NOT NULL,
			analyzed_at BIGINT NOT NULL
		)`, idCol, floatCol, floatCol, boolCol),
		`CREATE INDEX IF NOT EXISTS coach_games_user_idx ON coach_games (user_id, analyzed_at)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS coach_moves (
			game_id BIGINT NOT NULL REFERENCES coach_games(id) ON DELETE CASCADE,
			ply INTEGER NOT NULL,
			move_number INTEGER NOT NULL,
			player_color TEXT NOT NULL,
			uci TEXT NOT NULL,
			san TEXT NOT NULL,
			fen_before TEXT NOT NULL,
			fen_after TEXT NOT NULL,
			eval_before %s NOT NULL,
			eval_after %s NOT NULL,
			best_move TEXT NOT NULL,
			centipawn_loss INTEGER NOT NULL,
			tier TEXT NOT NULL,
			symbol TEXT NOT NULL,
			themes TEXT NOT NULL,
			is_forcing %s NOT NULL,
			degraded %s NOT NULL,
			PRIMARY KEY (game_id, ply)
		)`, floatCol, floatCol, boolCol, boolCol),
	}
}
