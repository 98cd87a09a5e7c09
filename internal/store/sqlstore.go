package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/cheese-coach/internal/domain"
)

// SQLStore keeps analyses in coach_games and coach_moves.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect, err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) SaveGameAnalysis(ctx context.Context, userID string, a *domain.GameAnalysis) (id int64, err error) {
	if a == nil {
		return 0, fmt.Errorf("nil game analysis")
	}
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertGame = `
		INSERT INTO coach_games (
			analysis_id,
			user_id,
			user_color,
			opening,
			eco,
			result,
			termination,
			move_count,
			brilliant,
			blunders,
			mistakes,
			accuracy,
			avg_centipawn_loss,
			budget,
			degraded,
			analyzed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (analysis_id) DO NOTHING
		RETURNING id`

	st := a.Statistics
	err = tx.QueryRowContext(ctx, rebind(s.dialect, insertGame),
		a.ID,
		userID,
		string(a.UserColor),
		a.Metadata.Opening,
		a.Metadata.ECO,
		a.Metadata.Result,
		a.Metadata.Termination,
		len(a.Moves),
		st.Brilliant,
		st.Blunder,
		st.Mistake,
		st.Accuracy,
		st.AvgCentipawnLoss,
		a.Budget.Key(),
		a.Degraded,
		a.AnalyzedAt.UnixMilli(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrDuplicateAnalysis
	}
	if err != nil {
		return 0, fmt.Errorf("insert game: %w", err)
	}

	const insertMove = `
		INSERT INTO coach_moves (
			game_id, ply, move_number, player_color, uci, san, fen_before, fen_after,
			eval_before, eval_after, best_move, centipawn_loss, tier, symbol, themes,
			is_forcing, degraded
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, rebind(s.dialect, insertMove))
	if err != nil {
		return 0, fmt.Errorf("prepare move insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range a.Moves {
		themes, err := json.Marshal(nonNil(m.Themes))
		if err != nil {
			return 0, fmt.Errorf("marshal themes: %w", err)
		}
		if _, err = stmt.ExecContext(ctx,
			id, m.Ply, m.MoveNumber, string(m.PlayerColor), m.UCI, m.SAN, m.FENBefore, m.FENAfter,
			m.EvalBefore, m.EvalAfter, m.BestMove, m.CentipawnLoss, string(m.Tier), m.Symbol, string(themes),
			m.IsForcing, m.Degraded,
		); err != nil {
			return 0, fmt.Errorf("insert move %d: %w", m.Ply, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// FetchRecentMoves returns the moves the user played, newest game first and
// latest ply first within a game.
func (s *SQLStore) FetchRecentMoves(ctx context.Context, userID string, limit int) ([]domain.ClassifiedMove, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `
		SELECT
			m.ply,
			m.move_number,
			m.player_color,
			m.uci,
			m.san,
			m.fen_before,
			m.fen_after,
			m.eval_before,
			m.eval_after,
			m.best_move,
			m.centipawn_loss,
			m.tier,
			m.symbol,
			m.themes,
			m.is_forcing,
			m.degraded
		FROM coach_moves m
		JOIN coach_games g ON g.id = m.game_id
		WHERE g.user_id = ? AND m.player_color = g.user_color
		ORDER BY g.analyzed_at DESC, g.id DESC, m.ply DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, rebind(s.dialect, query), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select moves: %w", err)
	}
	defer rows.Close()

	moves := make([]domain.ClassifiedMove, 0, limit)
	for rows.Next() {
		var (
			m          domain.ClassifiedMove
			color      string
			tier       string
			themesJSON string
		)
		if err := rows.Scan(
			&m.Ply,
			&m.MoveNumber,
			&color,
			&m.UCI,
			&m.SAN,
			&m.FENBefore,
			&m.FENAfter,
			&m.EvalBefore,
			&m.EvalAfter,
			&m.BestMove,
			&m.CentipawnLoss,
			&tier,
			&m.Symbol,
			&themesJSON,
			&m.IsForcing,
			&m.Degraded,
		); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.PlayerColor = domain.Color(color)
		m.Tier = domain.Tier(tier)
		if err := json.Unmarshal([]byte(themesJSON), &m.Themes); err != nil {
			return nil, fmt.Errorf("unmarshal themes: %w", err)
		}
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moves: %w", err)
	}
	return moves, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
