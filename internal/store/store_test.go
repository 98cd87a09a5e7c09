package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/park285/cheese-coach/internal/analysis"
	"github.com/park285/cheese-coach/internal/domain"
)

var (
	_ analysis.Store = (*SQLStore)(nil)
	_ analysis.Store = (*Memory)(nil)
)

func newSQLite(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	s := NewSQLStore(db, SQLite)
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// idempotent
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	return s
}

// sampleGame has four plies per move pair; the user plays white.
func sampleGame(id string, at time.Time, plies int, userTier domain.Tier) *domain.GameAnalysis {
	a := &domain.GameAnalysis{
		ID:         id,
		UserColor:  domain.White,
		Budget:     domain.Budget{Depth: 12, Lines: 1},
		AnalyzedAt: at,
		Metadata:   domain.GameMetadata{Opening: "Italian Game", ECO: "C50", Result: "1-0"},
		Statistics: domain.GameStatistics{Blunder: 1, Accuracy: 75.5},
	}
	for ply := 1; ply <= plies; ply++ {
		m := domain.ClassifiedMove{
			Ply:           ply,
			MoveNumber:    (ply + 1) / 2,
			PlayerColor:   domain.White,
			UCI:           fmt.Sprintf("m%d", ply),
			SAN:           fmt.Sprintf("S%d", ply),
			EvalBefore:    0.25,
			EvalAfter:     -1.5,
			CentipawnLoss: 175,
			Tier:          userTier,
			Symbol:        "??",
			Themes:        []string{analysis.ThemeCapture, analysis.ThemeCheck},
			IsForcing:     true,
		}
		if ply%2 == 0 {
			m.PlayerColor = domain.Black
			m.Tier = domain.TierBest
			m.Themes = nil
			m.IsForcing = false
		}
		a.Moves = append(a.Moves, m)
	}
	return a
}

func TestSQLStore_SaveAndFetch(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id1, err := s.SaveGameAnalysis(ctx, "u1", sampleGame("a1", base, 4, domain.TierMistake))
	if err != nil {
		t.Fatalf("save a1: %v", err)
	}
	id2, err := s.SaveGameAnalysis(ctx, "u1", sampleGame("a2", base.Add(time.Hour), 6, domain.TierBlunder))
	if err != nil {
		t.Fatalf("save a2: %v", err)
	}
	if id1 == 0 || id2 == id1 {
		t.Fatalf("ids = %d, %d", id1, id2)
	}
	if _, err := s.SaveGameAnalysis(ctx, "u2", sampleGame("other", base, 2, domain.TierBest)); err != nil {
		t.Fatalf("save other: %v", err)
	}

	moves, err := s.FetchRecentMoves(ctx, "u1", 200)
	if err != nil {
		t.Fatalf("FetchRecentMoves: %v", err)
	}
	// white moves only: 3 from a2 then 2 from a1
	if len(moves) != 5 {
		t.Fatalf("len = %d", len(moves))
	}
	first := moves[0]
	if first.Ply != 5 || first.Tier != domain.TierBlunder || first.PlayerColor != domain.White {
		t.Fatalf("newest move = %+v", first)
	}
	if !first.IsForcing || len(first.Themes) != 2 || first.Themes[0] != analysis.ThemeCapture {
		t.Fatalf("themes/forcing = %+v", first)
	}
	if first.EvalBefore != 0.25 || first.EvalAfter != -1.5 || first.CentipawnLoss != 175 || first.SAN != "S5" {
		t.Fatalf("scalar fields = %+v", first)
	}
	if moves[3].Tier != domain.TierMistake {
		t.Fatalf("older game move = %+v", moves[3])
	}

	limited, err := s.FetchRecentMoves(ctx, "u1", 2)
	if err != nil || len(limited) != 2 || limited[1].Ply != 3 {
		t.Fatalf("limited = %+v, %v", limited, err)
	}

	none, err := s.FetchRecentMoves(ctx, "nobody", 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown user = %+v, %v", none, err)
	}
}

func TestSQLStore_Duplicate(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	g := sampleGame("dup", time.Now(), 2, domain.TierGood)
	if _, err := s.SaveGameAnalysis(ctx, "u1", g); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.SaveGameAnalysis(ctx, "u1", g); !errors.Is(err, ErrDuplicateAnalysis) {
		t.Fatalf("duplicate: err = %v", err)
	}
	moves, err := s.FetchRecentMoves(ctx, "u1", 10)
	if err != nil || len(moves) != 1 {
		t.Fatalf("duplicate must not add moves: %+v, %v", moves, err)
	}
}

func TestMemory_SaveAndFetch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := m.SaveGameAnalysis(ctx, "u1", sampleGame("a1", base, 4, domain.TierMistake)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.SaveGameAnalysis(ctx, "u1", sampleGame("a2", base.Add(time.Minute), 2, domain.TierBlunder)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := m.SaveGameAnalysis(ctx, "u1", sampleGame("a2", base, 2, domain.TierBlunder)); !errors.Is(err, ErrDuplicateAnalysis) {
		t.Fatalf("duplicate: err = %v", err)
	}

	moves, err := m.FetchRecentMoves(ctx, "u1", 200)
	if err != nil || len(moves) != 3 {
		t.Fatalf("moves = %+v, %v", moves, err)
	}
	if moves[0].Tier != domain.TierBlunder || moves[1].Ply != 3 || moves[2].Ply != 1 {
		t.Fatalf("order = %+v", moves)
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y = ? LIMIT ?"
	if got := rebind(Postgres, q); got != "SELECT a FROM t WHERE x = $1 AND y = $2 LIMIT $3" {
		t.Fatalf("postgres = %q", got)
	}
	if got := rebind(SQLite, q); got != q {
		t.Fatalf("sqlite = %q", got)
	}
}

func TestWeaknessReportFromStore(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		g := sampleGame(fmt.Sprintf("g%d", i), base.Add(time.Duration(i)*time.Hour), 6, domain.TierBlunder)
		if _, err := s.SaveGameAnalysis(ctx, "u1", g); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	history, err := s.FetchRecentMoves(ctx, "u1", 200)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	report := analysis.GenerateWeaknessReport(history, analysis.DefaultWeaknessRules(), nil)
	if len(report) == 0 || report[0].Type != analysis.WeaknessTactical {
		t.Fatalf("report = %+v", report)
	}
}
