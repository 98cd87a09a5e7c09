package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-coach/internal/domain"
)

type memGame struct {
	id       int64
	seq      int64
	userID   string
	analysis domain.GameAnalysis
}

// Memory is a development store used when no database is configured.
type Memory struct {
	mu sync.RWMutex

	nextID     int64
	byAnalysis map[string]*memGame
	byUser     map[string][]*memGame // append order, latest last
}

func NewMemory() *Memory {
	return &Memory{
		byAnalysis: make(map[string]*memGame),
		byUser:     make(map[string][]*memGame),
	}
}

func (m *Memory) SaveGameAnalysis(ctx context.Context, userID string, a *domain.GameAnalysis) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("nil game analysis")
	}
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("user id required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byAnalysis[a.ID]; exists {
		return 0, ErrDuplicateAnalysis
	}
	m.nextID++
	g := &memGame{id: m.nextID, seq: m.nextID, userID: userID, analysis: *a}
	g.analysis.Moves = append([]domain.ClassifiedMove(nil), a.Moves...)

	m.byAnalysis[a.ID] = g
	m.byUser[userID] = append(m.byUser[userID], g)
	return g.id, nil
}

func (m *Memory) FetchRecentMoves(ctx context.Context, userID string, limit int) ([]domain.ClassifiedMove, error) {
	if limit <= 0 {
		limit = 200
	}

	m.mu.RLock()
	games := append([]*memGame(nil), m.byUser[userID]...)
	m.mu.RUnlock()

	sort.SliceStable(games, func(i, j int) bool {
		ti, tj := games[i].analysis.AnalyzedAt, games[j].analysis.AnalyzedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return games[i].seq > games[j].seq
	})

	out := make([]domain.ClassifiedMove, 0, limit)
	for _, g := range games {
		moves := g.analysis.Moves
		for i := len(moves) - 1; i >= 0; i-- {
			if moves[i].PlayerColor != g.analysis.UserColor {
				continue
			}
			out = append(out, moves[i])
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}
