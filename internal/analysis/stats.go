package analysis

import (
	"math"

	"github.com/park285/cheese-coach/internal/domain"
)

// PhaseBounds splits moves into phases by move number: opening up to
// OpeningLast, middlegame up to MiddlegameLast, endgame after that.
type PhaseBounds struct {
	OpeningLast    int
	MiddlegameLast int
}

var (
	GamePhases   = PhaseBounds{OpeningLast: 15, MiddlegameLast: 40}
	ReportPhases = PhaseBounds{OpeningLast: 10, MiddlegameLast: 30}
)

func (b PhaseBounds) PhaseOf(moveNumber int) domain.Phase {
	switch {
	case moveNumber <= b.OpeningLast:
		return domain.PhaseOpening
	case moveNumber <= b.MiddlegameLast:
		return domain.PhaseMiddlegame
	default:
		return domain.PhaseEndgame
	}
}

// Buckets groups moves by phase, preserving order within each phase.
type Buckets map[domain.Phase][]domain.ClassifiedMove

func Partition(moves []domain.ClassifiedMove, bounds PhaseBounds) Buckets {
	b := Buckets{
		domain.PhaseOpening:    {},
		domain.PhaseMiddlegame: {},
		domain.PhaseEndgame:    {},
	}
	for _, m := range moves {
		p := bounds.PhaseOf(m.MoveNumber)
		b[p] = append(b[p], m)
	}
	return b
}

// tally is the aggregation shared by per-game statistics and the weakness report.
type tally struct {
	n       int
	tiers   map[domain.Tier]int
	forcing int
	absLoss int
}

func summarize(moves []domain.ClassifiedMove) tally {
	t := tally{tiers: make(map[domain.Tier]int, 6)}
	for _, m := range moves {
		t.n++
		t.tiers[m.Tier]++
		t.absLoss += absInt(m.CentipawnLoss)
		if m.IsForcing {
			t.forcing++
		}
	}
	return t
}

func (t tally) accurate() int {
	return t.tiers[domain.TierBest] + t.tiers[domain.TierGood] + t.tiers[domain.TierBrilliant]
}

func (t tally) errorCount() int {
	return t.tiers[domain.TierMistake] + t.tiers[domain.TierBlunder]
}

// accuracy is the accurate share in percent, rounded to one decimal; 0 for no moves.
func (t tally) accuracy() float64 {
	if t.n == 0 {
		return 0
	}
	return round1(float64(t.accurate()) / float64(t.n) * 100)
}

func (t tally) errorRate() float64 {
	if t.n == 0 {
		return 0
	}
	return float64(t.errorCount()) / float64(t.n)
}

func (t tally) meanAbsLoss() float64 {
	if t.n == 0 {
		return 0
	}
	return float64(t.absLoss) / float64(t.n)
}

// Accuracy is the share of best, good and brilliant moves in percent.
func Accuracy(moves []domain.ClassifiedMove) float64 {
	return summarize(moves).accuracy()
}

// UserMoves filters moves to those played by user, keeping order.
func UserMoves(moves []domain.ClassifiedMove, user domain.Color) []domain.ClassifiedMove {
	out := make([]domain.ClassifiedMove, 0, len(moves)/2+1)
	for _, m := range moves {
		if m.PlayerColor == user {
			out = append(out, m)
		}
	}
	return out
}

// ComputeStatistics aggregates the user's moves and returns them bucketed by game phase.
func ComputeStatistics(moves []domain.ClassifiedMove, user domain.Color) (domain.GameStatistics, Buckets) {
	own := UserMoves(moves, user)
	buckets := Partition(own, GamePhases)
	all := summarize(own)

	return domain.GameStatistics{
		Brilliant:          all.tiers[domain.TierBrilliant],
		Best:               all.tiers[domain.TierBest],
		Good:               all.tiers[domain.TierGood],
		Inaccuracy:         all.tiers[domain.TierInaccuracy],
		Mistake:            all.tiers[domain.TierMistake],
		Blunder:            all.tiers[domain.TierBlunder],
		UserMoves:          all.n,
		ForcingMoves:       all.forcing,
		Accuracy:           all.accuracy(),
		OpeningAccuracy:    Accuracy(buckets[domain.PhaseOpening]),
		MiddlegameAccuracy: Accuracy(buckets[domain.PhaseMiddlegame]),
		EndgameAccuracy:    Accuracy(buckets[domain.PhaseEndgame]),
		AvgCentipawnLoss:   round1(all.meanAbsLoss()),
	}, buckets
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
