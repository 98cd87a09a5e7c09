package analysis

import (
	"math"

	"github.com/park285/cheese-coach/internal/domain"
)

type Classification struct {
	CentipawnLoss int
	Tier          domain.Tier
	Symbol        string
}

// Classify grades one move. evalBefore and evalAfter are in pawns from
// white's point of view; they are flipped to the mover here and nowhere else.
func Classify(evalBefore, evalAfter float64, isBest bool, mover domain.Color) Classification {
	if mover == domain.Black {
		evalBefore, evalAfter = -evalBefore, -evalAfter
	}
	loss := int(math.Round((evalBefore - evalAfter) * 100))
	tier := TierForLoss(loss, isBest)
	return Classification{CentipawnLoss: loss, Tier: tier, Symbol: Symbol(tier)}
}

// TierForLoss maps a centipawn loss to a tier. A loss below -50 means the move
// scored better than the pre-move best line; it is labelled brilliant, which
// also covers search instability between two evaluator calls.
func TierForLoss(loss int, isBest bool) domain.Tier {
	switch {
	case isBest:
		return domain.TierBest
	case loss < -50:
		return domain.TierBrilliant
	case loss <= 10:
		return domain.TierBest
	case loss <= 50:
		return domain.TierGood
	case loss <= 100:
		return domain.TierInaccuracy
	case loss <= 300:
		return domain.TierMistake
	default:
		return domain.TierBlunder
	}
}

func Symbol(t domain.Tier) string {
	switch t {
	case domain.TierBest:
		return "!"
	case domain.TierBrilliant:
		return "!!"
	case domain.TierInaccuracy:
		return "?"
	case domain.TierMistake:
		return "??"
	case domain.TierBlunder:
		return "???"
	default:
		return ""
	}
}
