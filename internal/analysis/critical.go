package analysis

import "github.com/park285/cheese-coach/internal/domain"

const (
	maxCriticalMoments = 5

	swingThreshold     = 200
	winningThreshold   = 300
	missedWinThreshold = 100
)

// FindCriticalMoments picks at most five of the user's moves, in game order:
// large swings either way, and moves that threw away a winning position.
// The first move of the list is never reported as a missed win.
func FindCriticalMoments(moves []domain.ClassifiedMove, user domain.Color, text TextRenderer) []domain.CriticalMoment {
	out := make([]domain.CriticalMoment, 0, maxCriticalMoments)
	for i, m := range moves {
		if m.PlayerColor != user {
			continue
		}
		loss := m.CentipawnLoss
		if loss > swingThreshold {
			out = append(out, moment(m, domain.MomentBlunder, text))
		} else if loss < -swingThreshold {
			out = append(out, moment(m, domain.MomentBrilliancy, text))
		}
		if i > 0 && moverCentipawns(m.EvalBefore, m.PlayerColor) > winningThreshold && loss > missedWinThreshold {
			out = append(out, moment(m, domain.MomentMissedWin, text))
		}
		if len(out) >= maxCriticalMoments {
			return out[:maxCriticalMoments]
		}
	}
	return out
}

func moment(m domain.ClassifiedMove, kind domain.MomentKind, text TextRenderer) domain.CriticalMoment {
	move := m.SAN
	if move == "" {
		move = m.UCI
	}
	return domain.CriticalMoment{
		MoveNumber:  m.MoveNumber,
		Move:        move,
		Kind:        kind,
		Magnitude:   m.CentipawnLoss,
		BestMove:    m.BestMove,
		Description: render(text, "moment."+string(kind), nil),
	}
}

// moverCentipawns converts a white-relative pawn score to centipawns for mover.
func moverCentipawns(pawns float64, mover domain.Color) float64 {
	if mover == domain.Black {
		pawns = -pawns
	}
	return pawns * 100
}
