package domain

import (
	"fmt"
	"time"
)

const (
	// MateScorePawns is the pawn value reported for a forced mate.
	MateScorePawns = 100.0
	// MaxPrincipalMoves bounds the stored move sequence of a principal variation.
	MaxPrincipalMoves = 5
)

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func ParseColor(s string) (Color, error) {
	switch Color(s) {
	case White, "w":
		return White, nil
	case Black, "b":
		return Black, nil
	default:
		return "", fmt.Errorf("unknown color %q", s)
	}
}

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Evaluation is relative to the side to move of the evaluated position.
type Evaluation struct {
	Centipawns int                  `json:"centipawns"`
	MateIn     *int                 `json:"mate_in,omitempty"`
	Depth      int                  `json:"depth"`
	Lines      []PrincipalVariation `json:"lines"`
}

type PrincipalVariation struct {
	FirstMove  string   `json:"first_move"`
	Centipawns int      `json:"centipawns"`
	MateIn     *int     `json:"mate_in,omitempty"`
	Depth      int      `json:"depth_reached"`
	Moves      []string `json:"move_sequence"`
}

// Pawns converts the score to pawn units. Mate scores saturate at
// ±MateScorePawns; a mate count of zero or less means the side to move is mated.
func (e Evaluation) Pawns() float64 {
	return scoreToPawns(e.Centipawns, e.MateIn)
}

func (pv PrincipalVariation) Pawns() float64 {
	return scoreToPawns(pv.Centipawns, pv.MateIn)
}

// BestMove returns the first move of the top line, or "" when the evaluation has no lines.
func (e Evaluation) BestMove() string {
	if len(e.Lines) == 0 {
		return ""
	}
	return e.Lines[0].FirstMove
}

func scoreToPawns(cp int, mate *int) float64 {
	if mate != nil {
		if *mate > 0 {
			return MateScorePawns
		}
		return -MateScorePawns
	}
	return float64(cp) / 100
}

func MateIn(n int) *int { return &n }

// Budget is the search budget of one evaluator request.
type Budget struct {
	Depth    int           `json:"depth"`
	MoveTime time.Duration `json:"move_time"`
	Lines    int           `json:"lines"`
}

func (b Budget) Validate() error {
	if b.Depth < 0 || b.MoveTime < 0 {
		return fmt.Errorf("negative search budget: depth=%d movetime=%s", b.Depth, b.MoveTime)
	}
	if b.Depth == 0 && b.MoveTime == 0 {
		return fmt.Errorf("search budget defines no limit")
	}
	if b.Lines < 0 || b.Lines > 5 {
		return fmt.Errorf("line count %d out of range 1-5", b.Lines)
	}
	return nil
}

func (b Budget) Key() string {
	return fmt.Sprintf("d%d/t%d/l%d", b.Depth, b.MoveTime.Milliseconds(), b.LineCount())
}

func (b Budget) LineCount() int {
	if b.Lines <= 0 {
		return 1
	}
	return b.Lines
}

// Reduced is the budget used for the single retry after a timeout.
func (b Budget) Reduced() Budget {
	r := b
	if r.Depth > 0 {
		r.Depth /= 2
		if r.Depth < 1 {
			r.Depth = 1
		}
	}
	if r.MoveTime > 0 {
		r.MoveTime /= 2
		if r.MoveTime < 50*time.Millisecond {
			r.MoveTime = 50 * time.Millisecond
		}
	}
	return r
}
