package analysis

import (
	"math"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-coach/internal/chess/rules"
	"github.com/park285/cheese-coach/internal/domain"
)

const (
	ThemeCapture         = "capture"
	ThemeEnPassant       = "en_passant"
	ThemeCastling        = "castling"
	ThemeKingsideCastle  = "kingside_castle"
	ThemeQueensideCastle = "queenside_castle"
	ThemeCheck           = "check"
	ThemeCheckmate       = "checkmate"
	ThemePromotion       = "promotion"
	ThemePawnBreak       = "pawn_break"
	ThemeDevelopment     = "development"
	ThemeCenterControl   = "center_control"
	ThemeFork            = "fork"
	ThemePinBreak        = "pin_break"

	ThreatCheck   = "check"
	ThreatHanging = "hanging_piece"

	MotifPotentialDiscovery = "potential_discovery"
	MotifPotentialSkewer    = "potential_skewer"
)

// MoveFacts are the board-derived annotations of a single move.
type MoveFacts struct {
	Themes    []string
	Threats   []domain.Threat
	IsForcing bool
	Impact    domain.PositionalImpact
}

// AnalyzeMove derives themes, tactical motifs, threats and positional impact
// of mv, played from before and resulting in after.
func AnalyzeMove(before, after *rules.Position, mv *nchess.Move) MoveFacts {
	from, to := rules.SquareOf(mv.S1()), rules.SquareOf(mv.S2())
	piece := before.PieceAt(from)
	mover := piece.Color()
	target := before.PieceAt(to)

	isPawn := piece.Type() == nchess.Pawn
	enPassant := isPawn && from.File() != to.File() && target == nchess.NoPiece
	capture := enPassant || (target != nchess.NoPiece && target.Color() != mover)
	castle := piece.Type() == nchess.King && absInt(to.File()-from.File()) == 2

	themes := make([]string, 0, 4)
	if capture {
		themes = append(themes, ThemeCapture)
		if enPassant {
			themes = append(themes, ThemeEnPassant)
		}
	}
	if castle {
		themes = append(themes, ThemeCastling)
		if to.File() > from.File() {
			themes = append(themes, ThemeKingsideCastle)
		} else {
			themes = append(themes, ThemeQueensideCastle)
		}
	}
	checks := after.InCheck()
	if after.IsCheckmate() {
		themes = append(themes, ThemeCheckmate)
	} else if checks {
		themes = append(themes, ThemeCheck)
	}
	if isPawn {
		if landed := after.PieceAt(to); landed != nchess.NoPiece && landed.Type() != nchess.Pawn {
			themes = append(themes, ThemePromotion)
		}
		if from.File() != to.File() {
			themes = append(themes, ThemePawnBreak)
		}
	}
	if (piece.Type() == nchess.Knight || piece.Type() == nchess.Bishop) && from.Rank() == backRank(mover) {
		themes = append(themes, ThemeDevelopment)
	}
	if isCenter(to) {
		themes = append(themes, ThemeCenterControl)
	}
	if forks(after, to, mover) {
		themes = append(themes, ThemeFork)
	}
	if before.IsPinned(from) {
		themes = append(themes, ThemePinBreak)
	}

	threats := DetectThreats(after)
	return MoveFacts{
		Themes:    themes,
		Threats:   threats,
		IsForcing: checks || capture || len(threats) > 0,
		Impact:    impact(after, to, piece, castle),
	}
}

// PositionMotifs annotates the best move of a position with its themes. A
// bishop, rook or queen landing on its square is also tagged as a possible
// discovered attack and skewer; those two tags are line-piece hints only.
func PositionMotifs(before, after *rules.Position, mv *nchess.Move) []string {
	motifs := AnalyzeMove(before, after, mv).Themes
	switch after.PieceAt(rules.SquareOf(mv.S2())).Type() {
	case nchess.Bishop, nchess.Rook, nchess.Queen:
		motifs = append(motifs, MotifPotentialDiscovery, MotifPotentialSkewer)
	}
	return motifs
}

// DetectThreats lists what the side to move in pos must answer: a check, and
// every non-king piece with more enemy attackers than friendly defenders.
func DetectThreats(pos *rules.Position) []domain.Threat {
	threats := make([]domain.Threat, 0)
	side := pos.Turn()
	if pos.InCheck() {
		threats = append(threats, domain.Threat{Kind: ThreatCheck, Severity: "high"})
	}
	for sq := rules.Square(0); sq < 64; sq++ {
		pc := pos.PieceAt(sq)
		if pc == nchess.NoPiece || pc.Color() != side || pc.Type() == nchess.King {
			continue
		}
		attackers := len(pos.Attackers(sq, rules.Opponent(side)))
		if attackers == 0 {
			continue
		}
		if attackers > len(pos.Attackers(sq, side)) {
			threats = append(threats, domain.Threat{
				Kind:     ThreatHanging,
				Severity: "high",
				Piece:    rules.PieceSymbol(pc),
				Square:   sq.String(),
			})
		}
	}
	return threats
}

// PositionType buckets a position by the number of pieces left on the board.
func PositionType(pos *rules.Position) domain.Phase {
	switch n := pos.PieceCount(); {
	case n <= 10:
		return domain.PhaseEndgame
	case n <= 20:
		return domain.PhaseMiddlegame
	default:
		return domain.PhaseOpening
	}
}

func impact(after *rules.Position, to rules.Square, piece nchess.Piece, castle bool) domain.PositionalImpact {
	var im domain.PositionalImpact
	if isCenter(to) {
		im.CenterControl = 1
	}
	if piece.Type() == nchess.King {
		if castle {
			im.KingSafety = 1
		} else {
			im.KingSafety = -0.5
		}
	}
	im.PieceActivity = math.Min(1, float64(after.LegalMoveCount())/30)
	return im
}

func forks(after *rules.Position, sq rules.Square, mover nchess.Color) bool {
	hits := 0
	for _, t := range after.AttacksFrom(sq) {
		pc := after.PieceAt(t)
		if pc == nchess.NoPiece || pc.Color() == mover {
			continue
		}
		switch pc.Type() {
		case nchess.Knight, nchess.Bishop, nchess.Rook, nchess.Queen:
			hits++
		}
	}
	return hits >= 2
}

func isCenter(sq rules.Square) bool {
	return (sq.File() == 3 || sq.File() == 4) && (sq.Rank() == 3 || sq.Rank() == 4)
}

func backRank(c nchess.Color) int {
	if c == nchess.White {
		return 0
	}
	return 7
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
