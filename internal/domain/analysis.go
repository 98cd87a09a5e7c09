package domain

import "time"

type Tier string

const (
	TierBrilliant  Tier = "brilliant"
	TierBest       Tier = "best"
	TierGood       Tier = "good"
	TierInaccuracy Tier = "inaccuracy"
	TierMistake    Tier = "mistake"
	TierBlunder    Tier = "blunder"
)

// Accurate reports whether the tier counts towards accuracy.
func (t Tier) Accurate() bool {
	return t == TierBest || t == TierGood || t == TierBrilliant
}

type Phase string

const (
	PhaseOpening    Phase = "opening"
	PhaseMiddlegame Phase = "middlegame"
	PhaseEndgame    Phase = "endgame"
)

type PositionalImpact struct {
	CenterControl float64 `json:"center_control"`
	KingSafety    float64 `json:"king_safety"`
	PieceActivity float64 `json:"piece_activity"`
	// PawnStructure is reserved and always zero.
	PawnStructure float64 `json:"pawn_structure"`
}

// ClassifiedMove stores EvalBefore and EvalAfter in pawns from white's point of view.
type ClassifiedMove struct {
	Ply           int              `json:"ply"`
	MoveNumber    int              `json:"move_number"`
	PlayerColor   Color            `json:"player_color"`
	UCI           string           `json:"move"`
	SAN           string           `json:"san"`
	FENBefore     string           `json:"fen_before,omitempty"`
	FENAfter      string           `json:"fen_after,omitempty"`
	EvalBefore    float64          `json:"eval_before"`
	EvalAfter     float64          `json:"eval_after"`
	BestMove      string           `json:"best_move,omitempty"`
	CentipawnLoss int              `json:"centipawn_loss"`
	Tier          Tier             `json:"tier"`
	Symbol        string           `json:"symbol"`
	Themes        []string         `json:"themes"`
	IsForcing     bool             `json:"is_forcing"`
	Impact        PositionalImpact `json:"positional_impact"`
	Degraded      bool             `json:"degraded,omitempty"`
}

func (m ClassifiedMove) HasTheme(theme string) bool {
	for _, t := range m.Themes {
		if t == theme {
			return true
		}
	}
	return false
}

type Threat struct {
	Kind     string `json:"type"`
	Severity string `json:"severity"`
	Piece    string `json:"piece,omitempty"`
	Square   string `json:"square,omitempty"`
}

type GameStatistics struct {
	Brilliant          int     `json:"brilliant"`
	Best               int     `json:"best"`
	Good               int     `json:"good"`
	Inaccuracy         int     `json:"inaccuracy"`
	Mistake            int     `json:"mistake"`
	Blunder            int     `json:"blunder"`
	UserMoves          int     `json:"user_moves"`
	ForcingMoves       int     `json:"forcing_moves"`
	Accuracy           float64 `json:"accuracy"`
	OpeningAccuracy    float64 `json:"opening_accuracy"`
	MiddlegameAccuracy float64 `json:"middlegame_accuracy"`
	EndgameAccuracy    float64 `json:"endgame_accuracy"`
	AvgCentipawnLoss   float64 `json:"avg_centipawn_loss"`
}

func (s GameStatistics) Count(t Tier) int {
	switch t {
	case TierBrilliant:
		return s.Brilliant
	case TierBest:
		return s.Best
	case TierGood:
		return s.Good
	case TierInaccuracy:
		return s.Inaccuracy
	case TierMistake:
		return s.Mistake
	case TierBlunder:
		return s.Blunder
	}
	return 0
}

type MomentKind string

const (
	MomentBlunder    MomentKind = "blunder"
	MomentBrilliancy MomentKind = "brilliancy"
	MomentMissedWin  MomentKind = "missed_win"
)

type CriticalMoment struct {
	MoveNumber  int        `json:"move_number"`
	Move        string     `json:"move"`
	Kind        MomentKind `json:"kind"`
	Magnitude   int        `json:"magnitude"`
	BestMove    string     `json:"best_move,omitempty"`
	Description string     `json:"description"`
}

type Strength struct {
	Area        string `json:"area"`
	Description string `json:"description"`
}

type Weakness struct {
	Area        string `json:"area"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type Recommendation struct {
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

type Insights struct {
	Strengths       []Strength       `json:"strengths"`
	Weaknesses      []Weakness       `json:"weaknesses"`
	Recommendations []Recommendation `json:"recommendations"`
}

// WeaknessEntry is one finding of the cross-game weakness report.
type WeaknessEntry struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

type GameMetadata struct {
	Opening     string `json:"opening_name"`
	ECO         string `json:"eco,omitempty"`
	Result      string `json:"result"`
	Termination string `json:"termination,omitempty"`
}

type GameAnalysis struct {
	ID              string           `json:"id"`
	UserColor       Color            `json:"user_color"`
	Budget          Budget           `json:"budget"`
	Moves           []ClassifiedMove `json:"move_analysis"`
	Statistics      GameStatistics   `json:"statistics"`
	CriticalMoments []CriticalMoment `json:"critical_moments"`
	Insights        Insights         `json:"insights"`
	Metadata        GameMetadata     `json:"metadata"`
	Degraded        bool             `json:"degraded"`
	AnalyzedAt      time.Time        `json:"analyzed_at"`
}

type PositionAnalysis struct {
	FEN          string     `json:"fen"`
	Evaluation   Evaluation `json:"evaluation"`
	Score        float64    `json:"score"`
	BestMove     string     `json:"best_move,omitempty"`
	BestMoveSAN  string     `json:"best_move_san,omitempty"`
	Threats      []Threat   `json:"threats"`
	Motifs       []string   `json:"tactical_motifs"`
	PositionType Phase      `json:"position_type"`
	Degraded     bool       `json:"degraded"`
}
