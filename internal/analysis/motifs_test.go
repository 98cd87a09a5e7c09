package analysis

import (
	"testing"

	"github.com/park285/cheese-coach/internal/chess/rules"
	"github.com/park285/cheese-coach/internal/domain"
)

func plyFacts(t *testing.T, fen string, moves []string, index int) MoveFacts {
	t.Helper()
	g, err := rules.ParseMoves(fen, moves)
	if err != nil {
		t.Fatalf("ParseMoves: %v", err)
	}
	p := g.Plies()[index]
	return AnalyzeMove(p.Before, p.After, p.Move)
}

func hasTheme(themes []string, want string) bool {
	for _, th := range themes {
		if th == want {
			return true
		}
	}
	return false
}

func TestAnalyzeMove_Themes(t *testing.T) {
	cases := []struct {
		name    string
		fen     string
		moves   []string
		index   int
		want    []string
		without []string
	}{
		{"capture in the centre", "", []string{"e4", "d5", "exd5"}, 2,
			[]string{ThemeCapture, ThemePawnBreak, ThemeCenterControl}, []string{ThemeEnPassant}},
		{"en passant", "", []string{"e4", "a6", "e5", "d5", "exd6"}, 4,
			[]string{ThemeCapture, ThemeEnPassant, ThemePawnBreak}, nil},
		{"kingside castling", "", []string{"e4", "e5", "Nf3", "Nc6", "Bc4", "Bc5", "O-O"}, 6,
			[]string{"castling", "kingside_castle"}, []string{"queenside_castle", ThemeCapture}},
		{"queenside castling", "r3k3/8/8/8/8/8/8/R3K3 w Qq - 0 1", []string{"O-O-O"}, 0,
			[]string{"castling", "queenside_castle"}, []string{"kingside_castle"}},
		{"black queenside castling", "r3k3/8/8/8/8/8/8/R3K3 b Qq - 0 1", []string{"O-O-O"}, 0,
			[]string{"castling", "queenside_castle"}, []string{"kingside_castle"}},
		{"knight development", "", []string{"e4", "e5", "Nf3"}, 2,
			[]string{ThemeDevelopment}, []string{ThemeCenterControl}},
		{"black bishop development", "", []string{"e4", "e5", "Nf3", "Bc5"}, 3,
			[]string{ThemeDevelopment}, nil},
		{"check", "", []string{"e4", "f5", "Qh5+"}, 2,
			[]string{ThemeCheck}, []string{ThemeCheckmate}},
		{"checkmate", "", []string{"f3", "e5", "g4", "Qh4#"}, 3,
			[]string{ThemeCheckmate}, []string{ThemeCheck}},
		{"promotion", "8/P7/8/8/8/8/k7/4K3 w - - 0 1", []string{"a7a8q"}, 0,
			[]string{ThemePromotion}, []string{ThemePawnBreak}},
		{"knight fork", "4k3/2q1r3/8/8/8/2N5/8/6K1 w - - 0 1", []string{"c3d5"}, 0,
			[]string{ThemeFork, ThemeCenterControl}, nil},
		{"pinned rook moves along the pin", "4k3/4r3/8/8/8/8/8/4R1K1 b - - 0 1", []string{"e7e3"}, 0,
			[]string{ThemePinBreak}, []string{ThemeCapture}},
	}
	for _, c := range cases {
		facts := plyFacts(t, c.fen, c.moves, c.index)
		for _, w := range c.want {
			if !hasTheme(facts.Themes, w) {
				t.Errorf("%s: missing %q in %v", c.name, w, facts.Themes)
			}
		}
		for _, w := range c.without {
			if hasTheme(facts.Themes, w) {
				t.Errorf("%s: unexpected %q in %v", c.name, w, facts.Themes)
			}
		}
	}
}

func TestAnalyzeMove_ForcingAndImpact(t *testing.T) {
	quiet := plyFacts(t, "", []string{"e4", "e5", "Nc3"}, 2)
	if quiet.IsForcing {
		t.Fatalf("Nc3 should not be forcing, threats=%v", quiet.Threats)
	}

	// Nf3 leaves the e5 pawn en prise
	attack := plyFacts(t, "", []string{"e4", "e5", "Nf3"}, 2)
	if !attack.IsForcing || len(attack.Threats) != 1 || attack.Threats[0].Square != "e5" {
		t.Fatalf("Nf3 facts = %+v", attack)
	}

	check := plyFacts(t, "", []string{"e4", "f5", "Qh5+"}, 2)
	if !check.IsForcing || len(check.Threats) == 0 || check.Threats[0].Kind != ThreatCheck {
		t.Fatalf("Qh5+ facts = %+v", check)
	}

	capture := plyFacts(t, "", []string{"e4", "d5", "exd5"}, 2)
	if !capture.IsForcing {
		t.Fatalf("exd5 should be forcing")
	}
	if capture.Impact.CenterControl != 1 || capture.Impact.PawnStructure != 0 {
		t.Fatalf("impact = %+v", capture.Impact)
	}

	castle := plyFacts(t, "", []string{"e4", "e5", "Nf3", "Nc6", "Bc4", "Bc5", "O-O"}, 6)
	if castle.Impact.KingSafety != 1 {
		t.Fatalf("castling king safety = %v", castle.Impact.KingSafety)
	}
	walk := plyFacts(t, "", []string{"e4", "e5", "Ke2"}, 2)
	if walk.Impact.KingSafety != -0.5 {
		t.Fatalf("king walk safety = %v", walk.Impact.KingSafety)
	}
	if walk.Impact.PieceActivity <= 0 || walk.Impact.PieceActivity > 1 {
		t.Fatalf("activity = %v", walk.Impact.PieceActivity)
	}
}

func TestDetectThreats_Hanging(t *testing.T) {
	pos, err := rules.ParseFEN("4k3/8/8/3n4/8/8/8/3RK3 b - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	threats := DetectThreats(pos)
	if len(threats) != 1 {
		t.Fatalf("threats = %+v", threats)
	}
	th := threats[0]
	if th.Kind != ThreatHanging || th.Piece != "n" || th.Square != "d5" || th.Severity != "high" {
		t.Fatalf("threat = %+v", th)
	}

	defended, err := rules.ParseFEN("4k3/4p3/3n4/8/8/8/8/3RK3 b - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if got := DetectThreats(defended); len(got) != 0 {
		t.Fatalf("defended knight reported: %+v", got)
	}
}

func TestPositionType(t *testing.T) {
	cases := []struct {
		fen  string
		want domain.Phase
	}{
		{"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", domain.PhaseOpening},
		{"r3k2r/pppq1ppp/8/8/8/8/PPPQ1PPP/R3K2R w KQkq - 0 1", domain.PhaseMiddlegame},
		{"4k3/8/8/8/8/8/4P3/4K3 w - - 0 1", domain.PhaseEndgame},
	}
	for _, c := range cases {
		pos, err := rules.ParseFEN(c.fen)
		if err != nil {
			t.Fatalf("ParseFEN: %v", err)
		}
		if got := PositionType(pos); got != c.want {
			t.Errorf("PositionType(%s) = %s, want %s", c.fen, got, c.want)
		}
	}
}

func TestPositionMotifs_LinePieces(t *testing.T) {
	cases := []struct {
		name  string
		fen   string
		move  string
		lines bool
	}{
		{"rook lift", "4k3/8/8/8/8/8/8/R3K3 w - - 0 1", "a1a7", true},
		{"bishop", "4k3/8/8/8/8/8/8/2B1K3 w - - 0 1", "c1g5", true},
		{"promotion to queen", "8/P7/8/8/8/8/k7/4K3 w - - 0 1", "a7a8q", true},
		{"knight fork", "4k3/2q1r3/8/8/8/2N5/8/6K1 w - - 0 1", "c3d5", false},
		{"king step", "4k3/8/8/8/8/8/8/4K3 w - - 0 1", "e1d2", false},
	}
	for _, c := range cases {
		g, err := rules.ParseMoves(c.fen, []string{c.move})
		if err != nil {
			t.Fatalf("%s: ParseMoves: %v", c.name, err)
		}
		p := g.Plies()[0]
		motifs := PositionMotifs(p.Before, p.After, p.Move)
		for _, tag := range []string{"potential_discovery", "potential_skewer"} {
			if hasTheme(motifs, tag) != c.lines {
				t.Errorf("%s: %q present=%v in %v", c.name, tag, !c.lines, motifs)
			}
		}
		for _, th := range AnalyzeMove(p.Before, p.After, p.Move).Themes {
			if !hasTheme(motifs, th) {
				t.Errorf("%s: move theme %q missing from %v", c.name, th, motifs)
			}
		}
	}
}
