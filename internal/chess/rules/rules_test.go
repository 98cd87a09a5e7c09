package rules

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-coach/internal/domain"
)

func mustSquare(t *testing.T, name string) Square {
	t.Helper()
	if len(name) != 2 {
		t.Fatalf("bad square %q", name)
	}
	sq, ok := square(int(name[0]-'a'), int(name[1]-'1'))
	if !ok {
		t.Fatalf("bad square %q", name)
	}
	return sq
}

func TestParseGame_MoveListWithNumbers(t *testing.T) {
	g, err := ParseGame("1. e4 e5 2. Nf3 Nc6 3.Bb5 a6 *")
	if err != nil {
		t.Fatalf("ParseGame: %v", err)
	}
	plies := g.Plies()
	if len(plies) != 6 {
		t.Fatalf("plies = %d, want 6", len(plies))
	}
	want := []struct {
		number int
		color  domain.Color
		uci    string
		san    string
	}{
		{1, domain.White, "e2e4", "e4"},
		{1, domain.Black, "e7e5", "e5"},
		{2, domain.White, "g1f3", "Nf3"},
		{2, domain.Black, "b8c6", "Nc6"},
		{3, domain.White, "f1b5", "Bb5"},
		{3, domain.Black, "a7a6", "a6"},
	}
	for i, w := range want {
		p := plies[i]
		if p.Index != i || p.MoveNumber != w.number || p.Color != w.color || p.UCI != w.uci || p.SAN != w.san {
			t.Fatalf("ply %d = {%d %d %s %s %s}, want %+v", i, p.Index, p.MoveNumber, p.Color, p.UCI, p.SAN, w)
		}
	}
	if plies[0].After.FEN() != plies[1].Before.FEN() {
		t.Fatalf("after of ply 0 should equal before of ply 1")
	}
}

func TestParseGame_UCIList(t *testing.T) {
	g, err := ParseGame("e2e4 c7c5 g1f3")
	if err != nil {
		t.Fatalf("ParseGame: %v", err)
	}
	if n := len(g.Plies()); n != 3 {
		t.Fatalf("plies = %d, want 3", n)
	}
	if san := g.Plies()[1].SAN; san != "c5" {
		t.Fatalf("san = %q, want c5", san)
	}
}

func TestParseGame_PGNTags(t *testing.T) {
	pgn := `[Event "Club"]
[White "A"]
[Black "B"]
[Result "1-0"]
[Opening "Ruy Lopez"]
[ECO "C60"]

1. e4 e5 2. Nf3 Nc6 3. Bb5 {Spanish} 1-0`
	g, err := ParseGame(pgn)
	if err != nil {
		t.Fatalf("ParseGame: %v", err)
	}
	if n := len(g.Plies()); n != 5 {
		t.Fatalf("plies = %d, want 5", n)
	}
	name, eco := g.Opening()
	if name != "Ruy Lopez" || eco != "C60" {
		t.Fatalf("opening = %q %q", name, eco)
	}
	if g.Result() != "1-0" {
		t.Fatalf("result = %q", g.Result())
	}
}

func TestParseGame_Invalid(t *testing.T) {
	if _, err := ParseGame("   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("empty: err = %v", err)
	}
	if _, err := ParseGame("e4 e5 Qxf7"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("illegal: err = %v", err)
	}
	if _, err := ParseGame("e4 banana"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("unknown token: err = %v", err)
	}
	if _, err := ParseMoves("not a fen", []string{"e2e4"}); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("bad fen: err = %v", err)
	}
}

func TestParseMoves_FromFENBlackToMove(t *testing.T) {
	fen := "4k3/8/8/8/8/8/4P3/4K3 b - - 0 12"
	g, err := ParseMoves(fen, []string{"e8d7", "e2e4"})
	if err != nil {
		t.Fatalf("ParseMoves: %v", err)
	}
	plies := g.Plies()
	if plies[0].Color != domain.Black || plies[0].MoveNumber != 12 {
		t.Fatalf("first ply = %s #%d", plies[0].Color, plies[0].MoveNumber)
	}
	if plies[1].Color != domain.White || plies[1].MoveNumber != 13 {
		t.Fatalf("second ply = %s #%d", plies[1].Color, plies[1].MoveNumber)
	}
}

func TestFoolsMate(t *testing.T) {
	g, err := ParseGame("f3 e5 g4 Qh4#")
	if err != nil {
		t.Fatalf("ParseGame: %v", err)
	}
	last := g.Plies()[3].After
	if !last.InCheck() || !last.IsCheckmate() || last.IsStalemate() {
		t.Fatalf("expected checkmate")
	}
	if last.LegalMoveCount() != 0 {
		t.Fatalf("legal moves = %d", last.LegalMoveCount())
	}
	if g.Result() != "0-1" {
		t.Fatalf("result = %q", g.Result())
	}
	if g.Termination() != "checkmate" {
		t.Fatalf("termination = %q", g.Termination())
	}
}

func TestStalemate(t *testing.T) {
	pos, err := ParseFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if !pos.IsStalemate() || pos.IsCheckmate() {
		t.Fatalf("expected stalemate")
	}
}

func TestAttackersAndPins(t *testing.T) {
	// black rook e7 is pinned to its king by the white rook on e1
	pos, err := ParseFEN("4k3/4r3/8/8/8/2n5/8/3RR1K1 b - - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	if !pos.IsPinned(mustSquare(t, "e7")) {
		t.Fatalf("e7 should be pinned")
	}
	if pos.IsPinned(mustSquare(t, "c3")) {
		t.Fatalf("c3 should not be pinned")
	}
	att := pos.Attackers(mustSquare(t, "e7"), nchess.White)
	if len(att) != 1 || att[0] != mustSquare(t, "e1") {
		t.Fatalf("attackers of e7 = %v", att)
	}
	// knight c3 hits d1 and e2 among others
	hits := map[Square]bool{}
	for _, s := range pos.AttacksFrom(mustSquare(t, "c3")) {
		hits[s] = true
	}
	if !hits[mustSquare(t, "d1")] || !hits[mustSquare(t, "e2")] || len(hits) != 8 {
		t.Fatalf("knight attacks = %v", hits)
	}
}

func TestPlayAndNotation(t *testing.T) {
	pos, err := ParseFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}
	mv, next, err := pos.Play("g1f3")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if pos.SAN(mv) != "Nf3" || pos.UCI(mv) != "g1f3" {
		t.Fatalf("notation = %s %s", pos.SAN(mv), pos.UCI(mv))
	}
	if next.Turn() != nchess.Black || next.PieceCount() != 32 {
		t.Fatalf("unexpected position after Nf3: %s", next.FEN())
	}
	if pos.Turn() != nchess.White {
		t.Fatalf("Play must not mutate the source position")
	}
	if _, _, err := pos.Play("e2e5"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("illegal play: err = %v", err)
	}
}
