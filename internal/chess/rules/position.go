// Package rules adapts corentings/chess to the board queries the analysis
// pipeline needs: notation, legality, check state, attack maps and pins.
package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrInvalidFEN  = errors.New("invalid FEN")
	ErrIllegalMove = errors.New("illegal or unknown move")
)

var (
	knightOffsets = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingOffsets   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDirs      = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs    = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// Square indexes the board as rank*8+file, a1 = 0, h8 = 63.
type Square int

func SquareOf(sq nchess.Square) Square {
	return Square(int(sq.Rank())*8 + int(sq.File()))
}

func (s Square) File() int { return int(s) % 8 }
func (s Square) Rank() int { return int(s) / 8 }

func (s Square) String() string {
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

func square(file, rank int) (Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return Square(rank*8 + file), true
}

// Position is an immutable snapshot of one board state.
type Position struct {
	pos   *nchess.Position
	board [64]nchess.Piece
	turn  nchess.Color
	legal int
}

func newPosition(pos *nchess.Position) *Position {
	p := &Position{pos: pos, turn: pos.Turn(), legal: -1}
	b := pos.Board()
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p.board[r*8+f] = b.Piece(nchess.NewSquare(nchess.File(f), nchess.Rank(r)))
		}
	}
	return p
}

func ParseFEN(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return newPosition(nchess.NewGame(opt).Position()), nil
}

func (p *Position) FEN() string { return p.pos.String() }

func (p *Position) Raw() *nchess.Position { return p.pos }

func (p *Position) Turn() nchess.Color { return p.turn }

func (p *Position) PieceAt(sq Square) nchess.Piece { return p.board[sq] }

// FullMoveNumber reads the move counter field of the FEN, defaulting to 1.
func (p *Position) FullMoveNumber() int {
	fields := strings.Fields(p.FEN())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func (p *Position) PieceCount() int {
	n := 0
	for _, pc := range p.board {
		if pc != nchess.NoPiece {
			n++
		}
	}
	return n
}

func (p *Position) LegalMoveCount() int {
	if p.legal < 0 {
		p.legal = len(p.pos.ValidMoves())
	}
	return p.legal
}

func (p *Position) InCheck() bool {
	king, ok := p.kingSquare(p.turn)
	if !ok {
		return false
	}
	return len(p.Attackers(king, opponent(p.turn))) > 0
}

func (p *Position) IsCheckmate() bool { return p.InCheck() && p.LegalMoveCount() == 0 }

func (p *Position) IsStalemate() bool { return !p.InCheck() && p.LegalMoveCount() == 0 }

// AttacksFrom lists the squares attacked by the piece on sq. Sliding attacks
// stop at the first occupied square, which is included.
func (p *Position) AttacksFrom(sq Square) []Square {
	piece := p.board[sq]
	if piece == nchess.NoPiece {
		return nil
	}
	f, r := sq.File(), sq.Rank()
	var out []Square
	switch piece.Type() {
	case nchess.Pawn:
		dir := 1
		if piece.Color() == nchess.Black {
			dir = -1
		}
		for _, df := range []int{-1, 1} {
			if t, ok := square(f+df, r+dir); ok {
				out = append(out, t)
			}
		}
	case nchess.Knight:
		out = p.step(out, f, r, knightOffsets)
	case nchess.King:
		out = p.step(out, f, r, kingOffsets)
	case nchess.Bishop:
		out = p.slide(out, f, r, bishopDirs)
	case nchess.Rook:
		out = p.slide(out, f, r, rookDirs)
	case nchess.Queen:
		out = p.slide(out, f, r, bishopDirs)
		out = p.slide(out, f, r, rookDirs)
	}
	return out
}

// Attackers lists the squares holding pieces of color by that attack target.
func (p *Position) Attackers(target Square, by nchess.Color) []Square {
	var out []Square
	for from := Square(0); from < 64; from++ {
		pc := p.board[from]
		if pc == nchess.NoPiece || pc.Color() != by {
			continue
		}
		for _, t := range p.AttacksFrom(from) {
			if t == target {
				out = append(out, from)
				break
			}
		}
	}
	return out
}

// IsPinned reports an absolute pin: moving the piece on sq would expose its own king.
func (p *Position) IsPinned(sq Square) bool {
	piece := p.board[sq]
	if piece == nchess.NoPiece || piece.Type() == nchess.King {
		return false
	}
	king, ok := p.kingSquare(piece.Color())
	if !ok {
		return false
	}
	dx, dy := sq.File()-king.File(), sq.Rank()-king.Rank()
	if dx != 0 && dy != 0 && abs(dx) != abs(dy) {
		return false
	}
	df, dr := sign(dx), sign(dy)
	for x, y := king.File()+df, king.Rank()+dr; ; x, y = x+df, y+dr {
		s, _ := square(x, y)
		if s == sq {
			break
		}
		if p.board[s] != nchess.NoPiece {
			return false
		}
	}
	diagonal := df != 0 && dr != 0
	for x, y := sq.File()+df, sq.Rank()+dr; ; x, y = x+df, y+dr {
		s, ok := square(x, y)
		if !ok {
			return false
		}
		pc := p.board[s]
		if pc == nchess.NoPiece {
			continue
		}
		if pc.Color() == piece.Color() {
			return false
		}
		switch pc.Type() {
		case nchess.Queen:
			return true
		case nchess.Bishop:
			return diagonal
		case nchess.Rook:
			return !diagonal
		default:
			return false
		}
	}
}

// DecodeMove accepts UCI ("e2e4") or SAN ("e4", "Nf3", "O-O") text.
func (p *Position) DecodeMove(text string) (*nchess.Move, error) {
	text = strings.TrimSpace(text)
	if mv, err := (nchess.UCINotation{}).Decode(p.pos, strings.ToLower(text)); err == nil {
		return mv, nil
	}
	mv, err := (nchess.AlgebraicNotation{}).Decode(p.pos, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrIllegalMove, text)
	}
	return mv, nil
}

func (p *Position) SAN(mv *nchess.Move) string {
	return nchess.AlgebraicNotation{}.Encode(p.pos, mv)
}

func (p *Position) UCI(mv *nchess.Move) string {
	return strings.ToLower(nchess.UCINotation{}.Encode(p.pos, mv))
}

// Play applies a move to a copy of the position.
func (p *Position) Play(text string) (*nchess.Move, *Position, error) {
	opt, err := nchess.FEN(p.FEN())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	game := nchess.NewGame(opt)
	mv, err := newPosition(game.Position()).DecodeMove(text)
	if err != nil {
		return nil, nil, err
	}
	if err := game.Move(mv, nil); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}
	return mv, newPosition(game.Position()), nil
}

func (p *Position) kingSquare(c nchess.Color) (Square, bool) {
	for sq := Square(0); sq < 64; sq++ {
		pc := p.board[sq]
		if pc != nchess.NoPiece && pc.Type() == nchess.King && pc.Color() == c {
			return sq, true
		}
	}
	return 0, false
}

func (p *Position) step(out []Square, f, r int, offsets [8][2]int) []Square {
	for _, o := range offsets {
		if t, ok := square(f+o[0], r+o[1]); ok {
			out = append(out, t)
		}
	}
	return out
}

func (p *Position) slide(out []Square, f, r int, dirs [4][2]int) []Square {
	for _, d := range dirs {
		for x, y := f+d[0], r+d[1]; ; x, y = x+d[0], y+d[1] {
			t, ok := square(x, y)
			if !ok {
				break
			}
			out = append(out, t)
			if p.board[t] != nchess.NoPiece {
				break
			}
		}
	}
	return out
}

func opponent(c nchess.Color) nchess.Color {
	if c == nchess.White {
		return nchess.Black
	}
	return nchess.White
}

// Opponent returns the other side.
func Opponent(c nchess.Color) nchess.Color { return opponent(c) }

// PieceSymbol returns the FEN letter of a piece, upper case for white.
func PieceSymbol(pc nchess.Piece) string {
	var s string
	switch pc.Type() {
	case nchess.King:
		s = "k"
	case nchess.Queen:
		s = "q"
	case nchess.Rook:
		s = "r"
	case nchess.Bishop:
		s = "b"
	case nchess.Knight:
		s = "n"
	case nchess.Pawn:
		s = "p"
	default:
		return ""
	}
	if pc.Color() == nchess.White {
		return strings.ToUpper(s)
	}
	return s
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
