package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/park285/cheese-coach/internal/domain"
)

var ErrEmptyInput = errors.New("empty game notation")

var (
	tagPattern       = regexp.MustCompile(`(?m)^\s*\[([A-Za-z0-9_]+)\s+"((?:[^"\\]|\\.)*)"\s*\]`)
	moveNumberPrefix = regexp.MustCompile(`^\d+\.+`)

	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

// Ply is one half-move with the positions on either side of it.
type Ply struct {
	Index      int
	MoveNumber int
	Color      domain.Color
	Move       *nchess.Move
	UCI        string
	SAN        string
	Before     *Position
	After      *Position
}

// Game is a parsed game owned by a single analysis run.
type Game struct {
	game  *nchess.Game
	tags  map[string]string
	plies []Ply
}

// ParseGame reads PGN text, or a whitespace separated list of UCI or SAN
// moves played from the standard starting position. Move numbers, result
// tokens and move annotations are allowed in the list form.
func ParseGame(text string) (*Game, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if strings.HasPrefix(text, "[") || strings.ContainsAny(text, "{(;$") {
		opt, err := nchess.PGN(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("parse pgn: %w", err)
		}
		return newGame(nchess.NewGame(opt), parseTags(text))
	}
	return ParseMoves("", strings.Fields(text))
}

// ParseMoves plays moves from fen, or from the starting position when fen is empty.
func ParseMoves(fen string, moves []string) (*Game, error) {
	game := nchess.NewGame()
	if strings.TrimSpace(fen) != "" {
		opt, err := nchess.FEN(fen)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
		}
		game = nchess.NewGame(opt)
	}
	played := 0
	for _, token := range moves {
		token = moveNumberPrefix.ReplaceAllString(strings.TrimSpace(token), "")
		token = strings.TrimRight(token, "!?")
		if token == "" || isResultToken(token) {
			continue
		}
		mv, err := newPosition(game.Position()).DecodeMove(token)
		if err != nil {
			return nil, err
		}
		if err := game.Move(mv, nil); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrIllegalMove, token, err)
		}
		played++
	}
	if played == 0 && strings.TrimSpace(fen) == "" {
		return nil, ErrEmptyInput
	}
	return newGame(game, nil)
}

func newGame(game *nchess.Game, tags map[string]string) (*Game, error) {
	if tags == nil {
		tags = map[string]string{}
	}
	positions := game.Positions()
	moves := game.Moves()
	if len(positions) < len(moves)+1 {
		return nil, fmt.Errorf("inconsistent game history: %d positions for %d moves", len(positions), len(moves))
	}

	g := &Game{game: game, tags: tags, plies: make([]Ply, 0, len(moves))}
	if len(moves) == 0 {
		return g, nil
	}

	snapshots := make([]*Position, len(moves)+1)
	for i := range snapshots {
		snapshots[i] = newPosition(positions[i])
	}
	start := snapshots[0]
	offset := 0
	if start.Turn() == nchess.Black {
		offset = 1
	}
	firstNumber := start.FullMoveNumber()

	for i, mv := range moves {
		before := snapshots[i]
		color := domain.White
		if before.Turn() == nchess.Black {
			color = domain.Black
		}
		g.plies = append(g.plies, Ply{
			Index:      i,
			MoveNumber: firstNumber + (i+offset)/2,
			Color:      color,
			Move:       mv,
			UCI:        before.UCI(mv),
			SAN:        before.SAN(mv),
			Before:     before,
			After:      snapshots[i+1],
		})
	}
	return g, nil
}

func (g *Game) Plies() []Ply { return g.plies }

func (g *Game) Tag(name string) string { return g.tags[name] }

// Opening returns the opening name and ECO code, preferring PGN tags over the ECO book.
func (g *Game) Opening() (string, string) {
	if name := strings.TrimSpace(g.tags["Opening"]); name != "" {
		return name, strings.TrimSpace(g.tags["ECO"])
	}
	if len(g.plies) == 0 {
		return "Unknown", ""
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if eco := ecoBook.Find(g.game.Moves()); eco != nil {
		return eco.Title(), eco.Code()
	}
	return "Unknown", ""
}

// Result returns the PGN result token, falling back to the played outcome.
func (g *Game) Result() string {
	if r := strings.TrimSpace(g.tags["Result"]); r != "" {
		return r
	}
	switch g.game.Outcome() {
	case nchess.WhiteWon:
		return "1-0"
	case nchess.BlackWon:
		return "0-1"
	case nchess.Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}

func (g *Game) Termination() string {
	if g.game.Outcome() == nchess.NoOutcome {
		return ""
	}
	return strings.ToLower(g.game.Method().String())
}

func parseTags(text string) map[string]string {
	tags := make(map[string]string)
	for _, m := range tagPattern.FindAllStringSubmatch(text, -1) {
		tags[m[1]] = strings.ReplaceAll(m[2], `\"`, `"`)
	}
	return tags
}

func isResultToken(token string) bool {
	switch token {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}
