// Package analysis turns a played game, or a single position, into a graded
// report: per-move classification, tactical themes, phase statistics,
// critical moments and coaching insights.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-coach/internal/chess/rules"
	"github.com/park285/cheese-coach/internal/domain"
)

// Store persists finished analyses and serves a user's recent moves, newest first.
type Store interface {
	SaveGameAnalysis(ctx context.Context, userID string, a *domain.GameAnalysis) (int64, error)
	FetchRecentMoves(ctx context.Context, userID string, limit int) ([]domain.ClassifiedMove, error)
}

// ReportCache stores finished analyses by fingerprint. A miss returns nil, nil.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.GameAnalysis, error)
	Put(ctx context.Context, key string, a *domain.GameAnalysis) error
}

type Config struct {
	Budget   domain.Budget
	Insights InsightRules
	Weakness WeaknessRules
}

func DefaultConfig() Config {
	return Config{
		Budget:   domain.Budget{Depth: 18, MoveTime: 2 * time.Second, Lines: 1},
		Insights: DefaultInsightRules(),
		Weakness: DefaultWeaknessRules(),
	}
}

type Option func(*Analyzer)

func WithStore(s Store) Option { return func(a *Analyzer) { a.store = s } }

func WithReportCache(c ReportCache) Option { return func(a *Analyzer) { a.reports = c } }

func WithCatalog(t TextRenderer) Option { return func(a *Analyzer) { a.text = t } }

// Analyzer is the single entry point of the pipeline. It is safe for
// concurrent use; every call owns its own game state and evaluation memo.
type Analyzer struct {
	evaluator Evaluator
	cfg       Config
	logger    *zap.Logger
	store     Store
	reports   ReportCache
	text      TextRenderer
	now       func() time.Time
}

func NewAnalyzer(ev Evaluator, cfg Config, logger *zap.Logger, opts ...Option) (*Analyzer, error) {
	if ev == nil {
		return nil, errors.New("evaluator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Budget.Validate(); err != nil {
		return nil, fmt.Errorf("default budget: %w", err)
	}
	a := &Analyzer{evaluator: ev, cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type GameRequest struct {
	// Notation is PGN text or a whitespace separated UCI/SAN move list.
	Notation string
	// StartFEN, when set, is the position Notation's bare move list starts from.
	StartFEN  string
	UserColor domain.Color
	// Budget overrides the analyzer default when non-zero.
	Budget domain.Budget
	// UserID enables persistence when a Store is configured.
	UserID string
}

// AnalyzeGame classifies every ply of the game and builds the report for UserColor.
// Malformed input fails with ErrInvalidInput before any evaluator call.
// Evaluator failures never fail the analysis; affected positions score zero
// and the result is marked degraded.
func (a *Analyzer) AnalyzeGame(ctx context.Context, req GameRequest) (*domain.GameAnalysis, error) {
	color := req.UserColor
	if color == "" {
		color = domain.White
	}
	color, err := domain.ParseColor(string(color))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	budget, err := a.budget(req.Budget)
	if err != nil {
		return nil, err
	}
	game, err := parseRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	key := Fingerprint(req.Notation, req.StartFEN, color, budget)
	if cached := a.cachedReport(ctx, key); cached != nil {
		return cached, nil
	}

	started := a.now()
	run := newEvalRun(a.evaluator, budget, a.logger)
	plies := game.Plies()
	moves := make([]domain.ClassifiedMove, 0, len(plies))
	for _, ply := range plies {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis canceled at ply %d: %w", ply.Index, err)
		}
		moves = append(moves, a.classifyPly(ctx, run, ply))
	}

	stats, buckets := ComputeStatistics(moves, color)
	opening, eco := game.Opening()
	result := &domain.GameAnalysis{
		ID:              uuid.NewString(),
		UserColor:       color,
		Budget:          budget,
		Moves:           moves,
		Statistics:      stats,
		CriticalMoments: FindCriticalMoments(moves, color, a.text),
		Insights:        GenerateInsights(stats, buckets, moves, a.cfg.Insights, a.text),
		Metadata: domain.GameMetadata{
			Opening:     opening,
			ECO:         eco,
			Result:      game.Result(),
			Termination: game.Termination(),
		},
		Degraded:   run.degraded,
		AnalyzedAt: a.now().UTC(),
	}

	a.logger.Info("game analyzed",
		zap.String("analysis_id", result.ID),
		zap.Int("plies", len(moves)),
		zap.Int("evaluator_calls", run.calls),
		zap.Float64("accuracy", stats.Accuracy),
		zap.Bool("degraded", result.Degraded),
		zap.Duration("elapsed", a.now().Sub(started)),
	)

	a.persist(ctx, req.UserID, result)
	if !result.Degraded {
		a.storeReport(ctx, key, result)
	}
	return result, nil
}

func (a *Analyzer) classifyPly(ctx context.Context, run *evalRun, ply rules.Ply) domain.ClassifiedMove {
	before, degradedBefore := run.evaluate(ctx, ply.Before)
	after, degradedAfter := run.evaluate(ctx, ply.After)

	evalBefore := whitePawns(before, ply.Before)
	evalAfter := whitePawns(after, ply.After)
	best := before.BestMove()
	isBest := best != "" && strings.EqualFold(best, ply.UCI)

	c := Classify(evalBefore, evalAfter, isBest, ply.Color)
	facts := AnalyzeMove(ply.Before, ply.After, ply.Move)

	return domain.ClassifiedMove{
		Ply:           ply.Index,
		MoveNumber:    ply.MoveNumber,
		PlayerColor:   ply.Color,
		UCI:           ply.UCI,
		SAN:           ply.SAN,
		FENBefore:     ply.Before.FEN(),
		FENAfter:      ply.After.FEN(),
		EvalBefore:    evalBefore,
		EvalAfter:     evalAfter,
		BestMove:      best,
		CentipawnLoss: c.CentipawnLoss,
		Tier:          c.Tier,
		Symbol:        c.Symbol,
		Themes:        facts.Themes,
		IsForcing:     facts.IsForcing,
		Impact:        facts.Impact,
		Degraded:      degradedBefore || degradedAfter,
	}
}

// AnalyzePosition evaluates a single position and annotates it with threats,
// the themes of the best move, and a position type.
func (a *Analyzer) AnalyzePosition(ctx context.Context, fen string, budget domain.Budget) (*domain.PositionAnalysis, error) {
	pos, err := rules.ParseFEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	b, err := a.budget(budget)
	if err != nil {
		return nil, err
	}

	run := newEvalRun(a.evaluator, b, a.logger)
	ev, degraded := run.evaluate(ctx, pos)

	out := &domain.PositionAnalysis{
		FEN:          pos.FEN(),
		Evaluation:   ev,
		Score:        ev.Pawns(),
		Threats:      DetectThreats(pos),
		Motifs:       []string{},
		PositionType: PositionType(pos),
		Degraded:     degraded,
	}
	if best := ev.BestMove(); best != "" {
		mv, next, err := pos.Play(best)
		if err != nil {
			a.logger.Warn("evaluator best move is not playable",
				zap.String("fen", out.FEN),
				zap.String("move", best),
				zap.Error(err),
			)
		} else {
			out.BestMove = pos.UCI(mv)
			out.BestMoveSAN = pos.SAN(mv)
			out.Motifs = PositionMotifs(pos, next, mv)
		}
	}
	return out, nil
}

// GenerateWeaknessReport runs the cross-game rules over history, most recent first.
func (a *Analyzer) GenerateWeaknessReport(history []domain.ClassifiedMove) []domain.WeaknessEntry {
	return GenerateWeaknessReport(history, a.cfg.Weakness, a.text)
}

// WeaknessReportForUser reads the user's recent moves from the Store and reports on them.
func (a *Analyzer) WeaknessReportForUser(ctx context.Context, userID string) ([]domain.WeaknessEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if a.store == nil {
		return nil, errors.New("no store configured")
	}
	history, err := a.store.FetchRecentMoves(ctx, userID, a.cfg.Weakness.Window)
	if err != nil {
		return nil, fmt.Errorf("fetch recent moves: %w", err)
	}
	return a.GenerateWeaknessReport(history), nil
}

// Fingerprint identifies a game request for report caching.
func Fingerprint(notation, startFEN string, color domain.Color, budget domain.Budget) string {
	h := sha256.New()
	for _, part := range []string{strings.TrimSpace(notation), strings.TrimSpace(startFEN), string(color), budget.Key()} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (a *Analyzer) budget(b domain.Budget) (domain.Budget, error) {
	if b == (domain.Budget{}) {
		return a.cfg.Budget, nil
	}
	if err := b.Validate(); err != nil {
		return domain.Budget{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return b, nil
}

func (a *Analyzer) cachedReport(ctx context.Context, key string) *domain.GameAnalysis {
	if a.reports == nil {
		return nil
	}
	cached, err := a.reports.Get(ctx, key)
	if err != nil {
		a.logger.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	if cached != nil {
		a.logger.Debug("report cache hit", zap.String("key", key))
	}
	return cached
}

func (a *Analyzer) storeReport(ctx context.Context, key string, result *domain.GameAnalysis) {
	if a.reports == nil {
		return
	}
	if err := a.reports.Put(ctx, key, result); err != nil {
		a.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (a *Analyzer) persist(ctx context.Context, userID string, result *domain.GameAnalysis) {
	if a.store == nil || strings.TrimSpace(userID) == "" {
		return
	}
	id, err := a.store.SaveGameAnalysis(ctx, userID, result)
	if err != nil {
		a.logger.Warn("save game analysis failed",
			zap.String("analysis_id", result.ID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}
	a.logger.Debug("game analysis saved", zap.Int64("game_id", id), zap.String("user_id", userID))
}

func parseRequest(req GameRequest) (*rules.Game, error) {
	if strings.TrimSpace(req.StartFEN) != "" {
		return rules.ParseMoves(req.StartFEN, strings.Fields(req.Notation))
	}
	return rules.ParseGame(req.Notation)
}

// whitePawns converts a side-to-move evaluation of pos to white's point of view.
func whitePawns(ev domain.Evaluation, pos *rules.Position) float64 {
	p := ev.Pawns()
	if p == 0 {
		return 0
	}
	if pos.Turn() == nchess.Black {
		return -p
	}
	return p
}
