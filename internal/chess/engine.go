package chess

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-coach/internal/analysis"
	"github.com/park285/cheese-coach/internal/chess/uci"
	"github.com/park285/cheese-coach/internal/domain"
)

const (
	defaultThreads = 1
	defaultHashMB  = 128
)

type EngineConfig struct {
	BinaryPath string
	Args       []string
	// PoolSize is the session count per option bucket; zero picks one from the CPU count.
	PoolSize int
	Threads  int
	HashMB   int
	Logger   *zap.Logger
}

// Engine evaluates positions with pooled UCI engine processes.
type Engine struct {
	pool    *uci.Pool
	threads int
	hashMB  int
	logger  *zap.Logger
}

var _ analysis.Evaluator = (*Engine)(nil)

func NewEngine(cfg EngineConfig) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath:        cfg.BinaryPath,
		Args:              cfg.Args,
		PerBucketCapacity: cfg.PoolSize,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	e := &Engine{
		pool:    pool,
		threads: cfg.Threads,
		hashMB:  cfg.HashMB,
		logger:  logger,
	}
	if e.threads <= 0 {
		e.threads = defaultThreads
	}
	if e.hashMB <= 0 {
		e.hashMB = defaultHashMB
	}
	return e, nil
}

func (e *Engine) Evaluate(ctx context.Context, req analysis.EvaluationRequest) (domain.Evaluation, error) {
	limits, err := limitsFromBudget(req.Budget)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("%w: %v", analysis.ErrInvalidInput, err)
	}

	session, err := e.pool.Acquire(ctx, e.optionsFromBudget(req.Budget))
	if err != nil {
		return domain.Evaluation{}, mapSearchError(fmt.Errorf("acquire engine: %w", err))
	}

	start := time.Now()
	resp, err := session.Search(ctx, uci.SearchRequest{FEN: req.FEN, Limits: limits})
	if err == nil && len(resp.Lines) == 0 {
		err = fmt.Errorf("%w: search returned no scored lines", uci.ErrProtocol)
	}
	e.pool.Release(session, releaseError(err))
	if err != nil {
		e.logger.Debug("engine search failed",
			zap.String("fen", req.FEN),
			zap.String("budget", req.Budget.Key()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return domain.Evaluation{}, mapSearchError(err)
	}

	return toEvaluation(resp), nil
}

func (e *Engine) Close() error {
	if e.pool == nil {
		return nil
	}
	return e.pool.Close()
}

// releaseError keeps sessions whose search was stopped cleanly or produced
// unparsable output; the session marks itself broken otherwise.
func releaseError(err error) error {
	if errors.Is(err, uci.ErrSearchTimeout) || errors.Is(err, uci.ErrProtocol) {
		return nil
	}
	return err
}

func mapSearchError(err error) error {
	switch {
	case errors.Is(err, uci.ErrSearchTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return errors.Join(analysis.ErrEvaluatorTimeout, err)
	case errors.Is(err, uci.ErrProtocol):
		return errors.Join(analysis.ErrEvaluatorProtocol, err)
	default:
		return errors.Join(analysis.ErrEvaluatorUnavailable, err)
	}
}

func toEvaluation(resp uci.SearchResponse) domain.Evaluation {
	lines := make([]domain.PrincipalVariation, 0, len(resp.Lines))
	for _, l := range resp.Lines {
		moves := l.Principal
		if len(moves) > domain.MaxPrincipalMoves {
			moves = moves[:domain.MaxPrincipalMoves]
		}
		pv := domain.PrincipalVariation{
			Centipawns: l.ScoreCP,
			Depth:      l.Depth,
			Moves:      append([]string(nil), moves...),
		}
		if len(moves) > 0 {
			pv.FirstMove = moves[0]
		}
		if l.Mate != nil {
			pv.MateIn = domain.MateIn(*l.Mate)
		}
		lines = append(lines, pv)
	}

	top := lines[0]
	if top.FirstMove == "" && resp.BestMove != "" {
		lines[0].FirstMove = resp.BestMove
		top.FirstMove = resp.BestMove
	}
	return domain.Evaluation{
		Centipawns: top.Centipawns,
		MateIn:     top.MateIn,
		Depth:      top.Depth,
		Lines:      lines,
	}
}
