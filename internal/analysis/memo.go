package analysis

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/cheese-coach/internal/chess/rules"
	"github.com/park285/cheese-coach/internal/domain"
)

type memoEntry struct {
	eval     domain.Evaluation
	degraded bool
}

// evalRun memoizes evaluations for one orchestrator invocation. It is not
// safe for concurrent use; a run evaluates positions one at a time.
type evalRun struct {
	evaluator Evaluator
	budget    domain.Budget
	logger    *zap.Logger
	memo      map[string]memoEntry
	calls     int
	degraded  bool
}

func newEvalRun(ev Evaluator, budget domain.Budget, logger *zap.Logger) *evalRun {
	return &evalRun{
		evaluator: ev,
		budget:    budget,
		logger:    logger,
		memo:      make(map[string]memoEntry),
	}
}

// evaluate returns the side-to-move evaluation of pos and whether it is a
// fallback. Finished positions are scored from the rules alone.
func (r *evalRun) evaluate(ctx context.Context, pos *rules.Position) (domain.Evaluation, bool) {
	if pos.IsCheckmate() {
		ev := zeroEvaluation()
		ev.MateIn = domain.MateIn(0)
		return ev, false
	}
	if pos.IsStalemate() {
		return zeroEvaluation(), false
	}

	fen := pos.FEN()
	key := fen + "|" + r.budget.Key()
	if e, ok := r.memo[key]; ok {
		return e.eval, e.degraded
	}

	ev, err := r.resilient(ctx, fen)
	entry := memoEntry{eval: ev}
	if err != nil {
		r.logger.Warn("evaluator failed, using zero evaluation",
			zap.String("fen", fen),
			zap.String("budget", r.budget.Key()),
			zap.Error(err),
		)
		entry = memoEntry{eval: zeroEvaluation(), degraded: true}
		r.degraded = true
	}
	r.memo[key] = entry
	return entry.eval, entry.degraded
}

// resilient retries a timed out call once at a reduced budget. Other failures are not retried.
func (r *evalRun) resilient(ctx context.Context, fen string) (domain.Evaluation, error) {
	ev, err := r.call(ctx, fen, r.budget)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, ErrEvaluatorTimeout) {
		return domain.Evaluation{}, err
	}
	reduced := r.budget.Reduced()
	r.logger.Info("evaluator timeout, retrying with reduced budget",
		zap.String("fen", fen),
		zap.String("budget", reduced.Key()),
	)
	return r.call(ctx, fen, reduced)
}

// call detaches from the caller's cancellation so an in-flight search is
// never abandoned midway; the orchestrator checks ctx between moves.
func (r *evalRun) call(ctx context.Context, fen string, budget domain.Budget) (domain.Evaluation, error) {
	r.calls++
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callTimeout(budget))
	defer cancel()

	ev, err := r.evaluator.Evaluate(callCtx, EvaluationRequest{FEN: fen, Budget: budget})
	if err != nil {
		return domain.Evaluation{}, mapEvaluatorError(err)
	}
	if ev.Lines == nil {
		ev.Lines = []domain.PrincipalVariation{}
	}
	return ev, nil
}
