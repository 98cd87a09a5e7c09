package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/park285/cheese-coach/internal/domain"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrEvaluatorTimeout     = errors.New("evaluator timeout")
	ErrEvaluatorUnavailable = errors.New("evaluator unavailable")
	ErrEvaluatorProtocol    = errors.New("evaluator protocol error")
)

type EvaluationRequest struct {
	FEN    string
	Budget domain.Budget
}

// Evaluator scores a position relative to its side to move. Implementations
// wrap failures in ErrEvaluatorTimeout, ErrEvaluatorUnavailable or
// ErrEvaluatorProtocol.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (domain.Evaluation, error)
}

// mapEvaluatorError folds any evaluator failure into one of the three evaluator sentinels.
func mapEvaluatorError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEvaluatorTimeout),
		errors.Is(err, ErrEvaluatorUnavailable),
		errors.Is(err, ErrEvaluatorProtocol):
		return err
	case errors.Is(err, context.DeadlineExceeded), timeoutMessage(err):
		return errors.Join(ErrEvaluatorTimeout, err)
	default:
		return errors.Join(ErrEvaluatorUnavailable, err)
	}
}

func timeoutMessage(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// callTimeout bounds one evaluator call from the outside; evaluators apply their own limits first.
func callTimeout(b domain.Budget) time.Duration {
	base := time.Duration(b.Depth) * 200 * time.Millisecond
	if base < 3*time.Second {
		base = 3 * time.Second
	}
	if base > 15*time.Second {
		base = 15 * time.Second
	}
	return base + b.MoveTime*2 + 2*time.Second
}

func zeroEvaluation() domain.Evaluation {
	return domain.Evaluation{Lines: []domain.PrincipalVariation{}}
}
