package chess

import (
	"fmt"

	"github.com/park285/cheese-coach/internal/chess/uci"
	"github.com/park285/cheese-coach/internal/domain"
)

func limitsFromBudget(b domain.Budget) (uci.Limits, error) {
	if err := b.Validate(); err != nil {
		return uci.Limits{}, err
	}
	l := uci.Limits{
		Depth:          b.Depth,
		MoveTimeMillis: int(b.MoveTime.Milliseconds()),
	}
	if l.Depth == 0 && l.MoveTimeMillis == 0 {
		return uci.Limits{}, fmt.Errorf("budget %s does not define search limits", b.Key())
	}
	return l, nil
}

func (e *Engine) optionsFromBudget(b domain.Budget) uci.Options {
	return uci.Options{
		Threads: e.threads,
		HashMB:  e.hashMB,
		MultiPV: b.LineCount(),
	}
}
