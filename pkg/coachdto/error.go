package coachdto

import (
	"context"
	"errors"

	"github.com/park285/cheese-coach/internal/analysis"
)

const (
	CodeInvalidInput         = "invalid_input"
	CodeCanceled             = "canceled"
	CodeEvaluatorUnavailable = "evaluator_unavailable"
	CodeInternal             = "internal"
)

type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "coach error"
}

// FromError maps pipeline errors to a DomainError; nil stays nil.
func FromError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de DomainError
	if errors.As(err, &de) {
		return &de
	}
	switch {
	case errors.Is(err, analysis.ErrInvalidInput):
		return &DomainError{Code: CodeInvalidInput, Message: err.Error()}
	case errors.Is(err, analysis.ErrEvaluatorTimeout),
		errors.Is(err, analysis.ErrEvaluatorUnavailable),
		errors.Is(err, analysis.ErrEvaluatorProtocol):
		return &DomainError{Code: CodeEvaluatorUnavailable, Message: err.Error(), Retryable: true}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &DomainError{Code: CodeCanceled, Message: err.Error()}
	default:
		return &DomainError{Code: CodeInternal, Message: "internal error"}
	}
}
