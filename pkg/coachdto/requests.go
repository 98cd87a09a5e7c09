package coachdto

import (
	"github.com/park285/cheese-coach/internal/analysis"
	"github.com/park285/cheese-coach/internal/domain"
)

type AnalyzeGameRequest struct {
	PGN       string `json:"pgn"`
	StartFEN  string `json:"start_fen,omitempty"`
	UserColor string `json:"user_color"`
	UserID    string `json:"user_id,omitempty"`
}

// ToGameRequest keeps the colour as given; the analyzer validates it.
func (r AnalyzeGameRequest) ToGameRequest(b domain.Budget) analysis.GameRequest {
	return analysis.GameRequest{
		Notation:  r.PGN,
		StartFEN:  r.StartFEN,
		UserColor: domain.Color(r.UserColor),
		Budget:    b,
		UserID:    r.UserID,
	}
}

type AnalyzePositionRequest struct {
	FEN string `json:"fen"`
}

type WeaknessReportRequest struct {
	UserID string `json:"user_id"`
}

type WeaknessReportResponse struct {
	UserID     string                 `json:"user_id"`
	Weaknesses []domain.WeaknessEntry `json:"weaknesses"`
}

type ErrorResponse struct {
	Error *DomainError `json:"error"`
}
