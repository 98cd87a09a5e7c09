package analysis

import "github.com/park285/cheese-coach/internal/domain"

const (
	WeaknessTactical   = "tactical_awareness"
	WeaknessOpening    = "opening_knowledge"
	WeaknessEndgame    = "endgame_technique"
	WeaknessPositional = "positional_play"
)

// WeaknessRules parameterizes the cross-game weakness report.
type WeaknessRules struct {
	Window               int
	Phases               PhaseBounds
	BlunderLimit         int
	OpeningErrorRatio    float64
	EndgameAccuracyFloor float64
	MeanLossLimit        float64
}

func DefaultWeaknessRules() WeaknessRules {
	return WeaknessRules{
		Window:               200,
		Phases:               ReportPhases,
		BlunderLimit:         5,
		OpeningErrorRatio:    0.3,
		EndgameAccuracyFloor: 0.7,
		MeanLossLimit:        100,
	}
}

// GenerateWeaknessReport evaluates stored moves, most recent first. Only the
// first Window records are considered.
func GenerateWeaknessReport(history []domain.ClassifiedMove, r WeaknessRules, text TextRenderer) []domain.WeaknessEntry {
	if r.Window > 0 && len(history) > r.Window {
		history = history[:r.Window]
	}
	out := make([]domain.WeaknessEntry, 0, 4)
	if len(history) == 0 {
		return out
	}
	all := summarize(history)
	buckets := Partition(history, r.Phases)

	if blunders := all.tiers[domain.TierBlunder]; blunders > r.BlunderLimit {
		out = append(out, weakness(text, WeaknessTactical, "high", countData{Count: blunders}))
	}
	if opening := summarize(buckets[domain.PhaseOpening]); opening.errorRate() > r.OpeningErrorRatio {
		out = append(out, weakness(text, WeaknessOpening, "medium", nil))
	}
	if endgame := summarize(buckets[domain.PhaseEndgame]); endgame.n > 0 && 1-endgame.errorRate() < r.EndgameAccuracyFloor {
		out = append(out, weakness(text, WeaknessEndgame, "medium", nil))
	}
	if all.meanAbsLoss() > r.MeanLossLimit {
		out = append(out, weakness(text, WeaknessPositional, "medium", nil))
	}
	return out
}

func weakness(text TextRenderer, kind, severity string, data any) domain.WeaknessEntry {
	return domain.WeaknessEntry{
		Type:           kind,
		Severity:       severity,
		Description:    render(text, "weakness."+kind+".description", data),
		Recommendation: render(text, "weakness."+kind+".recommendation", nil),
	}
}
