package analysis

import "github.com/park285/cheese-coach/internal/domain"

// InsightRules holds the thresholds of the per-game coaching rules.
type InsightRules struct {
	OpeningBlunderLimit     int
	OpeningAccuracyStrength float64
	BlunderLimit            int
	EndgameAccuracyFloor    float64
	OverallAccuracyStrength float64
	ForcingShare            float64
}

func DefaultInsightRules() InsightRules {
	return InsightRules{
		OpeningBlunderLimit:     1,
		OpeningAccuracyStrength: 85,
		BlunderLimit:            2,
		EndgameAccuracyFloor:    70,
		OverallAccuracyStrength: 90,
		ForcingShare:            0.3,
	}
}

// GenerateInsights maps one game's statistics to strengths, weaknesses and
// recommendations. buckets holds the user's moves by phase; moves is the full
// move list of both sides, which the forcing-move share is measured over.
func GenerateInsights(stats domain.GameStatistics, buckets Buckets, moves []domain.ClassifiedMove, r InsightRules, text TextRenderer) domain.Insights {
	in := domain.Insights{
		Strengths:       []domain.Strength{},
		Weaknesses:      []domain.Weakness{},
		Recommendations: []domain.Recommendation{},
	}

	if opening := summarize(buckets[domain.PhaseOpening]); opening.n > 0 {
		if blunders := opening.tiers[domain.TierBlunder]; blunders > r.OpeningBlunderLimit {
			in.Weaknesses = append(in.Weaknesses, domain.Weakness{
				Area:        render(text, "insight.opening_preparation.area", nil),
				Severity:    "high",
				Description: render(text, "insight.opening_preparation.description", countData{Count: blunders}),
			})
			in.Recommendations = append(in.Recommendations, recommendation(text, "opening_preparation", "high"))
		} else if stats.OpeningAccuracy > r.OpeningAccuracyStrength {
			in.Strengths = append(in.Strengths, strength(text, "opening_knowledge"))
		}
	}

	if stats.Blunder > r.BlunderLimit {
		in.Weaknesses = append(in.Weaknesses, domain.Weakness{
			Area:        render(text, "insight.tactical_awareness.area", nil),
			Severity:    "high",
			Description: render(text, "insight.tactical_awareness.description", countData{Count: stats.Blunder}),
		})
		in.Recommendations = append(in.Recommendations, recommendation(text, "tactical_awareness", "urgent"))
	}

	if len(buckets[domain.PhaseEndgame]) > 0 && stats.EndgameAccuracy < r.EndgameAccuracyFloor {
		in.Weaknesses = append(in.Weaknesses, domain.Weakness{
			Area:        render(text, "insight.endgame_technique.area", nil),
			Severity:    "medium",
			Description: render(text, "insight.endgame_technique.description", nil),
		})
		in.Recommendations = append(in.Recommendations, recommendation(text, "endgame_technique", "medium"))
	}

	if stats.Accuracy > r.OverallAccuracyStrength {
		in.Strengths = append(in.Strengths, strength(text, "overall_accuracy"))
	}

	if all := summarize(moves); all.n > 0 && float64(all.forcing) > float64(all.n)*r.ForcingShare {
		in.Strengths = append(in.Strengths, strength(text, "aggressive_play"))
	}
	return in
}

func strength(text TextRenderer, name string) domain.Strength {
	return domain.Strength{
		Area:        render(text, "insight."+name+".area", nil),
		Description: render(text, "insight."+name+".description", nil),
	}
}

func recommendation(text TextRenderer, name, priority string) domain.Recommendation {
	return domain.Recommendation{
		Title:       render(text, "insight."+name+".recommendation.title", nil),
		Priority:    priority,
		Description: render(text, "insight."+name+".recommendation.description", nil),
	}
}
