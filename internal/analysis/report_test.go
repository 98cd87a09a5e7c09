package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/park285/cheese-coach/internal/domain"
)

type mapRenderer map[string]string

func (m mapRenderer) Render(key string, data any) (string, error) {
	tpl, ok := m[key]
	if !ok {
		return "", fmt.Errorf("template not found: %s", key)
	}
	if c, ok := data.(countData); ok {
		return strings.ReplaceAll(tpl, "{{.Count}}", fmt.Sprint(c.Count)), nil
	}
	return tpl, nil
}

func userMove(number int, color domain.Color, tier domain.Tier, loss int) domain.ClassifiedMove {
	return domain.ClassifiedMove{
		MoveNumber:    number,
		PlayerColor:   color,
		UCI:           "e2e4",
		SAN:           fmt.Sprintf("m%d", number),
		CentipawnLoss: loss,
		Tier:          tier,
		Themes:        []string{},
	}
}

func TestComputeStatistics(t *testing.T) {
	moves := []domain.ClassifiedMove{
		userMove(1, domain.White, domain.TierBest, 0),
		userMove(1, domain.Black, domain.TierBlunder, 500),
		userMove(10, domain.White, domain.TierMistake, 150),
		userMove(20, domain.White, domain.TierGood, 30),
		userMove(45, domain.White, domain.TierBlunder, 400),
	}
	moves[3].IsForcing = true

	stats, buckets := ComputeStatistics(moves, domain.White)
	if stats.UserMoves != 4 || stats.Best != 1 || stats.Good != 1 || stats.Mistake != 1 || stats.Blunder != 1 {
		t.Fatalf("counts = %+v", stats)
	}
	if stats.Accuracy != 50 {
		t.Fatalf("accuracy = %v", stats.Accuracy)
	}
	if stats.OpeningAccuracy != 50 || stats.MiddlegameAccuracy != 100 || stats.EndgameAccuracy != 0 {
		t.Fatalf("phase accuracy = %v %v %v", stats.OpeningAccuracy, stats.MiddlegameAccuracy, stats.EndgameAccuracy)
	}
	if stats.AvgCentipawnLoss != 145 {
		t.Fatalf("avg loss = %v", stats.AvgCentipawnLoss)
	}
	if stats.ForcingMoves != 1 {
		t.Fatalf("forcing = %d", stats.ForcingMoves)
	}
	if len(buckets[domain.PhaseOpening]) != 2 || len(buckets[domain.PhaseMiddlegame]) != 1 || len(buckets[domain.PhaseEndgame]) != 1 {
		t.Fatalf("buckets = %d/%d/%d", len(buckets[domain.PhaseOpening]), len(buckets[domain.PhaseMiddlegame]), len(buckets[domain.PhaseEndgame]))
	}
}

func TestComputeStatistics_NoUserMoves(t *testing.T) {
	stats, _ := ComputeStatistics([]domain.ClassifiedMove{userMove(1, domain.White, domain.TierBest, 0)}, domain.Black)
	if stats.UserMoves != 0 || stats.Accuracy != 0 || stats.OpeningAccuracy != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestAccuracy_Rounding(t *testing.T) {
	moves := []domain.ClassifiedMove{
		userMove(1, domain.White, domain.TierBest, 0),
		userMove(2, domain.White, domain.TierBrilliant, -60),
		userMove(3, domain.White, domain.TierInaccuracy, 60),
	}
	if got := Accuracy(moves); got != 66.7 {
		t.Fatalf("accuracy = %v", got)
	}
}

func TestPhaseBounds(t *testing.T) {
	cases := []struct {
		bounds PhaseBounds
		n      int
		want   domain.Phase
	}{
		{GamePhases, 15, domain.PhaseOpening},
		{GamePhases, 16, domain.PhaseMiddlegame},
		{GamePhases, 40, domain.PhaseMiddlegame},
		{GamePhases, 41, domain.PhaseEndgame},
		{ReportPhases, 10, domain.PhaseOpening},
		{ReportPhases, 31, domain.PhaseEndgame},
	}
	for _, c := range cases {
		if got := c.bounds.PhaseOf(c.n); got != c.want {
			t.Errorf("PhaseOf(%d) = %s, want %s", c.n, got, c.want)
		}
	}
}

func TestFindCriticalMoments(t *testing.T) {
	moves := []domain.ClassifiedMove{
		userMove(1, domain.White, domain.TierBlunder, 350),
		userMove(1, domain.Black, domain.TierBlunder, 900),
		userMove(2, domain.White, domain.TierBrilliant, -250),
		userMove(2, domain.Black, domain.TierBest, 0),
		userMove(3, domain.White, domain.TierBest, 200),
	}
	moves[0].EvalBefore = 5
	moves[0].BestMove = "d2d4"
	text := mapRenderer{"moment.blunder": "Critical blunder"}

	got := FindCriticalMoments(moves, domain.White, text)
	if len(got) != 2 {
		t.Fatalf("moments = %+v", got)
	}
	if got[0].Kind != domain.MomentBlunder || got[0].Magnitude != 350 || got[0].BestMove != "d2d4" || got[0].Description != "Critical blunder" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Kind != domain.MomentBrilliancy || got[1].Magnitude != -250 || got[1].Description != "moment.brilliancy" {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestFindCriticalMoments_MissedWin(t *testing.T) {
	opener := userMove(1, domain.Black, domain.TierBest, 0)
	blunder := userMove(2, domain.White, domain.TierBlunder, 350)
	blunder.EvalBefore = 3.5
	slip := userMove(3, domain.White, domain.TierMistake, 150)
	slip.EvalBefore = 3.0

	got := FindCriticalMoments([]domain.ClassifiedMove{opener, blunder, slip}, domain.White, nil)
	if len(got) != 2 {
		t.Fatalf("moments = %+v", got)
	}
	if got[0].Kind != domain.MomentBlunder || got[1].Kind != domain.MomentMissedWin || got[1].MoveNumber != 2 {
		t.Fatalf("moments = %+v", got)
	}

	// black sees a white-relative -4.00 as winning
	black := userMove(5, domain.Black, domain.TierMistake, 150)
	black.EvalBefore = -4
	got = FindCriticalMoments([]domain.ClassifiedMove{opener, black}, domain.Black, nil)
	if len(got) != 1 || got[0].Kind != domain.MomentMissedWin {
		t.Fatalf("black moments = %+v", got)
	}

	// never on the first move of the list
	got = FindCriticalMoments([]domain.ClassifiedMove{slip}, domain.White, nil)
	if len(got) != 0 {
		t.Fatalf("first move moments = %+v", got)
	}
}

func TestFindCriticalMoments_CappedInGameOrder(t *testing.T) {
	var moves []domain.ClassifiedMove
	for i := 1; i <= 10; i++ {
		moves = append(moves, userMove(i, domain.White, domain.TierBlunder, 200+i*10))
	}
	got := FindCriticalMoments(moves, domain.White, nil)
	if len(got) != 5 {
		t.Fatalf("len = %d", len(got))
	}
	for i, m := range got {
		if m.MoveNumber != i+1 {
			t.Fatalf("moment %d is move %d", i, m.MoveNumber)
		}
	}
}

func TestGenerateInsights(t *testing.T) {
	text := mapRenderer{
		"insight.opening_preparation.area":        "Opening Preparation",
		"insight.opening_preparation.description": "{{.Count}} significant errors in opening phase",
		"insight.tactical_awareness.area":         "Tactical Awareness",
		"insight.endgame_technique.area":          "Endgame Technique",
	}
	var moves []domain.ClassifiedMove
	for i := 1; i <= 3; i++ {
		moves = append(moves, userMove(i, domain.White, domain.TierBlunder, 400))
	}
	moves = append(moves, userMove(50, domain.White, domain.TierMistake, 150))

	stats, buckets := ComputeStatistics(moves, domain.White)
	in := GenerateInsights(stats, buckets, moves, DefaultInsightRules(), text)

	if len(in.Weaknesses) != 3 {
		t.Fatalf("weaknesses = %+v", in.Weaknesses)
	}
	if in.Weaknesses[0].Area != "Opening Preparation" || in.Weaknesses[0].Severity != "high" ||
		in.Weaknesses[0].Description != "3 significant errors in opening phase" {
		t.Fatalf("opening weakness = %+v", in.Weaknesses[0])
	}
	if in.Weaknesses[1].Area != "Tactical Awareness" || in.Weaknesses[2].Area != "Endgame Technique" || in.Weaknesses[2].Severity != "medium" {
		t.Fatalf("weaknesses = %+v", in.Weaknesses)
	}
	if len(in.Recommendations) != 3 || in.Recommendations[1].Priority != "urgent" {
		t.Fatalf("recommendations = %+v", in.Recommendations)
	}
	if len(in.Strengths) != 0 {
		t.Fatalf("strengths = %+v", in.Strengths)
	}
}

func TestGenerateInsights_Strengths(t *testing.T) {
	var moves []domain.ClassifiedMove
	for i := 1; i <= 10; i++ {
		m := userMove(i, domain.White, domain.TierBest, 0)
		m.IsForcing = i%2 == 0
		moves = append(moves, m)
	}
	stats, buckets := ComputeStatistics(moves, domain.White)
	in := GenerateInsights(stats, buckets, moves, DefaultInsightRules(), nil)

	want := []string{
		"insight.opening_knowledge.area",
		"insight.overall_accuracy.area",
		"insight.aggressive_play.area",
	}
	if len(in.Strengths) != len(want) {
		t.Fatalf("strengths = %+v", in.Strengths)
	}
	for i, w := range want {
		if in.Strengths[i].Area != w {
			t.Fatalf("strength %d = %q, want %q", i, in.Strengths[i].Area, w)
		}
	}
	if len(in.Weaknesses) != 0 || len(in.Recommendations) != 0 {
		t.Fatalf("unexpected weaknesses: %+v", in)
	}
}

func TestGenerateWeaknessReport_BlunderBoundary(t *testing.T) {
	history := func(blunders int) []domain.ClassifiedMove {
		var out []domain.ClassifiedMove
		for i := 0; i < blunders; i++ {
			out = append(out, userMove(20, domain.White, domain.TierBlunder, 50))
		}
		for i := 0; i < 30; i++ {
			out = append(out, userMove(20, domain.White, domain.TierBest, 0))
		}
		return out
	}
	text := mapRenderer{"weakness.tactical_awareness.description": "{{.Count}} blunders in recent games. Focus on calculating forcing moves."}

	if got := GenerateWeaknessReport(history(5), DefaultWeaknessRules(), text); len(got) != 0 {
		t.Fatalf("5 blunders reported: %+v", got)
	}
	got := GenerateWeaknessReport(history(6), DefaultWeaknessRules(), text)
	if len(got) != 1 || got[0].Type != WeaknessTactical || got[0].Severity != "high" {
		t.Fatalf("6 blunders = %+v", got)
	}
	if !strings.HasPrefix(got[0].Description, "6 blunders") {
		t.Fatalf("description = %q", got[0].Description)
	}
}

func TestGenerateWeaknessReport_Phases(t *testing.T) {
	var history []domain.ClassifiedMove
	// opening: 2 of 5 are errors
	for i := 0; i < 5; i++ {
		tier := domain.TierBest
		if i < 2 {
			tier = domain.TierMistake
		}
		history = append(history, userMove(5, domain.White, tier, 0))
	}
	// endgame: 2 of 4 are errors, large losses
	for i := 0; i < 4; i++ {
		tier, loss := domain.TierBest, 0
		if i < 2 {
			tier, loss = domain.TierMistake, 500
		}
		history = append(history, userMove(35, domain.White, tier, loss))
	}

	got := GenerateWeaknessReport(history, DefaultWeaknessRules(), nil)
	types := make([]string, 0, len(got))
	for _, w := range got {
		types = append(types, w.Type)
	}
	want := []string{WeaknessOpening, WeaknessEndgame, WeaknessPositional}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("types = %v, want %v", types, want)
	}
}

func TestGenerateWeaknessReport_Window(t *testing.T) {
	var history []domain.ClassifiedMove
	for i := 0; i < 200; i++ {
		history = append(history, userMove(20, domain.White, domain.TierBest, 0))
	}
	for i := 0; i < 10; i++ {
		history = append(history, userMove(20, domain.White, domain.TierBlunder, 0))
	}
	if got := GenerateWeaknessReport(history, DefaultWeaknessRules(), nil); len(got) != 0 {
		t.Fatalf("records beyond the window were counted: %+v", got)
	}
	if got := GenerateWeaknessReport(nil, DefaultWeaknessRules(), nil); got == nil || len(got) != 0 {
		t.Fatalf("empty history = %#v", got)
	}
}
