package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/cheese-coach/internal/analysis"
	"github.com/park285/cheese-coach/internal/domain"
)

func TestRender_Defaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("insight.tactical_awareness.description", struct{ Count int }{3})
	if err != nil || got != "3 tactical oversights" {
		t.Fatalf("Render = %q, %v", got, err)
	}
	if got, _ := c.Render("moment.missed_win", nil); got != "Missed winning continuation" {
		t.Fatalf("moment text = %q", got)
	}
	if _, err := c.Render("insight.nope", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
	// a template field without data is an error, not "<no value>"
	if _, err := c.Render("weakness.tactical_awareness.description", map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}

func TestOverrides(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("a.yaml", "moment:\n  blunder: Howler\n")
	write("notes.txt", "ignored")

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("moment.blunder", nil); got != "Howler" {
		t.Fatalf("override = %q", got)
	}
	if got, _ := c.Render("moment.brilliancy", nil); got != "Critical tactical blow" {
		t.Fatalf("default kept = %q", got)
	}

	write("b.yml", "moment:\n  blunder: Again\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("duplicate keys: err = %v", err)
	}

	bad := t.TempDir()
	if err := os.WriteFile(filepath.Join(bad, "x.yaml"), []byte("moment:\n  blunder: 3\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(bad); err == nil {
		t.Fatalf("expected error for non-string leaf")
	}
}

func TestCatalogCoversReports(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stats := domain.GameStatistics{Blunder: 4, Accuracy: 95, EndgameAccuracy: 10}
	user := []domain.ClassifiedMove{
		{MoveNumber: 2, Tier: domain.TierBlunder, IsForcing: true},
		{MoveNumber: 3, Tier: domain.TierBlunder, IsForcing: true},
		{MoveNumber: 45, Tier: domain.TierBlunder},
	}
	buckets := analysis.Partition(user, analysis.GamePhases)
	in := analysis.GenerateInsights(stats, buckets, user, analysis.DefaultInsightRules(), c)
	for _, w := range in.Weaknesses {
		if strings.HasPrefix(w.Area, "insight.") || strings.HasPrefix(w.Description, "insight.") {
			t.Fatalf("unrendered weakness %+v", w)
		}
	}
	for _, r := range in.Recommendations {
		if strings.HasPrefix(r.Title, "insight.") || strings.HasPrefix(r.Description, "insight.") {
			t.Fatalf("unrendered recommendation %+v", r)
		}
	}
	for _, s := range in.Strengths {
		if strings.HasPrefix(s.Area, "insight.") {
			t.Fatalf("unrendered strength %+v", s)
		}
	}

	for _, kind := range []string{analysis.WeaknessTactical, analysis.WeaknessOpening, analysis.WeaknessEndgame, analysis.WeaknessPositional} {
		for _, suffix := range []string{".description", ".recommendation"} {
			if _, err := c.Render("weakness."+kind+suffix, struct{ Count int }{6}); err != nil {
				t.Fatalf("weakness.%s%s: %v", kind, suffix, err)
			}
		}
	}
	for _, kind := range []domain.MomentKind{domain.MomentBlunder, domain.MomentBrilliancy, domain.MomentMissedWin} {
		if _, err := c.Render("moment."+string(kind), nil); err != nil {
			t.Fatalf("moment.%s: %v", kind, err)
		}
	}
}
