package chess

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/cheese-coach/internal/domain"
)

// AnalysisPreset names a search budget.
type AnalysisPreset struct {
	Name           string
	DepthCap       int
	MoveTimeMillis int
	Lines          int
}

var presetMu sync.RWMutex

var DefaultPresets = map[string]AnalysisPreset{
	"quick": {
		Name:           "quick",
		DepthCap:       12,
		MoveTimeMillis: 500,
		Lines:          1,
	},
	"standard": {
		Name:           "standard",
		DepthCap:       18,
		MoveTimeMillis: 2000,
		Lines:          1,
	},
	"deep": {
		Name:           "deep",
		DepthCap:       24,
		MoveTimeMillis: 5000,
		Lines:          1,
	},
}

func GetPreset(name string) (AnalysisPreset, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "default":
		name = "standard"
	case "fast":
		name = "quick"
	}
	presetMu.RLock()
	p, ok := DefaultPresets[name]
	presetMu.RUnlock()
	if ok {
		return p, nil
	}
	return AnalysisPreset{}, fmt.Errorf("unknown analysis preset: %s", name)
}

// SetPreset registers or replaces a preset after validating it.
func SetPreset(p AnalysisPreset) error {
	if err := ValidatePreset(p); err != nil {
		return err
	}
	presetMu.Lock()
	DefaultPresets[p.Name] = p
	presetMu.Unlock()
	return nil
}

func PresetNames() []string {
	presetMu.RLock()
	names := make([]string, 0, len(DefaultPresets))
	for name := range DefaultPresets {
		names = append(names, name)
	}
	presetMu.RUnlock()
	sort.Strings(names)
	return names
}

func ValidatePreset(p AnalysisPreset) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("preset name required")
	case p.DepthCap < 0:
		return fmt.Errorf("depth cap must be >= 0: %d", p.DepthCap)
	case p.MoveTimeMillis < 0:
		return fmt.Errorf("move time must be >= 0: %d", p.MoveTimeMillis)
	case p.DepthCap == 0 && p.MoveTimeMillis == 0:
		return fmt.Errorf("preset %s does not define search limits", p.Name)
	case p.Lines < 1 || p.Lines > 5:
		return fmt.Errorf("lines %d out of range 1-5", p.Lines)
	}
	return nil
}

func (p AnalysisPreset) Budget() domain.Budget {
	return domain.Budget{
		Depth:    p.DepthCap,
		MoveTime: time.Duration(p.MoveTimeMillis) * time.Millisecond,
		Lines:    p.Lines,
	}
}
