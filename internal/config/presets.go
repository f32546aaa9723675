package config

import (
	"fmt"
	"strings"
)

// ThinkPreset is a named pair of search budgets. Presets trade latency for
// depth; the bridge itself imposes no ceiling.
type ThinkPreset struct {
	Name         string
	AnalyseMS    int
	EngineMoveMS int
}

var thinkPresets = map[string]ThinkPreset{
	"blitz": {
		Name:         "blitz",
		AnalyseMS:    500,
		EngineMoveMS: 800,
	},
	"standard": {
		Name:         "standard",
		AnalyseMS:    DefaultAnalyseMovetimeMS,
		EngineMoveMS: DefaultEngineMoveMovetimeMS,
	},
	"deep": {
		Name:         "deep",
		AnalyseMS:    6000,
		EngineMoveMS: 8000,
	},
}

// GetThinkPreset resolves a preset by name. "fast" and "slow" are accepted
// aliases for blitz and deep.
func GetThinkPreset(name string) (ThinkPreset, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "fast":
		key = "blitz"
	case "slow":
		key = "deep"
	}
	p, ok := thinkPresets[key]
	if !ok {
		return ThinkPreset{}, fmt.Errorf("unknown think preset: %s", name)
	}
	return p, nil
}

// Apply overwrites the preference think times with the preset's budgets.
func (p ThinkPreset) Apply(prefs *Preferences) {
	if prefs == nil {
		return
	}
	prefs.Think.AnalyseMS = p.AnalyseMS
	prefs.Think.EngineMoveMS = p.EngineMoveMS
}
