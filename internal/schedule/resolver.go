package schedule

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// Bracket is a grade band sharing one schedule window.
type Bracket string

const (
	Kinder          Bracket = "kinder"
	LowerElementary Bracket = "g1_3"
	UpperElementary Bracket = "g4_6"
	JuniorHigh      Bracket = "jhs"
	SeniorHigh      Bracket = "shs"
	Default         Bracket = "default"
)

// Brackets lists every configurable bracket in settings order.
var Brackets = []Bracket{Kinder, LowerElementary, UpperElementary, JuniorHigh, SeniorHigh}

const (
	KeyLunchStart = "lunch_start"
	KeyLunchEnd   = "lunch_end"
)

// InKey and OutKey name a bracket's entries in the settings record.
func (b Bracket) InKey() string  { return string(b) + "_in" }
func (b Bracket) OutKey() string { return string(b) + "_out" }

var defaultSettings = map[string]string{
	"kinder_in": "08:00", "kinder_out": "11:30",
	"g1_3_in": "07:30", "g1_3_out": "15:00",
	"g4_6_in": "07:30", "g4_6_out": "16:00",
	"jhs_in": "07:30", "jhs_out": "16:30",
	"shs_in": "07:30", "shs_out": "17:00",
	KeyLunchStart: "12:00", KeyLunchEnd: "13:00",
}

// DefaultSettings returns a copy of the hard-coded settings record.
func DefaultSettings() map[string]string {
	out := make(map[string]string, len(defaultSettings))
	for k, v := range defaultSettings {
		out[k] = v
	}
	return out
}

// DefaultWindow applies to any grade no rule recognises.
var DefaultWindow = NewWindow(MustTimeOfDay("07:30"), MustTimeOfDay("16:00"), MustTimeOfDay("12:00"), MustTimeOfDay("13:00"))

// SettingsLoader reads the persisted schedule settings record.
// A nil map with a nil error means no record exists.
type SettingsLoader interface {
	GetScheduleConfig(ctx context.Context) (map[string]string, error)
}

type grade struct {
	level string
	label string
	num   int
	hasN  bool
}

type rule struct {
	bracket Bracket
	match   func(g grade) bool
}

func contains(g grade, words ...string) bool {
	for _, w := range words {
		if strings.Contains(g.level, w) || strings.Contains(g.label, w) {
			return true
		}
	}
	return false
}

func between(lo, hi int) func(grade) bool {
	return func(g grade) bool { return g.hasN && g.num >= lo && g.num <= hi }
}

// rules is evaluated top to bottom; the first match wins.
var rules = []rule{
	{Kinder, func(g grade) bool { return contains(g, "kinder", "kg") }},
	{SeniorHigh, func(g grade) bool {
		return contains(g, "senior", "shs") || strings.Contains(g.label, "11") || strings.Contains(g.label, "12")
	}},
	{JuniorHigh, between(7, 10)},
	{LowerElementary, between(1, 3)},
	{UpperElementary, between(4, 6)},
	{SeniorHigh, between(11, 12)},
}

var digits = regexp.MustCompile(`\d+`)

func parseGrade(level, label string) grade {
	g := grade{
		level: strings.ToLower(strings.TrimSpace(level)),
		label: strings.ToLower(strings.TrimSpace(label)),
	}
	for _, s := range []string{g.label, g.level} {
		if m := digits.FindString(s); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				g.num, g.hasN = n, true
				return g
			}
		}
	}
	return g
}

// Classify maps a grade to its bracket. It is total: anything unrecognised is Default.
func Classify(gradeLevel, gradeLabel string) Bracket {
	g := parseGrade(gradeLevel, gradeLabel)
	for _, r := range rules {
		if r.match(g) {
			return r.bracket
		}
	}
	return Default
}

// Table is an immutable bracket → window mapping.
type Table map[Bracket]Window

// Resolver maps grades to schedule windows. The table is swapped atomically so
// lookups never block on reloads.
type Resolver struct {
	table atomic.Pointer[Table]
	log   *zap.Logger
}

// NewResolver starts with the hard-coded defaults.
func NewResolver(log *zap.Logger) *Resolver {
	r := &Resolver{log: log}
	t, _ := BuildTable(nil)
	r.table.Store(&t)
	return r
}

// Load reads the settings record once. Missing or broken settings fall back to
// the defaults and are logged; this never fails.
func (r *Resolver) Load(ctx context.Context, loader SettingsLoader) {
	settings, err := loader.GetScheduleConfig(ctx)
	if err != nil {
		r.log.Warn("schedule settings load failed, using defaults", zap.Error(err))
		settings = nil
	} else if settings == nil {
		r.log.Info("no schedule settings stored, using defaults")
	}
	r.Apply(settings)
}

// Apply replaces the table from a settings record.
func (r *Resolver) Apply(settings map[string]string) {
	t, bad := BuildTable(settings)
	for _, k := range bad {
		r.log.Warn("invalid schedule setting, using default", zap.String("key", k), zap.String("value", settings[k]))
	}
	r.table.Store(&t)
}

// Resolve returns the window for a student's grade.
func (r *Resolver) Resolve(gradeLevel, gradeLabel string) Window {
	t := *r.table.Load()
	if w, ok := t[Classify(gradeLevel, gradeLabel)]; ok {
		return w
	}
	return DefaultWindow
}

// Windows returns the current table.
func (r *Resolver) Windows() Table {
	return *r.table.Load()
}

// BuildTable converts a settings record into windows, falling back per key to
// the hard-coded defaults. It returns the keys that were present but invalid.
func BuildTable(settings map[string]string) (Table, []string) {
	var bad []string
	get := func(key string) TimeOfDay {
		if v, ok := settings[key]; ok {
			if t, err := ParseTimeOfDay(v); err == nil {
				return t
			}
			bad = append(bad, key)
		}
		return MustTimeOfDay(defaultSettings[key])
	}
	lunchStart, lunchEnd := get(KeyLunchStart), get(KeyLunchEnd)
	t := Table{Default: DefaultWindow}
	for _, b := range Brackets {
		in, out := get(b.InKey()), get(b.OutKey())
		if out <= in {
			bad = append(bad, b.OutKey())
			in, out = MustTimeOfDay(defaultSettings[b.InKey()]), MustTimeOfDay(defaultSettings[b.OutKey()])
		}
		t[b] = NewWindow(in, out, lunchStart, lunchEnd)
	}
	return t, bad
}

// ValidateSettings rejects a settings record with any malformed or unknown key.
func ValidateSettings(settings map[string]string) []string {
	var bad []string
	for k, v := range settings {
		if _, known := defaultSettings[k]; !known {
			bad = append(bad, k)
			continue
		}
		if _, err := ParseTimeOfDay(v); err != nil {
			bad = append(bad, k)
		}
	}
	return bad
}
