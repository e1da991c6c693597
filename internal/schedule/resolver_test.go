package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLoader struct {
	settings map[string]string
	err      error
}

func (s stubLoader) GetScheduleConfig(context.Context) (map[string]string, error) {
	return s.settings, s.err
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "07:30", want: 450},
		{in: " 16:00 ", want: 960},
		{in: "00:00", want: 0},
		{in: "23:59", want: 1439},
		{in: "24:00", wantErr: true},
		{in: "7:5", wantErr: true},
		{in: "0730", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, MustTimeOfDay(got.String()))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		level string
		label string
		want  Bracket
	}{
		{name: "kinder keyword", level: "Kindergarten", label: "", want: Kinder},
		{name: "kinder label", level: "", label: "KG-A", want: Kinder},
		{name: "senior high keyword", level: "Senior High School", label: "", want: SeniorHigh},
		{name: "label grade 11", level: "", label: "Grade 11 - STEM", want: SeniorHigh},
		{name: "label grade 12", level: "High School", label: "12", want: SeniorHigh},
		{name: "junior high 7", level: "Junior High", label: "Grade 7", want: JuniorHigh},
		{name: "junior high 10", level: "", label: "Grade 10", want: JuniorHigh},
		{name: "grade 1", level: "Elementary", label: "Grade 1", want: LowerElementary},
		{name: "grade 3", level: "", label: "3", want: LowerElementary},
		{name: "grade 4", level: "", label: "Grade 4", want: UpperElementary},
		{name: "grade 6", level: "Grade 6", label: "", want: UpperElementary},
		{name: "level number only senior", level: "Grade 11", label: "", want: SeniorHigh},
		{name: "empty", level: "", label: "", want: Default},
		{name: "unknown words", level: "Alumni", label: "n/a", want: Default},
		{name: "out of range", level: "", label: "Grade 13", want: Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.level, tt.label))
		})
	}
}

func TestResolverDefaultsWhenEmpty(t *testing.T) {
	r := NewResolver(zap.NewNop())
	w := r.Resolve("", "")
	assert.Equal(t, "07:30", w.MorningIn.String())
	assert.Equal(t, "16:00", w.AfternoonOut.String())
	assert.Equal(t, DefaultWindow, w)
}

func TestResolverLoadFailureFallsBack(t *testing.T) {
	r := NewResolver(zap.NewNop())
	r.Load(context.Background(), stubLoader{err: errors.New("connection refused")})

	want, _ := BuildTable(nil)
	assert.Equal(t, want, r.Windows())
}

func TestResolverLoadSettings(t *testing.T) {
	r := NewResolver(zap.NewNop())
	r.Load(context.Background(), stubLoader{settings: map[string]string{
		"jhs_in":    "07:00",
		"jhs_out":   "15:30",
		"shs_in":    "nonsense",
		"lunch_end": "12:45",
	}})

	jhs := r.Resolve("Junior High", "Grade 8")
	assert.Equal(t, "07:00", jhs.MorningIn.String())
	assert.Equal(t, "12:00", jhs.MorningOut.String())
	assert.Equal(t, "12:45", jhs.AfternoonIn.String())
	assert.Equal(t, "15:30", jhs.AfternoonOut.String())

	shs := r.Resolve("Senior High", "Grade 12")
	assert.Equal(t, "07:30", shs.MorningIn.String(), "invalid value falls back to default")
}

func TestBuildTableRejectsInvertedWindow(t *testing.T) {
	table, bad := BuildTable(map[string]string{"g1_3_in": "16:00", "g1_3_out": "08:00"})
	assert.Contains(t, bad, "g1_3_out")
	assert.Equal(t, "07:30", table[LowerElementary].MorningIn.String())
	assert.Equal(t, "15:00", table[LowerElementary].AfternoonOut.String())
}

func TestKinderWindowClampsLunch(t *testing.T) {
	table, _ := BuildTable(nil)
	k := table[Kinder]
	assert.Equal(t, "11:30", k.MorningOut.String())
	assert.Equal(t, "11:30", k.AfternoonIn.String())
}

func TestEveryBracketResolves(t *testing.T) {
	table, _ := BuildTable(nil)
	for _, b := range append(Brackets, Default) {
		_, ok := table[b]
		assert.True(t, ok, "bracket %s", b)
	}
}

func TestValidateSettings(t *testing.T) {
	assert.Empty(t, ValidateSettings(map[string]string{"kinder_in": "08:00", "lunch_start": "11:45"}))
	assert.ElementsMatch(t, []string{"kinder_in", "bogus"}, ValidateSettings(map[string]string{"kinder_in": "8am", "bogus": "08:00"}))
}
