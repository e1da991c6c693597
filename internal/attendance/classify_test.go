package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gateattend/internal/model"
	"gateattend/internal/schedule"
)

func tod(s string) schedule.TimeOfDay { return schedule.MustTimeOfDay(s) }

var window = schedule.NewWindow(tod("07:30"), tod("16:00"), tod("12:00"), tod("13:00"))

func TestClassify(t *testing.T) {
	tests := []struct {
		name            string
		at              string
		dir             model.Direction
		hasMorningEntry bool
		want            Result
	}{
		{
			name: "entry before bell",
			at:   "07:15", dir: model.Entry,
			want: Result{Session: model.Morning, Status: model.Present, Remarks: RemarkOnTime},
		},
		{
			name: "entry exactly at bell",
			at:   "07:30", dir: model.Entry,
			want: Result{Session: model.Morning, Status: model.Present, Remarks: RemarkOnTime},
		},
		{
			name: "entry after bell",
			at:   "07:45", dir: model.Entry,
			want: Result{Session: model.Morning, Status: model.Late, Remarks: "Late arrival (15 min late)"},
		},
		{
			name: "entry during lunch counts for afternoon",
			at:   "12:40", dir: model.Entry,
			want: Result{Session: model.Afternoon, Status: model.Present, Remarks: RemarkOnTime},
		},
		{
			name: "late afternoon entry",
			at:   "13:20", dir: model.Entry,
			want: Result{Session: model.Afternoon, Status: model.Late, Remarks: "Late arrival (20 min late)"},
		},
		{
			name: "afternoon exit without morning entry",
			at:   "13:10", dir: model.Exit, hasMorningEntry: false,
			want: Result{Session: model.Afternoon, Status: model.HalfDay, Remarks: "Absent morning, present afternoon (Half day)"},
		},
		{
			name: "afternoon dismissal",
			at:   "16:05", dir: model.Exit, hasMorningEntry: true,
			want: Result{Session: model.Afternoon, Status: model.Present, Remarks: RemarkDismissal},
		},
		{
			name: "lunch departure",
			at:   "12:05", dir: model.Exit, hasMorningEntry: true,
			want: Result{Session: model.Morning, Status: model.Present, Remarks: RemarkLunchLeave},
		},
		{
			name: "lunch departure ignores missing morning entry",
			at:   "12:30", dir: model.Exit, hasMorningEntry: false,
			want: Result{Session: model.Morning, Status: model.Present, Remarks: RemarkLunchLeave},
		},
		{
			name: "early morning departure",
			at:   "10:00", dir: model.Exit, hasMorningEntry: true,
			want: Result{Session: model.Morning, Status: model.Present, Remarks: RemarkEarlyLeave},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tod(tt.at), tt.dir, window, tt.hasMorningEntry)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	for m := 0; m < 24*60; m += 7 {
		for _, dir := range []model.Direction{model.Entry, model.Exit} {
			for _, has := range []bool{true, false} {
				a := Classify(schedule.TimeOfDay(m), dir, window, has)
				b := Classify(schedule.TimeOfDay(m), dir, window, has)
				assert.Equal(t, a, b)
			}
		}
	}
}

func TestSessionOf(t *testing.T) {
	assert.Equal(t, model.Morning, SessionOf(tod("11:59"), model.Entry, window))
	assert.Equal(t, model.Afternoon, SessionOf(tod("12:00"), model.Entry, window))
	assert.Equal(t, model.Morning, SessionOf(tod("12:59"), model.Exit, window))
	assert.Equal(t, model.Afternoon, SessionOf(tod("13:00"), model.Exit, window))
}

// Time of day has minute granularity: seconds within the bell minute are on time.
func TestClassifyMinuteGranularity(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want Result
	}{
		{"last second of bell minute", time.Date(2024, 6, 3, 7, 30, 59, 999, time.UTC),
			Result{Session: model.Morning, Status: model.Present, Remarks: RemarkOnTime}},
		{"first second after bell minute", time.Date(2024, 6, 3, 7, 31, 0, 0, time.UTC),
			Result{Session: model.Morning, Status: model.Late, Remarks: "Late arrival (1 min late)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(schedule.At(tt.at), model.Entry, window, false))
		})
	}
}
