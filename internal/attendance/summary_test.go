package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gateattend/internal/model"
)

var allStatuses = []model.Status{model.Present, model.Late, model.HalfDay, model.Absent}

func TestWorstFollowsSeverity(t *testing.T) {
	for _, a := range allStatuses {
		for _, b := range allStatuses {
			w := Worst(a, b)
			assert.Equal(t, w, Worst(b, a), "%s/%s commutes", a, b)
			assert.GreaterOrEqual(t, w.Severity(), a.Severity())
			assert.GreaterOrEqual(t, w.Severity(), b.Severity())
		}
	}
	assert.Equal(t, model.Absent, Worst(model.HalfDay, model.Absent))
	assert.Equal(t, model.HalfDay, Worst(model.Late, model.HalfDay))
	assert.Equal(t, model.Late, Worst(model.Present, model.Late))
}

func TestCombine(t *testing.T) {
	tests := []struct {
		morning, afternoon, want model.Status
	}{
		{model.Absent, model.Absent, model.Absent},
		{model.Absent, model.Present, model.HalfDay},
		{model.Late, model.Absent, model.HalfDay},
		{model.Late, model.Present, model.Late},
		{model.Present, model.Late, model.Late},
		{model.Present, model.Present, model.Present},
	}
	for _, tt := range tests {
		t.Run(string(tt.morning)+"+"+string(tt.afternoon), func(t *testing.T) {
			assert.Equal(t, tt.want, Combine(tt.morning, tt.afternoon))
			assert.Equal(t, tt.want, Combine(tt.afternoon, tt.morning))
		})
	}
}

func TestSummarize(t *testing.T) {
	day := "2024-06-03"
	entry := func(s model.Session, st model.Status) model.AttendanceRecord {
		return model.AttendanceRecord{StudentID: "s1", Date: day, Session: s, Direction: model.Entry, Status: st}
	}
	exit := model.AttendanceRecord{StudentID: "s1", Date: day, Session: model.Afternoon, Direction: model.Exit, Status: model.HalfDay}

	tests := []struct {
		name    string
		records []model.AttendanceRecord
		want    model.Status
	}{
		{name: "nothing", want: model.Absent},
		{name: "exit only", records: []model.AttendanceRecord{exit}, want: model.Absent},
		{name: "afternoon only", records: []model.AttendanceRecord{entry(model.Afternoon, model.Present), exit}, want: model.HalfDay},
		{name: "late morning", records: []model.AttendanceRecord{entry(model.Morning, model.Late), entry(model.Afternoon, model.Present)}, want: model.Late},
		{name: "full day", records: []model.AttendanceRecord{entry(model.Morning, model.Present), entry(model.Afternoon, model.Present)}, want: model.Present},
		{name: "other day ignored", records: []model.AttendanceRecord{{StudentID: "s1", Date: "2024-06-04", Session: model.Morning, Direction: model.Entry, Status: model.Present}}, want: model.Absent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize("s1", day, tt.records)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}
