package attendance

import "gateattend/internal/model"

// DaySummary is the day-level aggregate used by reporting. It is derived on
// read and never stored.
type DaySummary struct {
	StudentID string                         `json:"student_id"`
	Date      string                         `json:"date"`
	Status    model.Status                   `json:"status"`
	Sessions  map[model.Session]model.Status `json:"sessions"`
}

// Worst returns the more severe of two statuses.
func Worst(a, b model.Status) model.Status {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// sessionStatus is Absent without an entry, else the entry's status.
func sessionStatus(entry *model.AttendanceRecord) model.Status {
	if entry == nil {
		return model.Absent
	}
	if entry.Status == model.Late {
		return model.Late
	}
	return model.Present
}

// Combine merges two session outcomes. A single missing session downgrades to
// HalfDay rather than Absent; both missing is Absent.
func Combine(morning, afternoon model.Status) model.Status {
	switch {
	case morning == model.Absent && afternoon == model.Absent:
		return model.Absent
	case morning == model.Absent || afternoon == model.Absent:
		return model.HalfDay
	}
	return Worst(morning, afternoon)
}

// Summarize aggregates one student's records for one day.
func Summarize(studentID, date string, records []model.AttendanceRecord) DaySummary {
	entries := map[model.Session]*model.AttendanceRecord{}
	for i := range records {
		r := &records[i]
		if r.StudentID != studentID || r.Date != date || r.Direction != model.Entry {
			continue
		}
		entries[r.Session] = r
	}
	m := sessionStatus(entries[model.Morning])
	a := sessionStatus(entries[model.Afternoon])
	return DaySummary{
		StudentID: studentID,
		Date:      date,
		Status:    Combine(m, a),
		Sessions:  map[model.Session]model.Status{model.Morning: m, model.Afternoon: a},
	}
}
