package attendance

import (
	"fmt"

	"gateattend/internal/model"
	"gateattend/internal/schedule"
)

const (
	RemarkOnTime       = "On time"
	RemarkHalfDay      = "Absent morning, present afternoon (Half day)"
	RemarkDismissal    = "Dismissal recorded"
	RemarkLunchLeave   = "Lunch break departure"
	RemarkEarlyLeave   = "Early departure"
	remarkLateTemplate = "Late arrival (%d min late)"
)

// Result is the outcome of classifying one scan.
type Result struct {
	Session model.Session
	Status  model.Status
	Remarks string
}

// SessionOf places a scan in a session. Arrivals during the lunch break belong
// to the afternoon; departures during it close the morning.
func SessionOf(at schedule.TimeOfDay, dir model.Direction, w schedule.Window) model.Session {
	boundary := w.MorningOut
	if dir == model.Exit {
		boundary = w.AfternoonIn
	}
	if at < boundary {
		return model.Morning
	}
	return model.Afternoon
}

// Classify is a pure function of its inputs. hasMorningEntry only matters for
// afternoon exits.
func Classify(at schedule.TimeOfDay, dir model.Direction, w schedule.Window, hasMorningEntry bool) Result {
	session := SessionOf(at, dir, w)
	res := Result{Session: session, Status: model.Present}

	if dir == model.Entry {
		cutoff := w.MorningIn
		if session == model.Afternoon {
			cutoff = w.AfternoonIn
		}
		if at <= cutoff {
			res.Remarks = RemarkOnTime
		} else {
			res.Status = model.Late
			res.Remarks = fmt.Sprintf(remarkLateTemplate, int(at-cutoff))
		}
		return res
	}

	switch {
	case session == model.Afternoon && !hasMorningEntry:
		res.Status = model.HalfDay
		res.Remarks = RemarkHalfDay
	case session == model.Afternoon:
		res.Remarks = RemarkDismissal
	case w.InLunch(at):
		res.Remarks = RemarkLunchLeave
	default:
		res.Remarks = RemarkEarlyLeave
	}
	return res
}
