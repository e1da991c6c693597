package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gateattend/internal/metrics"
	"gateattend/internal/model"
)

// Store is what the dispatcher reads recipients from and writes notifications to.
type Store interface {
	FindTeachers(ctx context.Context, scope model.TeacherScope, value string) ([]string, error)
	InsertNotification(ctx context.Context, n model.Notification) error
}

// Notifier is handed every committed attendance record. Implementations must
// not fail the caller: errors are logged.
type Notifier interface {
	Notify(ctx context.Context, st model.Student, rec model.AttendanceRecord)
}

// teacherScopes are tried in order; the first scope yielding a teacher wins.
var teacherScopes = []model.TeacherScope{model.ScopeAdviser, model.ScopeClassSubject, model.ScopeGrade}

// Dispatcher builds one notification per attendance record and stores it.
type Dispatcher struct {
	store   Store
	loc     *time.Location
	log     *zap.Logger
	metrics *metrics.Metrics
	newID   func() string
	now     func() time.Time
}

func NewDispatcher(store Store, loc *time.Location, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{store: store, loc: loc, log: log, metrics: m, newID: uuid.NewString, now: time.Now}
}

// Recipients returns the student's guardians followed by the closest teachers.
// A failing teacher lookup is logged and the next scope is tried.
func (d *Dispatcher) Recipients(ctx context.Context, st model.Student) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, g := range st.GuardianIDs {
		add(g)
	}

	for _, scope := range teacherScopes {
		value := st.ClassID
		if scope == model.ScopeGrade {
			value = st.GradeLevel
			if value == "" {
				value = st.GradeLabel
			}
		}
		if value == "" {
			continue
		}
		ids, err := d.store.FindTeachers(ctx, scope, value)
		if err != nil {
			d.log.Warn("teacher lookup failed", zap.String("scope", string(scope)), zap.String("value", value), zap.Error(err))
			continue
		}
		if len(ids) > 0 {
			for _, id := range ids {
				add(id)
			}
			break
		}
	}
	return out
}

// Build renders the notification for rec.
func (d *Dispatcher) Build(st model.Student, rec model.AttendanceRecord, targets []string) model.Notification {
	verb := "arrived at"
	if rec.Direction == model.Exit {
		verb = "left"
	}
	name := st.DisplayName
	if name == "" {
		name = st.ID
	}
	at := rec.Timestamp.In(d.loc).Format("3:04 PM")

	msg := fmt.Sprintf("%s %s school at %s.", name, verb, at)
	if rec.Remarks != "" {
		msg += " " + rec.Remarks
	}
	return model.Notification{
		ID:            d.newID(),
		TargetUsers:   targets,
		Title:         "Attendance update: " + name,
		Message:       msg,
		Type:          model.NotificationTypeAttendance,
		StudentID:     rec.StudentID,
		IsUrgent:      rec.Status == model.Late || rec.Status == model.HalfDay,
		RelatedRecord: rec.ID,
		CreatedAt:     d.now().UTC(),
	}
}

// Dispatch resolves recipients and stores the notification. It reports whether
// a notification was written.
func (d *Dispatcher) Dispatch(ctx context.Context, st model.Student, rec model.AttendanceRecord) (bool, error) {
	targets := d.Recipients(ctx, st)
	if len(targets) == 0 {
		d.log.Debug("no notification recipients", zap.String("student_id", st.ID))
		d.metrics.ObserveNotification("skipped")
		return false, nil
	}
	n := d.Build(st, rec, targets)
	if err := d.store.InsertNotification(ctx, n); err != nil {
		d.metrics.ObserveNotification("failed")
		return false, fmt.Errorf("insert notification: %w", err)
	}
	d.metrics.ObserveNotification("sent")
	return true, nil
}

// Notify dispatches and swallows failures.
func (d *Dispatcher) Notify(ctx context.Context, st model.Student, rec model.AttendanceRecord) {
	if _, err := d.Dispatch(ctx, st, rec); err != nil {
		d.log.Warn("notification failed", zap.String("student_id", st.ID), zap.String("record_id", rec.ID), zap.Error(err))
	}
}
