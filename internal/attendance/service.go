package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gateattend/internal/model"
	"gateattend/internal/schedule"
)

// Store is the persistence the recorder needs. InsertRecord must be atomic
// per RecordKey: when a record with the same key already exists it returns that
// record with created=false instead of writing.
type Store interface {
	GetRecord(ctx context.Context, key model.RecordKey) (*model.AttendanceRecord, error)
	InsertRecord(ctx context.Context, rec model.AttendanceRecord) (stored model.AttendanceRecord, created bool, err error)
	UpdateLiveStatus(ctx context.Context, status model.LiveStatus) error
}

// Recorded is the result of Record. Created is false when the call was a
// no-op because the key was already recorded.
type Recorded struct {
	Record  model.AttendanceRecord
	Created bool
}

// Service classifies scans and writes at most one record per student, day,
// session and direction.
type Service struct {
	store Store
	loc   *time.Location
	log   *zap.Logger
	newID func() string
}

// NewService creates a recorder. Dates and times of day are computed in loc.
func NewService(store Store, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, log: log, newID: uuid.NewString}
}

// Location returns the school time zone.
func (s *Service) Location() *time.Location { return s.loc }

// DateOf formats t as the school-local calendar date.
func (s *Service) DateOf(t time.Time) string {
	return t.In(s.loc).Format(time.DateOnly)
}

// Record classifies evt for st and persists it. Store failures are wrapped in
// model.ErrStoreUnavailable and leave nothing behind: the live status is only
// touched after the record insert has committed.
func (s *Service) Record(ctx context.Context, st *model.Student, dir model.Direction, evt model.ScanEvent, w schedule.Window) (Recorded, error) {
	if st == nil || st.ID == "" {
		return Recorded{}, errors.New("student required")
	}
	local := evt.CapturedAt.In(s.loc)
	at := schedule.At(local)
	date := local.Format(time.DateOnly)
	session := SessionOf(at, dir, w)
	key := model.RecordKey{StudentID: st.ID, Date: date, Session: session, Direction: dir}

	existing, err := s.store.GetRecord(ctx, key)
	if err != nil {
		return Recorded{}, fmt.Errorf("%w: check record: %w", model.ErrStoreUnavailable, err)
	}
	if existing != nil {
		return Recorded{Record: *existing}, nil
	}

	hasMorningEntry := true
	if dir == model.Exit && session == model.Afternoon {
		morning, err := s.store.GetRecord(ctx, model.RecordKey{StudentID: st.ID, Date: date, Session: model.Morning, Direction: model.Entry})
		if err != nil {
			return Recorded{}, fmt.Errorf("%w: check morning entry: %w", model.ErrStoreUnavailable, err)
		}
		hasMorningEntry = morning != nil
	}

	res := Classify(at, dir, w, hasMorningEntry)
	rec := model.AttendanceRecord{
		ID:         s.newID(),
		StudentID:  st.ID,
		ClassID:    st.ClassID,
		Date:       date,
		Session:    res.Session,
		Direction:  dir,
		Timestamp:  evt.CapturedAt.UTC(),
		Status:     res.Status,
		Remarks:    res.Remarks,
		RecordedBy: recordedBy(evt),
	}

	stored, created, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return Recorded{}, fmt.Errorf("%w: insert record: %w", model.ErrStoreUnavailable, err)
	}
	if !created {
		s.log.Debug("record already written by another station", zap.String("student_id", st.ID), zap.String("session", string(session)), zap.String("direction", string(dir)))
		return Recorded{Record: stored}, nil
	}

	presence := model.InSchool
	if dir == model.Exit {
		presence = model.OutSchool
	}
	if err := s.store.UpdateLiveStatus(ctx, model.LiveStatus{
		StudentID:        st.ID,
		CurrentStatus:    presence,
		LastAttendanceAt: stored.Timestamp,
	}); err != nil {
		s.log.Warn("live status update failed", zap.String("student_id", st.ID), zap.String("record_id", stored.ID), zap.Error(err))
	}
	return Recorded{Record: stored, Created: true}, nil
}

func recordedBy(evt model.ScanEvent) string {
	if evt.StationID != "" {
		return evt.StationID
	}
	return string(evt.Source)
}
