// Package scan turns raw QR payloads from any front-end into attendance
// records.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gateattend/internal/attendance"
	"gateattend/internal/dedup"
	"gateattend/internal/metrics"
	"gateattend/internal/model"
	"gateattend/internal/notify"
	"gateattend/internal/schedule"
	"gateattend/internal/token"
)

// DirectionAuto derives the direction from the student's live status.
const DirectionAuto = "auto"

type StudentResolver interface {
	Resolve(ctx context.Context, key string) (*model.Student, error)
}

type ScheduleResolver interface {
	Resolve(gradeLevel, gradeLabel string) schedule.Window
}

type Recorder interface {
	Record(ctx context.Context, st *model.Student, dir model.Direction, evt model.ScanEvent, w schedule.Window) (attendance.Recorded, error)
}

type LiveStatusReader interface {
	GetLiveStatus(ctx context.Context, studentID string) (*model.LiveStatus, error)
}

// Outcome describes what happened to one scan. Duplicate scans carry only Key.
type Outcome struct {
	Key       string                  `json:"key"`
	Duplicate bool                    `json:"duplicate"`
	Student   *model.Student          `json:"student,omitempty"`
	Record    *model.AttendanceRecord `json:"record,omitempty"`
	Created   bool                    `json:"created"`
}

// Config holds the station-level settings of a Processor.
type Config struct {
	StationID string
	// Direction is entry, exit or auto.
	Direction string
}

// Processor is the single pipeline both scanner front-ends and the HTTP API
// feed: normalize, suppress duplicates, resolve the student and schedule,
// record, then notify.
type Processor struct {
	cfg       Config
	filter    dedup.Filter
	students  StudentResolver
	schedules ScheduleResolver
	recorder  Recorder
	live      LiveStatusReader
	notifier  notify.Notifier
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time

	inflight sync.WaitGroup
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Filter    dedup.Filter
	Students  StudentResolver
	Schedules ScheduleResolver
	Recorder  Recorder
	Live      LiveStatusReader
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Log       *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewProcessor(cfg Config, deps Deps) *Processor {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if cfg.Direction == "" {
		cfg.Direction = string(model.Entry)
	}
	return &Processor{
		cfg:       cfg,
		filter:    deps.Filter,
		students:  deps.Students,
		schedules: deps.Schedules,
		recorder:  deps.Recorder,
		live:      deps.Live,
		notifier:  deps.Notifier,
		metrics:   deps.Metrics,
		log:       deps.Log,
		now:       deps.Now,
	}
}

// Process runs evt through the pipeline. dir overrides the station direction
// when non-empty. Errors wrap model.ErrEmptyToken, model.ErrStudentNotFound or
// model.ErrStoreUnavailable.
func (p *Processor) Process(ctx context.Context, evt model.ScanEvent, dir model.Direction) (Outcome, error) {
	started := p.now()
	if evt.CapturedAt.IsZero() {
		evt.CapturedAt = started
	}
	if evt.StationID == "" {
		evt.StationID = p.cfg.StationID
	}
	source := string(evt.Source)

	key, err := token.Normalize(evt.RawToken)
	if err != nil {
		p.metrics.ObserveScan(source, metrics.OutcomeInvalid, started)
		return Outcome{}, err
	}
	out := Outcome{Key: key}

	if p.filter != nil && !p.filter.Allow(ctx, key, started) {
		p.log.Debug("duplicate scan suppressed", zap.String("key", key), zap.String("source", source))
		p.metrics.ObserveScan(source, metrics.OutcomeDuplicate, started)
		out.Duplicate = true
		return out, nil
	}

	st, err := p.students.Resolve(ctx, key)
	if err != nil {
		if errors.Is(err, model.ErrStudentNotFound) {
			p.log.Info("unknown scan key", zap.String("key", key), zap.String("source", source))
			p.metrics.ObserveScan(source, metrics.OutcomeNotFound, started)
			return out, err
		}
		p.log.Error("student lookup failed", zap.String("key", key), zap.Error(err))
		p.metrics.ObserveScan(source, metrics.OutcomeError, started)
		p.forget(ctx, key)
		return out, fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
	}
	out.Student = st

	if dir == "" {
		dir = p.direction(ctx, st.ID)
	}
	w := p.schedules.Resolve(st.GradeLevel, st.GradeLabel)

	res, err := p.recorder.Record(ctx, st, dir, evt, w)
	if err != nil {
		p.log.Error("record attendance failed", zap.String("student_id", st.ID), zap.Error(err))
		p.metrics.ObserveScan(source, metrics.OutcomeError, started)
		if errors.Is(err, model.ErrStoreUnavailable) {
			p.forget(ctx, key)
		}
		return out, err
	}
	rec := res.Record
	out.Record = &rec
	out.Created = res.Created

	if !res.Created {
		p.metrics.ObserveScan(source, metrics.OutcomeExisting, started)
		return out, nil
	}
	p.metrics.ObserveScan(source, metrics.OutcomeRecorded, started)
	p.metrics.ObserveRecord(string(rec.Session), string(rec.Direction), string(rec.Status))
	p.log.Info("attendance recorded",
		zap.String("student_id", st.ID),
		zap.String("session", string(rec.Session)),
		zap.String("direction", string(rec.Direction)),
		zap.String("status", string(rec.Status)),
		zap.String("station", evt.StationID),
	)

	if p.notifier != nil {
		p.inflight.Add(1)
		go func(st model.Student) {
			defer p.inflight.Done()
			p.notifier.Notify(context.WithoutCancel(ctx), st, rec)
		}(*st)
	}
	return out, nil
}

// forget reopens the duplicate window for key so the operator can re-scan a
// card whose record could not be saved.
func (p *Processor) forget(ctx context.Context, key string) {
	if p.filter != nil {
		p.filter.Forget(context.WithoutCancel(ctx), key)
	}
}

// direction resolves the station direction for studentID. In auto mode a
// student currently in school is leaving; a failed lookup falls back to entry.
func (p *Processor) direction(ctx context.Context, studentID string) model.Direction {
	if d, ok := model.ParseDirection(p.cfg.Direction); ok {
		return d
	}
	if p.live == nil {
		return model.Entry
	}
	st, err := p.live.GetLiveStatus(ctx, studentID)
	if err != nil {
		p.log.Warn("live status lookup failed, assuming entry", zap.String("student_id", studentID), zap.Error(err))
		return model.Entry
	}
	if st != nil && st.CurrentStatus == model.InSchool {
		return model.Exit
	}
	return model.Entry
}

// Run processes events from in until it closes or ctx is done. Per-scan
// results are passed to report, which may be nil.
func (p *Processor) Run(ctx context.Context, in <-chan model.ScanEvent, report func(model.ScanEvent, Outcome, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-in:
			if !ok {
				return
			}
			out, err := p.Process(ctx, evt, "")
			if report != nil {
				report(evt, out, err)
			}
		}
	}
}

// Wait blocks until in-flight notifications have been handed off.
func (p *Processor) Wait() {
	p.inflight.Wait()
}
