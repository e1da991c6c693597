package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"gateattend/internal/model"
	"gateattend/internal/queue"
)

// JobType tags notification jobs on the queue.
const JobType = "attendance.notify"

// Job is the queued form of a committed record awaiting notification.
type Job struct {
	Student model.Student          `json:"student"`
	Record  model.AttendanceRecord `json:"record"`
}

// Publisher is a Notifier that defers dispatch to a worker via a queue.
type Publisher struct {
	q   queue.Queue
	log *zap.Logger
}

func NewPublisher(q queue.Queue, log *zap.Logger) *Publisher {
	return &Publisher{q: q, log: log}
}

func (p *Publisher) Notify(ctx context.Context, st model.Student, rec model.AttendanceRecord) {
	body, err := json.Marshal(Job{Student: st, Record: rec})
	if err != nil {
		p.log.Warn("encode notification job", zap.String("record_id", rec.ID), zap.Error(err))
		return
	}
	if err := p.q.Publish(ctx, queue.Message{Type: JobType, Body: body}); err != nil {
		p.log.Warn("queue publish failed", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// Run consumes notification jobs until ctx is cancelled or the queue closes.
func Run(ctx context.Context, q queue.Queue, d *Dispatcher, log *zap.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != JobType {
			log.Debug("skipping message", zap.String("type", msg.Type))
			continue
		}
		var job Job
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Warn("malformed notification job", zap.Error(err))
			continue
		}
		if _, err := d.Dispatch(ctx, job.Student, job.Record); err != nil {
			log.Warn("notification failed", zap.String("record_id", job.Record.ID), zap.Error(err))
			continue
		}
		log.Debug("notification sent", zap.String("record_id", job.Record.ID))
	}
	return nil
}
