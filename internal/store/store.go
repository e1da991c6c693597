package store

import (
	"context"

	"gateattend/internal/model"
)

// Repository is everything the engine reads from or writes to the school's
// data store. Each backend (Postgres, Firestore, memory) implements all of it.
type Repository interface {
	FindStudent(ctx context.Context, field model.StudentField, value string) (*model.Student, error)

	GetRecord(ctx context.Context, key model.RecordKey) (*model.AttendanceRecord, error)
	InsertRecord(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error)
	ListRecords(ctx context.Context, studentID, date string) ([]model.AttendanceRecord, error)

	UpdateLiveStatus(ctx context.Context, status model.LiveStatus) error
	GetLiveStatus(ctx context.Context, studentID string) (*model.LiveStatus, error)

	GetScheduleConfig(ctx context.Context) (map[string]string, error)
	SaveScheduleConfig(ctx context.Context, settings map[string]string) error

	FindTeachers(ctx context.Context, scope model.TeacherScope, value string) ([]string, error)
	InsertNotification(ctx context.Context, n model.Notification) error

	Ping(ctx context.Context) error
	Close() error
}
