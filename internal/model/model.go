package model

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrEmptyToken         = errors.New("empty scan token")
	ErrCameraAccessDenied = errors.New("camera access denied")
	ErrCameraUnsupported  = errors.New("camera unsupported")
)

// Source identifies the device family that produced a scan.
type Source string

const (
	SourceWebcam          Source = "webcam"
	SourcePhysicalScanner Source = "physical_scanner"
	SourceAPI             Source = "api"
)

// ScanEvent is a single decoded QR payload. It lives only as long as it takes
// to process it.
type ScanEvent struct {
	RawToken   string    `json:"raw_token"`
	Source     Source    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
	StationID  string    `json:"station_id,omitempty"`
}

// Student is read from the external registry; the engine never writes it.
type Student struct {
	ID            string   `json:"id" firestore:"-"`
	DisplayName   string   `json:"display_name" firestore:"full_name"`
	StudentNumber string   `json:"student_id" firestore:"student_id"`
	QRCode        string   `json:"qr_code" firestore:"qr_code"`
	LRN           string   `json:"lrn" firestore:"lrn"`
	ClassID       string   `json:"class_id" firestore:"class_id"`
	GradeLevel    string   `json:"grade_level" firestore:"grade_level"`
	GradeLabel    string   `json:"grade_label" firestore:"grade_label"`
	GuardianIDs   []string `json:"guardian_ids" firestore:"guardian_ids"`
}

// StudentField names one lookup strategy of the student resolver.
type StudentField string

const (
	FieldID            StudentField = "id"
	FieldStudentNumber StudentField = "student_id"
	FieldQRCode        StudentField = "qr_code"
	FieldLRN           StudentField = "lrn"
	FieldName          StudentField = "full_name"
)

type Session string

const (
	Morning   Session = "morning"
	Afternoon Session = "afternoon"
)

type Direction string

const (
	Entry Direction = "entry"
	Exit  Direction = "exit"
)

// ParseDirection accepts entry/exit in any case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Entry:
		return Entry, true
	case Exit:
		return Exit, true
	}
	return "", false
}

type Status string

const (
	Present Status = "present"
	Late    Status = "late"
	Absent  Status = "absent"
	HalfDay Status = "half_day"
)

// Severity orders statuses for day-level aggregation: Absent > HalfDay > Late > Present.
func (s Status) Severity() int {
	switch s {
	case Absent:
		return 3
	case HalfDay:
		return 2
	case Late:
		return 1
	default:
		return 0
	}
}

// RecordKey is the uniqueness key of an attendance record.
type RecordKey struct {
	StudentID string
	Date      string // YYYY-MM-DD in school time
	Session   Session
	Direction Direction
}

// AttendanceRecord is written once per RecordKey and never revised.
type AttendanceRecord struct {
	ID         string    `json:"id" firestore:"id"`
	StudentID  string    `json:"student_id" firestore:"student_id"`
	ClassID    string    `json:"class_id" firestore:"class_id"`
	Date       string    `json:"date" firestore:"date"`
	Session    Session   `json:"session" firestore:"session"`
	Direction  Direction `json:"direction" firestore:"direction"`
	Timestamp  time.Time `json:"timestamp" firestore:"timestamp"`
	Status     Status    `json:"status" firestore:"status"`
	Remarks    string    `json:"remarks" firestore:"remarks"`
	RecordedBy string    `json:"recorded_by" firestore:"recorded_by"`
}

// Key returns the uniqueness key of r.
func (r AttendanceRecord) Key() RecordKey {
	return RecordKey{StudentID: r.StudentID, Date: r.Date, Session: r.Session, Direction: r.Direction}
}

type PresenceStatus string

const (
	InSchool  PresenceStatus = "in_school"
	OutSchool PresenceStatus = "out_school"
)

// LiveStatus is a denormalized projection overwritten after every committed record.
type LiveStatus struct {
	StudentID        string         `json:"student_id" firestore:"student_id"`
	CurrentStatus    PresenceStatus `json:"current_status" firestore:"current_status"`
	LastAttendanceAt time.Time      `json:"last_attendance_at" firestore:"last_attendance_at"`
}

// Notification is created once per committed attendance record.
type Notification struct {
	ID            string    `json:"id" firestore:"id"`
	TargetUsers   []string  `json:"target_users" firestore:"target_users"`
	Title         string    `json:"title" firestore:"title"`
	Message       string    `json:"message" firestore:"message"`
	Type          string    `json:"type" firestore:"type"`
	StudentID     string    `json:"student_id" firestore:"student_id"`
	IsUrgent      bool      `json:"is_urgent" firestore:"is_urgent"`
	RelatedRecord string    `json:"related_record" firestore:"related_record"`
	CreatedAt     time.Time `json:"created_at" firestore:"created_at"`
}

const NotificationTypeAttendance = "attendance"

// TeacherScope selects how teachers relate to a student.
type TeacherScope string

const (
	ScopeAdviser      TeacherScope = "adviser"
	ScopeClassSubject TeacherScope = "class_subject"
	ScopeGrade        TeacherScope = "grade"
)
