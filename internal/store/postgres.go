package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gateattend/internal/model"
)

// Postgres persists attendance data in Postgres (the Supabase deployment).
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an existing pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

var studentColumns = map[model.StudentField]string{
	model.FieldID:            "id",
	model.FieldStudentNumber: "student_id",
	model.FieldQRCode:        "qr_code",
	model.FieldLRN:           "lrn",
	model.FieldName:          "full_name",
}

const recordColumns = `id, student_id, class_id, attendance_date::text, session, direction, timestamp, status, remarks, recorded_by`

// FindStudent returns the first student whose column matches value, or nil.
func (p *Postgres) FindStudent(ctx context.Context, field model.StudentField, value string) (*model.Student, error) {
	col, ok := studentColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown student field %q", field)
	}
	row := p.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(student_id, ''), COALESCE(qr_code, ''), COALESCE(lrn, ''), full_name, class_id, grade_level, grade_label
		FROM students
		WHERE `+col+` = $1
		ORDER BY id
		LIMIT 1
	`, value)
	var s model.Student
	if err := row.Scan(&s.ID, &s.StudentNumber, &s.QRCode, &s.LRN, &s.DisplayName, &s.ClassID, &s.GradeLevel, &s.GradeLabel); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find student: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `SELECT guardian_id FROM student_guardians WHERE student_id = $1 ORDER BY guardian_id`, s.ID)
	if err != nil {
		return nil, fmt.Errorf("list guardians: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		s.GuardianIDs = append(s.GuardianIDs, g)
	}
	return &s, rows.Err()
}

func scanRecord(row interface{ Scan(...any) error }) (model.AttendanceRecord, error) {
	var r model.AttendanceRecord
	var session, direction, status string
	err := row.Scan(&r.ID, &r.StudentID, &r.ClassID, &r.Date, &session, &direction, &r.Timestamp, &status, &r.Remarks, &r.RecordedBy)
	r.Session, r.Direction, r.Status = model.Session(session), model.Direction(direction), model.Status(status)
	return r, err
}

// GetRecord returns the record for key, or nil.
func (p *Postgres) GetRecord(ctx context.Context, key model.RecordKey) (*model.AttendanceRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = $1 AND attendance_date = $2::text::date AND session = $3 AND direction = $4
	`, key.StudentID, key.Date, string(key.Session), string(key.Direction))
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// InsertRecord relies on the attendance_records_once constraint: a concurrent
// or repeated insert for the same key does nothing and the winner is returned.
func (p *Postgres) InsertRecord(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error) {
	var id string
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_id, attendance_date, session, direction, timestamp, status, remarks, recorded_by)
		VALUES ($1, $2, $3, $4::text::date, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT attendance_records_once DO NOTHING
		RETURNING id
	`, rec.ID, rec.StudentID, rec.ClassID, rec.Date, string(rec.Session), string(rec.Direction), rec.Timestamp,
		string(rec.Status), rec.Remarks, rec.RecordedBy).Scan(&id)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.AttendanceRecord{}, false, fmt.Errorf("insert record: %w", err)
	}
	existing, err := p.GetRecord(ctx, rec.Key())
	if err != nil {
		return model.AttendanceRecord{}, false, err
	}
	if existing == nil {
		return model.AttendanceRecord{}, false, errors.New("insert record: conflict without existing row")
	}
	return *existing, false, nil
}

// ListRecords returns a student's records, optionally limited to one date.
func (p *Postgres) ListRecords(ctx context.Context, studentID, date string) ([]model.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE student_id = $1`
	args := []any{studentID}
	if date != "" {
		query += ` AND attendance_date = $2::text::date`
		args = append(args, date)
	}
	query += ` ORDER BY timestamp`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// UpdateLiveStatus overwrites the student's projection; last write wins.
func (p *Postgres) UpdateLiveStatus(ctx context.Context, status model.LiveStatus) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO live_status (student_id, current_status, last_attendance_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id) DO UPDATE SET
			current_status = EXCLUDED.current_status,
			last_attendance_at = EXCLUDED.last_attendance_at,
			updated_at = NOW()
	`, status.StudentID, string(status.CurrentStatus), status.LastAttendanceAt)
	return err
}

func (p *Postgres) GetLiveStatus(ctx context.Context, studentID string) (*model.LiveStatus, error) {
	var s model.LiveStatus
	var current string
	err := p.db.QueryRowContext(ctx, `
		SELECT student_id, current_status, last_attendance_at FROM live_status WHERE student_id = $1
	`, studentID).Scan(&s.StudentID, &current, &s.LastAttendanceAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.CurrentStatus = model.PresenceStatus(current)
	return &s, nil
}

// GetScheduleConfig returns nil when no settings have been stored.
func (p *Postgres) GetScheduleConfig(ctx context.Context) (map[string]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT key, value FROM schedule_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out map[string]string
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (p *Postgres) SaveScheduleConfig(ctx context.Context, settings map[string]string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for k, v := range settings {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedule_settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		`, k, v); err != nil {
			return fmt.Errorf("save setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) FindTeachers(ctx context.Context, scope model.TeacherScope, value string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT teacher_id FROM teacher_assignments
		WHERE scope = $1 AND scope_value = $2
		ORDER BY priority, teacher_id
	`, string(scope), value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertNotification writes one row; target_users is passed straight to pgx,
// which encodes []string as text[].
func (p *Postgres) InsertNotification(ctx context.Context, n model.Notification) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications (id, target_users, title, message, type, student_id, is_urgent, related_record, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.TargetUsers, n.Title, n.Message, n.Type, n.StudentID, n.IsUrgent, n.RelatedRecord, n.CreatedAt)
	return err
}
