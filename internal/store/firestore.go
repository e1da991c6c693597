package store

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gateattend/internal/model"
)

const (
	colStudents      = "students"
	colRecords       = "attendance_records"
	colLiveStatus    = "live_status"
	colSettings      = "settings"
	colTeachers      = "teacher_assignments"
	colNotifications = "notifications"
	scheduleDoc      = "schedule"
)

// Firestore persists attendance data in Cloud Firestore (the Firebase
// deployment). Record uniqueness comes from deterministic document IDs written
// with Create, which fails when the document already exists.
type Firestore struct {
	client *firestore.Client
}

// OpenFirestore initialises a Firebase app and its Firestore client. An empty
// credentials file falls back to application default credentials.
func OpenFirestore(ctx context.Context, projectID, credentialsFile string) (*Firestore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	return &Firestore{client: client}, nil
}

// NewFirestore wraps an existing client.
func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// validDocID rejects values Firestore cannot use as a document ID.
func validDocID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.Contains(id, "/")
}

// RecordDocID is the deterministic document ID of a record key. The student
// id is path-escaped so distinct ids never share a document.
func RecordDocID(key model.RecordKey) string {
	return fmt.Sprintf("%s_%s_%s_%s", url.PathEscape(key.StudentID), key.Date, key.Session, key.Direction)
}

func (f *Firestore) FindStudent(ctx context.Context, field model.StudentField, value string) (*model.Student, error) {
	if field == model.FieldID {
		if !validDocID(value) {
			return nil, nil
		}
		snap, err := f.client.Collection(colStudents).Doc(value).Get(ctx)
		if err != nil {
			if notFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("get student: %w", err)
		}
		return decodeStudent(snap)
	}

	iter := f.client.Collection(colStudents).Where(string(field), "==", value).Limit(1).Documents(ctx)
	defer iter.Stop()
	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query student by %s: %w", field, err)
	}
	return decodeStudent(snap)
}

func decodeStudent(snap *firestore.DocumentSnapshot) (*model.Student, error) {
	var s model.Student
	if err := snap.DataTo(&s); err != nil {
		return nil, fmt.Errorf("decode student %s: %w", snap.Ref.ID, err)
	}
	s.ID = snap.Ref.ID
	return &s, nil
}

func (f *Firestore) GetRecord(ctx context.Context, key model.RecordKey) (*model.AttendanceRecord, error) {
	snap, err := f.client.Collection(colRecords).Doc(RecordDocID(key)).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var r model.AttendanceRecord
	if err := snap.DataTo(&r); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", snap.Ref.ID, err)
	}
	return &r, nil
}

func (f *Firestore) InsertRecord(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error) {
	_, err := f.client.Collection(colRecords).Doc(RecordDocID(rec.Key())).Create(ctx, rec)
	if err == nil {
		return rec, true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return model.AttendanceRecord{}, false, fmt.Errorf("create record: %w", err)
	}
	existing, err := f.GetRecord(ctx, rec.Key())
	if err != nil {
		return model.AttendanceRecord{}, false, err
	}
	if existing == nil {
		return model.AttendanceRecord{}, false, fmt.Errorf("create record: %s exists but cannot be read", RecordDocID(rec.Key()))
	}
	return *existing, false, nil
}

func (f *Firestore) ListRecords(ctx context.Context, studentID, date string) ([]model.AttendanceRecord, error) {
	q := f.client.Collection(colRecords).Where("student_id", "==", studentID)
	if date != "" {
		q = q.Where("date", "==", date)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []model.AttendanceRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var r model.AttendanceRecord
		if err := snap.DataTo(&r); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", snap.Ref.ID, err)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *Firestore) UpdateLiveStatus(ctx context.Context, st model.LiveStatus) error {
	if !validDocID(st.StudentID) {
		return fmt.Errorf("invalid student id %q", st.StudentID)
	}
	_, err := f.client.Collection(colLiveStatus).Doc(st.StudentID).Set(ctx, st)
	return err
}

func (f *Firestore) GetLiveStatus(ctx context.Context, studentID string) (*model.LiveStatus, error) {
	if !validDocID(studentID) {
		return nil, nil
	}
	snap, err := f.client.Collection(colLiveStatus).Doc(studentID).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var st model.LiveStatus
	if err := snap.DataTo(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (f *Firestore) GetScheduleConfig(ctx context.Context) (map[string]string, error) {
	snap, err := f.client.Collection(colSettings).Doc(scheduleDoc).Get(ctx)
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make(map[string]string)
	for k, v := range snap.Data() {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

func (f *Firestore) SaveScheduleConfig(ctx context.Context, settings map[string]string) error {
	data := make(map[string]interface{}, len(settings))
	for k, v := range settings {
		data[k] = v
	}
	_, err := f.client.Collection(colSettings).Doc(scheduleDoc).Set(ctx, data, firestore.MergeAll)
	return err
}

func (f *Firestore) FindTeachers(ctx context.Context, scope model.TeacherScope, value string) ([]string, error) {
	iter := f.client.Collection(colTeachers).
		Where("scope", "==", string(scope)).
		Where("scope_value", "==", value).
		Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if id, ok := snap.Data()["teacher_id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *Firestore) InsertNotification(ctx context.Context, n model.Notification) error {
	_, err := f.client.Collection(colNotifications).Doc(n.ID).Set(ctx, n)
	return err
}

// Ping reads the settings document; a missing document still proves connectivity.
func (f *Firestore) Ping(ctx context.Context) error {
	_, err := f.client.Collection(colSettings).Doc(scheduleDoc).Get(ctx)
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
