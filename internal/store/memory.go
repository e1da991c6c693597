package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"gateattend/internal/model"
)

// Memory keeps everything in process. It backs tests and the "memory" store
// backend used for local runs.
type Memory struct {
	mu            sync.Mutex
	students      map[string]model.Student
	records       map[model.RecordKey]model.AttendanceRecord
	live          map[string]model.LiveStatus
	schedule      map[string]string
	teachers      map[model.TeacherScope]map[string][]string
	notifications []model.Notification

	// Fail, when set, is returned by every write; used to simulate outages.
	Fail error
}

func NewMemory() *Memory {
	return &Memory{
		students: make(map[string]model.Student),
		records:  make(map[model.RecordKey]model.AttendanceRecord),
		live:     make(map[string]model.LiveStatus),
		teachers: make(map[model.TeacherScope]map[string][]string),
	}
}

// Seed is the JSON layout accepted by LoadSeed.
type Seed struct {
	Students []model.Student  `json:"students"`
	Schedule map[string]string `json:"schedule"`
	Teachers []struct {
		ID    string             `json:"id"`
		Scope model.TeacherScope `json:"scope"`
		Value string             `json:"value"`
	} `json:"teachers"`
}

// LoadSeed fills the store from a JSON document.
func (m *Memory) LoadSeed(r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for _, s := range seed.Students {
		m.PutStudent(s)
	}
	for _, t := range seed.Teachers {
		m.AssignTeacher(t.Scope, t.Value, t.ID)
	}
	if seed.Schedule != nil {
		return m.SaveScheduleConfig(context.Background(), seed.Schedule)
	}
	return nil
}

func (m *Memory) PutStudent(s model.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
}

func (m *Memory) AssignTeacher(scope model.TeacherScope, value, teacherID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.teachers[scope] == nil {
		m.teachers[scope] = make(map[string][]string)
	}
	m.teachers[scope][value] = append(m.teachers[scope][value], teacherID)
}

func (m *Memory) FindStudent(_ context.Context, field model.StudentField, value string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if field == model.FieldID {
		if s, ok := m.students[value]; ok {
			return &s, nil
		}
		return nil, nil
	}
	ids := make([]string, 0, len(m.students))
	for id := range m.students {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := m.students[id]
		var v string
		switch field {
		case model.FieldStudentNumber:
			v = s.StudentNumber
		case model.FieldQRCode:
			v = s.QRCode
		case model.FieldLRN:
			v = s.LRN
		case model.FieldName:
			v = s.DisplayName
		}
		if v != "" && v == value {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *Memory) GetRecord(_ context.Context, key model.RecordKey) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[key]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *Memory) InsertRecord(_ context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return model.AttendanceRecord{}, false, m.Fail
	}
	if existing, ok := m.records[rec.Key()]; ok {
		return existing, false, nil
	}
	m.records[rec.Key()] = rec
	return rec, true, nil
}

func (m *Memory) ListRecords(_ context.Context, studentID, date string) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttendanceRecord
	for k, r := range m.records {
		if k.StudentID == studentID && (date == "" || k.Date == date) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Records returns every stored record.
func (m *Memory) Records() []model.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.AttendanceRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

func (m *Memory) UpdateLiveStatus(_ context.Context, status model.LiveStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.live[status.StudentID] = status
	return nil
}

func (m *Memory) GetLiveStatus(_ context.Context, studentID string) (*model.LiveStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.live[studentID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) GetScheduleConfig(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schedule == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m.schedule))
	for k, v := range m.schedule {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SaveScheduleConfig(_ context.Context, settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	if m.schedule == nil {
		m.schedule = make(map[string]string, len(settings))
	}
	for k, v := range settings {
		m.schedule[k] = v
	}
	return nil
}

func (m *Memory) FindTeachers(_ context.Context, scope model.TeacherScope, value string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.teachers[scope][value]...), nil
}

func (m *Memory) InsertNotification(_ context.Context, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.notifications = append(m.notifications, n)
	return nil
}

// Notifications returns every stored notification.
func (m *Memory) Notifications() []model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Notification(nil), m.notifications...)
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }
