package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gateattend/internal/model"
	"gateattend/internal/queue"
	"gateattend/internal/store"
)

var manila = time.FixedZone("PHT", 8*3600)

var ana = model.Student{ID: "s1", DisplayName: "Ana Cruz", ClassID: "7-A", GradeLevel: "7", GuardianIDs: []string{"g1", "g2"}}

func lateRecord() model.AttendanceRecord {
	return model.AttendanceRecord{
		ID: "r1", StudentID: "s1", Date: "2024-06-03", Session: model.Morning, Direction: model.Entry,
		Timestamp: time.Date(2024, 6, 2, 23, 45, 0, 0, time.UTC), Status: model.Late,
		Remarks: "Late arrival (15 min late)",
	}
}

func newDispatcher(s Store) *Dispatcher {
	d := NewDispatcher(s, manila, zap.NewNop(), nil)
	d.newID = func() string { return "n1" }
	d.now = func() time.Time { return time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC) }
	return d
}

func TestRecipients(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*store.Memory)
		want  []string
	}{
		{
			name: "adviser wins",
			setup: func(m *store.Memory) {
				m.AssignTeacher(model.ScopeAdviser, "7-A", "adv")
				m.AssignTeacher(model.ScopeClassSubject, "7-A", "subj")
			},
			want: []string{"g1", "g2", "adv"},
		},
		{
			name: "subject teachers without adviser",
			setup: func(m *store.Memory) {
				m.AssignTeacher(model.ScopeClassSubject, "7-A", "math")
				m.AssignTeacher(model.ScopeClassSubject, "7-A", "sci")
				m.AssignTeacher(model.ScopeGrade, "7", "g7")
			},
			want: []string{"g1", "g2", "math", "sci"},
		},
		{
			name:  "grade teachers last",
			setup: func(m *store.Memory) { m.AssignTeacher(model.ScopeGrade, "7", "g7") },
			want:  []string{"g1", "g2", "g7"},
		},
		{
			name:  "guardian who also teaches is listed once",
			setup: func(m *store.Memory) { m.AssignTeacher(model.ScopeAdviser, "7-A", "g1") },
			want:  []string{"g1", "g2"},
		},
		{
			name:  "guardians only",
			setup: func(*store.Memory) {},
			want:  []string{"g1", "g2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := store.NewMemory()
			tt.setup(m)
			got := newDispatcher(m).Recipients(context.Background(), ana)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuild(t *testing.T) {
	n := newDispatcher(store.NewMemory()).Build(ana, lateRecord(), []string{"g1"})
	assert.Equal(t, "Ana Cruz arrived at school at 7:45 AM. Late arrival (15 min late)", n.Message)
	assert.Equal(t, model.NotificationTypeAttendance, n.Type)
	assert.True(t, n.IsUrgent)
	assert.Equal(t, "r1", n.RelatedRecord)
	assert.Equal(t, "s1", n.StudentID)

	rec := lateRecord()
	rec.Direction = model.Exit
	rec.Status = model.Present
	rec.Remarks = "Dismissal recorded"
	rec.Timestamp = time.Date(2024, 6, 3, 8, 5, 0, 0, time.UTC)
	n = newDispatcher(store.NewMemory()).Build(ana, rec, []string{"g1"})
	assert.Equal(t, "Ana Cruz left school at 4:05 PM. Dismissal recorded", n.Message)
	assert.False(t, n.IsUrgent)
}

func TestDispatch(t *testing.T) {
	m := store.NewMemory()
	ok, err := newDispatcher(m).Dispatch(context.Background(), ana, lateRecord())
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, m.Notifications(), 1)
	assert.Equal(t, []string{"g1", "g2"}, m.Notifications()[0].TargetUsers)
}

func TestDispatchWithoutRecipients(t *testing.T) {
	m := store.NewMemory()
	ok, err := newDispatcher(m).Dispatch(context.Background(), model.Student{ID: "s2"}, lateRecord())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, m.Notifications())
}

func TestNotifySwallowsFailure(t *testing.T) {
	m := store.NewMemory()
	m.Fail = errors.New("down")
	d := newDispatcher(m)

	_, err := d.Dispatch(context.Background(), ana, lateRecord())
	require.Error(t, err)
	assert.NotPanics(t, func() { d.Notify(context.Background(), ana, lateRecord()) })
}

func TestPublisherAndWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := store.NewMemory()
	q := queue.NewInMemory(8)
	NewPublisher(q, zap.NewNop()).Notify(ctx, ana, lateRecord())
	require.NoError(t, q.Publish(ctx, queue.Message{Type: "other"}))

	done := make(chan error, 1)
	go func() { done <- Run(ctx, q, newDispatcher(m), zap.NewNop()) }()

	require.Eventually(t, func() bool { return len(m.Notifications()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "r1", m.Notifications()[0].RelatedRecord)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
