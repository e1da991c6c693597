package store

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gateattend/internal/model"
)

var _ Repository = (*Memory)(nil)
var _ Repository = (*Postgres)(nil)
var _ Repository = (*Firestore)(nil)

func TestMemoryInsertRecordOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	rec := model.AttendanceRecord{
		ID: "r1", StudentID: "s1", Date: "2024-06-03", Session: model.Morning, Direction: model.Entry,
		Timestamp: time.Date(2024, 6, 3, 7, 15, 0, 0, time.UTC), Status: model.Present,
	}

	var wg sync.WaitGroup
	created := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := rec
			r.ID = "r" + string(rune('a'+i))
			stored, ok, err := m.InsertRecord(ctx, r)
			assert.NoError(t, err)
			if ok {
				created <- stored.ID
			}
		}(i)
	}
	wg.Wait()
	close(created)

	var ids []string
	for id := range created {
		ids = append(ids, id)
	}
	assert.Len(t, ids, 1)
	assert.Len(t, m.Records(), 1)

	got, err := m.GetRecord(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, ids[0], got.ID)
}

func TestMemoryFindStudent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.PutStudent(model.Student{ID: "s1", DisplayName: "Ana Cruz", StudentNumber: "EDU-2024-0001-0001", LRN: "123456789012"})

	tests := []struct {
		field model.StudentField
		value string
		found bool
	}{
		{model.FieldID, "s1", true},
		{model.FieldStudentNumber, "EDU-2024-0001-0001", true},
		{model.FieldLRN, "123456789012", true},
		{model.FieldName, "Ana Cruz", true},
		{model.FieldQRCode, "", false},
		{model.FieldName, "ana cruz", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.field)+"="+tt.value, func(t *testing.T) {
			s, err := m.FindStudent(ctx, tt.field, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.found, s != nil)
		})
	}
}

func TestMemoryLoadSeed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	err := m.LoadSeed(strings.NewReader(`{
		"students": [{"id": "s1", "display_name": "Ana", "class_id": "7-A", "guardian_ids": ["g1"]}],
		"teachers": [{"id": "t1", "scope": "adviser", "value": "7-A"}],
		"schedule": {"jhs_in": "07:15"}
	}`))
	require.NoError(t, err)

	s, err := m.FindStudent(ctx, model.FieldID, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, s.GuardianIDs)

	ids, err := m.FindTeachers(ctx, model.ScopeAdviser, "7-A")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids)

	conf, err := m.GetScheduleConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "07:15", conf["jhs_in"])
}

func TestMemoryScheduleConfigAbsent(t *testing.T) {
	conf, err := NewMemory().GetScheduleConfig(context.Background())
	require.NoError(t, err)
	assert.Nil(t, conf)
}

func TestRecordDocID(t *testing.T) {
	key := model.RecordKey{StudentID: "a/b", Date: "2024-06-03", Session: model.Afternoon, Direction: model.Exit}
	assert.Equal(t, "a%2Fb_2024-06-03_afternoon_exit", RecordDocID(key))

	ids := map[string]string{}
	for _, sid := range []string{"a/b", "a_b", "a%2Fb", "a b"} {
		key.StudentID = sid
		id := RecordDocID(key)
		assert.True(t, validDocID(id), id)
		assert.NotContains(t, ids, id, "%q collides with %q", sid, ids[id])
		ids[id] = sid
	}
	assert.True(t, validDocID("s1"))
	assert.False(t, validDocID("a/b"))
	assert.False(t, validDocID(""))
}
