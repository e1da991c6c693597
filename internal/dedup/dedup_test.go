package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSuppressorWindow(t *testing.T) {
	ctx := context.Background()
	s := NewSuppressor(3*time.Second, 10*time.Second)
	t0 := time.Date(2024, 6, 3, 7, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		key  string
		at   time.Time
		want bool
	}{
		{name: "first read", key: "EDU-2024-1234-5678", at: t0, want: true},
		{name: "same card 2s later", key: "EDU-2024-1234-5678", at: t0.Add(2 * time.Second), want: false},
		{name: "other card", key: "EDU-2024-0000-0001", at: t0.Add(2 * time.Second), want: true},
		{name: "same card after window", key: "EDU-2024-1234-5678", at: t0.Add(3 * time.Second), want: true},
		{name: "again immediately", key: "EDU-2024-1234-5678", at: t0.Add(3500 * time.Millisecond), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Allow(ctx, tt.key, tt.at))
		})
	}
}

func TestSuppressorPrunesAfterRetention(t *testing.T) {
	ctx := context.Background()
	s := NewSuppressor(3*time.Second, 10*time.Second)
	t0 := time.Date(2024, 6, 3, 7, 15, 0, 0, time.UTC)

	for i, k := range []string{"a", "b", "c"} {
		s.Allow(ctx, k, t0.Add(time.Duration(i)*time.Second))
	}
	assert.Equal(t, 3, s.Len())

	s.Allow(ctx, "d", t0.Add(11500*time.Millisecond))
	assert.Equal(t, 2, s.Len(), "a and b are older than retention")
}

func TestSuppressorDefaults(t *testing.T) {
	s := NewSuppressor(0, 0)
	assert.Equal(t, DefaultWindow, s.window)
	assert.Equal(t, DefaultRetention, s.retention)
}

func TestSuppressorConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := NewSuppressor(DefaultWindow, DefaultRetention)
	at := time.Now()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Allow(ctx, "same", at) {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, allowed.Load())
}

func TestSuppressorForget(t *testing.T) {
	ctx := context.Background()
	s := NewSuppressor(3*time.Second, 10*time.Second)
	t0 := time.Date(2024, 6, 3, 7, 15, 0, 0, time.UTC)

	assert.True(t, s.Allow(ctx, "k", t0))
	assert.False(t, s.Allow(ctx, "k", t0.Add(time.Second)))

	s.Forget(ctx, "k")
	assert.True(t, s.Allow(ctx, "k", t0.Add(2*time.Second)))
	assert.False(t, s.Allow(ctx, "k", t0.Add(3*time.Second)))

	s.Forget(ctx, "missing")
	assert.Equal(t, 1, s.Len())
}
