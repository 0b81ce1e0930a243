package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecordFetchAccumulates(t *testing.T) {
	m := New()
	m.RecordFetch(true, 1024, 12.5)
	m.RecordFetch(false, 0, 30.0)
	m.RecordFetch(true, 2048, 7.5)

	totals, elapsed := m.Snapshot()
	assert.Equal(t, int64(3), totals.Pages)
	assert.Equal(t, int64(3072), totals.Bytes)
	assert.Equal(t, int64(1), totals.Errors)
	assert.InDelta(t, 50.0, totals.FetchMsSum, 1e-9)
	assert.Positive(t, elapsed)
}

func TestRecordFetchIgnoresNegativeBytes(t *testing.T) {
	m := New()
	m.RecordFetch(true, -5, 1)
	totals, _ := m.Snapshot()
	assert.Zero(t, totals.Bytes)
}

func TestSnapshotIsConsistentUnderConcurrency(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordFetch(true, 10, 1)
			}
		}()
	}
	wg.Wait()

	totals, _ := m.Snapshot()
	assert.Equal(t, int64(800), totals.Pages)
	assert.Equal(t, int64(8000), totals.Bytes)
}

func TestStatsLoggerEmitsAndStops(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := New()
	m.RecordFetch(true, 100, 5)

	// Interval below the floor is clamped to 500ms.
	s := NewStatsLogger(m, 10*time.Millisecond, zap.New(core))
	s.Start()
	time.Sleep(600 * time.Millisecond)
	s.Stop()

	entries := logs.FilterMessage("perf").All()
	assert.NotEmpty(t, entries)
}

func TestStatsLoggerStopBeforeFirstTick(t *testing.T) {
	m := New()
	s := NewStatsLogger(m, time.Hour, zap.NewNop())
	s.Start()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
