package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubFlushesFullBatch(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{BufferSize: 8, MaxBatchEvents: 2, MaxBatchWait: time.Minute}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageSourceStart))
	require.Eventually(t, func() bool {
		b := sink.Batches()
		return len(b) == 1 && len(b[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubFlushesAfterWait(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{MaxBatchEvents: 10, MaxBatchWait: 20 * time.Millisecond}, sink)
	defer func() { require.NoError(t, hub.Close(context.Background())) }()

	hub.Emit(sampleEvent(StageRunStart))
	require.Eventually(t, func() bool { return len(sink.Batches()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestHubCloseDrainsAndClosesSinks(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{MaxBatchEvents: 100, MaxBatchWait: time.Minute}, sink)
	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageRunDone))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	batches := sink.Batches()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	require.Equal(t, 1, sink.Closes())

	hub.Emit(sampleEvent(StageRunStart))
	require.Len(t, sink.Batches(), 1)
}

func TestHubDropsWhenFull(t *testing.T) {
	t.Parallel()

	hub := &Hub{events: make(chan Event, 1), logger: zap.NewNop()}
	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageRunStart))
	require.Equal(t, int64(1), hub.Dropped())
}

func TestHubSkipsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &stubSink{}
	hub := NewHub(Config{}, sink)
	hub.Emit(Event{Stage: StageRunStart})
	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(sampleEvent(StageRunStart))
	require.NoError(t, hub.Close(context.Background()))
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name    string
		evt     Event
		wantErr string
	}{
		{name: "run start", evt: Event{RunID: "r", TS: now, Stage: StageRunStart}},
		{name: "source done", evt: Event{RunID: "r", TS: now, Stage: StageSourceDone, SourceID: "npb"}},
		{name: "missing run", evt: Event{TS: now, Stage: StageRunStart}, wantErr: "run id"},
		{name: "missing ts", evt: Event{RunID: "r", Stage: StageRunStart}, wantErr: "timestamp"},
		{name: "missing source", evt: Event{RunID: "r", TS: now, Stage: StageSourceError}, wantErr: "source id"},
		{name: "unknown stage", evt: Event{RunID: "r", TS: now, Stage: "PAUSED"}, wantErr: "unknown stage"},
		{name: "negative duration", evt: Event{RunID: "r", TS: now, Stage: StageRunDone, Dur: -time.Second}, wantErr: "duration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.evt.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closes  int
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func (s *stubSink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func sampleEvent(stage Stage) Event {
	evt := Event{RunID: "run-1", TS: time.Now(), Stage: stage}
	if stage != StageRunStart && stage != StageRunDone {
		evt.SourceID = "npb"
	}
	return evt
}
