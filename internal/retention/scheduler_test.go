package retention

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/Laisky/filestream/internal/artifact"
)

type deletion struct {
	ref artifact.Reference
	at  time.Time
}

type recordingDeleter struct {
	mu      sync.Mutex
	deleted []deletion
	err     error
}

func (d *recordingDeleter) Delete(ctx context.Context, ref artifact.Reference) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("deletion must run with a deadline")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.deleted = append(d.deleted, deletion{ref: ref, at: time.Now()})
	return d.err
}

func (d *recordingDeleter) snapshot() []deletion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]deletion(nil), d.deleted...)
}

func newTestScheduler(t *testing.T) (*Scheduler, *recordingDeleter) {
	t.Helper()
	deleter := &recordingDeleter{}
	s, err := NewScheduler(deleter, WithDeleteTimeout(time.Second))
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, deleter
}

func TestScheduleNonPositiveDelayNeverDeletes(t *testing.T) {
	s, deleter := newTestScheduler(t)
	ref := artifact.Reference{FileID: "1", Locator: "l1"}

	require.False(t, s.Schedule(ref, 0))
	require.False(t, s.Schedule(ref, -time.Second))
	require.Equal(t, 0, s.Pending())

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, deleter.snapshot())
}

func TestScheduleDeletesNotBeforeDelay(t *testing.T) {
	s, deleter := newTestScheduler(t)
	ref := artifact.Reference{FileID: "1", Locator: "l1"}
	delay := 40 * time.Millisecond

	startAt := time.Now()
	require.True(t, s.Schedule(ref, delay))
	require.Equal(t, 1, s.Pending())
	require.Less(t, time.Since(startAt), delay, "schedule must not block")

	require.Eventually(t, func() bool { return len(deleter.snapshot()) == 1 },
		time.Second, 5*time.Millisecond)

	got := deleter.snapshot()[0]
	require.Equal(t, ref, got.ref)
	require.GreaterOrEqual(t, got.at.Sub(startAt), delay)
	require.Equal(t, 0, s.Pending())
}

func TestRescheduleLastOneWins(t *testing.T) {
	s, deleter := newTestScheduler(t)
	ref := artifact.Reference{FileID: "1", Locator: "l1"}

	startAt := time.Now()
	require.True(t, s.Schedule(ref, 20*time.Millisecond))
	require.True(t, s.Schedule(ref, 80*time.Millisecond))
	require.Equal(t, 1, s.Pending())

	require.Eventually(t, func() bool { return len(deleter.snapshot()) == 1 },
		time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, deleter.snapshot()[0].at.Sub(startAt), 80*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Len(t, deleter.snapshot(), 1)
}

func TestCancel(t *testing.T) {
	s, deleter := newTestScheduler(t)
	ref := artifact.Reference{FileID: "1", Locator: "l1"}

	require.True(t, s.Schedule(ref, 20*time.Millisecond))
	require.True(t, s.Cancel(ref))
	require.False(t, s.Cancel(ref))
	require.Equal(t, 0, s.Pending())

	time.Sleep(60 * time.Millisecond)
	require.Empty(t, deleter.snapshot())
}

func TestStopDisarmsTimers(t *testing.T) {
	deleter := &recordingDeleter{}
	s, err := NewScheduler(deleter)
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "3"} {
		require.True(t, s.Schedule(artifact.Reference{FileID: id}, 20*time.Millisecond))
	}
	require.Equal(t, 3, s.Pending())

	s.Stop()
	require.Equal(t, 0, s.Pending())
	require.False(t, s.Schedule(artifact.Reference{FileID: "4"}, time.Millisecond))

	time.Sleep(60 * time.Millisecond)
	require.Empty(t, deleter.snapshot())
}

func TestDeleteErrorIsContained(t *testing.T) {
	s, deleter := newTestScheduler(t)
	deleter.err = errors.New("backend down")

	require.True(t, s.Schedule(artifact.Reference{FileID: "1"}, time.Millisecond))
	require.True(t, s.Schedule(artifact.Reference{FileID: "2"}, time.Millisecond))

	require.Eventually(t, func() bool { return len(deleter.snapshot()) == 2 },
		time.Second, 5*time.Millisecond)
	require.Equal(t, 0, s.Pending())
}

func TestDeleterFunc(t *testing.T) {
	var got artifact.Reference
	s, err := NewScheduler(DeleterFunc(func(_ context.Context, ref artifact.Reference) error {
		got = ref
		return nil
	}))
	require.NoError(t, err)
	defer s.Stop()

	require.True(t, s.Schedule(artifact.Reference{FileID: "x"}, time.Millisecond))
	require.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, 5*time.Millisecond)
	s.Stop()
	require.Equal(t, "x", got.FileID)

	_, err = NewScheduler(nil)
	require.Error(t, err)
}
