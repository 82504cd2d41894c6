package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTask() (*Task, func()) {
	done := make(chan struct{})
	cancelled := false
	task := &Task{
		Done: done,
	}
	task.Cancel = func() {
		if cancelled {
			return
		}
		cancelled = true
		close(done)
	}
	return task, func() { <-done }
}

// S4 Session priority eviction.
func TestInsertEvictsLowestPriority(t *testing.T) {
	m := New(2)
	ctx := context.Background()

	t10, wait10 := newTestTask()
	t20, _ := newTestTask()
	m.Insert(ctx, t10, 10)
	m.Insert(ctx, t20, 20)
	require.Equal(t, uint32(10), m.LowestPriority())

	t15, _ := newTestTask()
	m.Insert(ctx, t15, 15)
	wait10()

	require.Equal(t, uint32(15), m.LowestPriority())
	require.Equal(t, 2, m.Running())
}

// S5 Direct HTTP/2 wins.
func TestDirectHTTP2OutranksWebRTC(t *testing.T) {
	m := New(1)
	ctx := context.Background()

	webrtcTask, waitWebrtc := newTestTask()
	m.Insert(ctx, webrtcTask, 1000)

	httpTask, _ := newTestTask()
	m.Insert(ctx, httpTask, MaxPriority)
	waitWebrtc()

	require.Equal(t, uint32(MaxPriority), m.LowestPriority())
}

func TestLowestPriorityIsZeroWhenSlotsFree(t *testing.T) {
	m := New(3)
	require.Equal(t, uint32(0), m.LowestPriority())
}

func TestRunningNeverExceedsCapacity(t *testing.T) {
	m := New(2)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		task, _ := newTestTask()
		m.Insert(ctx, task, uint32(i))
		require.LessOrEqual(t, m.Running(), m.Capacity())
	}
}

func TestDrainCancelsEveryRunningTask(t *testing.T) {
	m := New(2)
	ctx := context.Background()
	t1, wait1 := newTestTask()
	t2, wait2 := newTestTask()
	m.Insert(ctx, t1, 1)
	m.Insert(ctx, t2, 2)

	done := make(chan struct{})
	go func() {
		m.Drain(ctx)
		close(done)
	}()

	wait1()
	wait2()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Drain did not complete")
	}
	require.Equal(t, 0, m.Running())
}
