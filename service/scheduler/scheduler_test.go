package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cascata-io/cascata/internal/clock"
)

type recorder struct {
	mu    sync.Mutex
	fired []string
}

func (r *recorder) mark(name string) func(context.Context) {
	return func(context.Context) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fired = append(r.fired, name)
	}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fired...)
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(WithClock(fake))
	defer svc.Stop()

	rec := &recorder{}
	key := Key{InstanceID: "i1", StepID: "s1"}
	svc.Schedule(key, 25*time.Minute, rec.mark("escalate"))
	svc.Schedule(key, 15*time.Minute, rec.mark("notify"))
	svc.Schedule(key, 30*time.Minute, rec.mark("timeout"))

	fake.Advance(16 * time.Minute)
	assert.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got) == 1 && got[0] == "notify"
	}, time.Second, time.Millisecond)

	fake.Advance(20 * time.Minute)
	assert.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got) == 3 && got[1] == "escalate" && got[2] == "timeout"
	}, time.Second, time.Millisecond)
}

func TestCancelStepDisarmsAllTimers(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(WithClock(fake))
	defer svc.Stop()

	rec := &recorder{}
	key := Key{InstanceID: "i1", StepID: "s1"}
	other := Key{InstanceID: "i1", StepID: "s2"}
	svc.Schedule(key, 10*time.Minute, rec.mark("a"))
	svc.Schedule(key, 20*time.Minute, rec.mark("b"))
	svc.Schedule(other, 10*time.Minute, rec.mark("other"))

	svc.CancelStep(key)
	assert.Equal(t, 0, svc.Pending(key))
	assert.Equal(t, 1, svc.Pending(other))

	fake.Advance(time.Hour)
	assert.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got) == 1 && got[0] == "other"
	}, time.Second, time.Millisecond)
}

func TestCancelSingleTimer(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(WithClock(fake))
	defer svc.Stop()

	rec := &recorder{}
	key := Key{InstanceID: "i1", StepID: "s1"}
	id := svc.Schedule(key, 10*time.Minute, rec.mark("cancelled"))
	svc.Schedule(key, 10*time.Minute, rec.mark("kept"))

	svc.Cancel(id)
	svc.Cancel(id) // second cancel is a no-op

	fake.Advance(11 * time.Minute)
	assert.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got) == 1 && got[0] == "kept"
	}, time.Second, time.Millisecond)
}

func TestCancelInstanceDisarmsEverything(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(WithClock(fake))
	defer svc.Stop()

	rec := &recorder{}
	svc.Schedule(Key{InstanceID: "i1", StepID: "s1"}, time.Minute, rec.mark("a"))
	svc.Schedule(Key{InstanceID: "i1", StepID: "s2"}, time.Minute, rec.mark("b"))
	svc.Schedule(Key{InstanceID: "i2", StepID: "s1"}, time.Minute, rec.mark("survivor"))

	svc.CancelInstance("i1")
	fake.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool {
		got := rec.snapshot()
		return len(got) == 1 && got[0] == "survivor"
	}, time.Second, time.Millisecond)
}

func TestFiredTimerIsGone(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(WithClock(fake))
	defer svc.Stop()

	rec := &recorder{}
	key := Key{InstanceID: "i1", StepID: "s1"}
	id := svc.Schedule(key, time.Minute, rec.mark("once"))

	fake.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, time.Second, time.Millisecond)

	// cancelling after the fire is a no-op, and nothing fires twice
	svc.Cancel(id)
	fake.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestScheduleAfterStopIsIgnored(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(WithClock(fake))
	svc.Stop()

	rec := &recorder{}
	id := svc.Schedule(Key{InstanceID: "i1", StepID: "s1"}, 0, rec.mark("never"))
	assert.Equal(t, TimerID(""), id)
}
