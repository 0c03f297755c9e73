// Package scheduler arms, tracks and cancels the per-step timers behind
// approval timeouts and escalations.  Timers race human actions: the core
// correctness property is that a timer is either cancelled before it is
// popped, or fired exactly once, never both, never twice.
package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cascata-io/cascata/internal/clock"
	"github.com/cascata-io/cascata/internal/idgen"
)

// Key groups the timers armed for one step of one instance.
type Key struct {
	InstanceID string
	StepID     string
}

// TimerID identifies one armed timer.
type TimerID string

type timer struct {
	id    TimerID
	key   Key
	at    time.Time
	fire  func(context.Context)
	index int
}

// Service owns the deadline heap and its run loop.
type Service struct {
	mu    sync.Mutex
	clock clock.Clock
	log   *logrus.Logger

	heap  timerHeap
	byID  map[TimerID]*timer
	byKey map[Key]map[TimerID]*timer

	wake    chan struct{}
	stop    chan struct{}
	stopped bool
}

// Option customises the scheduler.
type Option func(*Service)

// WithClock injects the time source; tests use a fake clock and Advance.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) { s.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates a scheduler and starts its run loop.
func New(options ...Option) *Service {
	ret := &Service{
		byID:  make(map[TimerID]*timer),
		byKey: make(map[Key]map[TimerID]*timer),
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.clock == nil {
		ret.clock = clock.System()
	}
	if ret.log == nil {
		ret.log = logrus.New()
	}
	go ret.run()
	return ret
}

// Schedule arms a timer firing after delay.  The callback runs on the
// scheduler goroutine outside the scheduler lock; it must acquire the
// instance's own serialization before mutating state.
func (s *Service) Schedule(key Key, delay time.Duration, fire func(context.Context)) TimerID {
	t := &timer{
		id:   TimerID(idgen.New()),
		key:  key,
		at:   s.clock.Now().Add(delay),
		fire: fire,
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ""
	}
	heap.Push(&s.heap, t)
	s.byID[t.id] = t
	group, ok := s.byKey[key]
	if !ok {
		group = make(map[TimerID]*timer)
		s.byKey[key] = group
	}
	group[t.id] = t
	s.mu.Unlock()
	s.kick()
	return t.id
}

// Cancel disarms a single timer.  Cancelling an already fired or unknown
// timer is a no-op.
func (s *Service) Cancel(id TimerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byID[id]; ok {
		s.remove(t)
	}
}

// CancelStep disarms every timer armed for the given step.  Called the
// instant a step resolves, through any path.
func (s *Service) CancelStep(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byKey[key] {
		s.remove(t)
	}
}

// CancelInstance disarms every timer of every step of an instance, so
// that no dangling callback fires against a discarded instance.
func (s *Service) CancelInstance(instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, group := range s.byKey {
		if key.InstanceID != instanceID {
			continue
		}
		for _, t := range group {
			s.remove(t)
		}
	}
}

// Pending reports how many timers are armed for a step.
func (s *Service) Pending(key Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey[key])
}

// Stop terminates the run loop; armed timers never fire afterwards.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	close(s.stop)
}

// remove unindexes a timer; caller holds the lock.
func (s *Service) remove(t *timer) {
	delete(s.byID, t.id)
	if group, ok := s.byKey[t.key]; ok {
		delete(group, t.id)
		if len(group) == 0 {
			delete(s.byKey, t.key)
		}
	}
	if t.index >= 0 {
		heap.Remove(&s.heap, t.index)
	}
}

func (s *Service) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) run() {
	ctx := context.Background()
	for {
		s.mu.Lock()
		now := s.clock.Now()
		var due []*timer
		for s.heap.Len() > 0 && !s.heap[0].at.After(now) {
			t := heap.Pop(&s.heap).(*timer)
			// unindex before firing: a Cancel issued from now on is a no-op
			// and the timer can no longer fire twice
			delete(s.byID, t.id)
			if group, ok := s.byKey[t.key]; ok {
				delete(group, t.id)
				if len(group) == 0 {
					delete(s.byKey, t.key)
				}
			}
			due = append(due, t)
		}
		var wait <-chan time.Time
		if s.heap.Len() > 0 {
			wait = s.clock.After(s.heap[0].at.Sub(now))
		}
		s.mu.Unlock()

		for _, t := range due {
			t.fire(ctx)
		}
		if len(due) > 0 {
			// deadlines may have been re-armed by callbacks
			continue
		}

		select {
		case <-wait:
		case <-s.wake:
		case <-s.stop:
			return
		}
	}
}

// timerHeap is a min-heap ordered by deadline.
type timerHeap []*timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
