// Package automa plays the turns of computer players. A job is scheduled when
// a computer player's turn begins and runs after a thinking delay, through
// the same load, mutate and save path a human move takes.
package automa

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/tabletop/internal/cache"
	"github.com/sirupsen/logrus"
)

// Job asks for the computer player's turn at a table to be played.
type Job struct {
	TableID  uuid.UUID `json:"tableId"`
	PlayerID uuid.UUID `json:"playerId"`
}

// Scheduler defers jobs.
type Scheduler interface {
	Schedule(ctx context.Context, job Job, delay time.Duration) error
}

// Handler runs one due job.
type Handler func(ctx context.Context, job Job) error

// TimerScheduler runs jobs in process. Each job waits on its own timer, and
// Run executes due jobs one at a time.
type TimerScheduler struct {
	jobs chan Job
	done chan struct{}

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		jobs:   make(chan Job, 64),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
	}
}

var _ Scheduler = (*TimerScheduler)(nil)

func (s *TimerScheduler) Schedule(_ context.Context, job Job, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("automa scheduler stopped")
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()
		select {
		case s.jobs <- job:
		case <-s.done:
		}
	})
	s.timers[timer] = struct{}{}
	return nil
}

// Pending returns the number of jobs waiting on their timer.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Run executes due jobs until ctx is done, then stops all pending timers.
func (s *TimerScheduler) Run(ctx context.Context, h Handler) {
	defer s.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			_ = h(ctx, job)
		}
	}
}

func (s *TimerScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	for t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

// RedisScheduler shares jobs between processes through a Redis sorted set.
// Delivery is at least once: a job whose handler fails is not retried, but a
// job can run after the turn it was meant for has passed, which the executor
// treats as a no-op.
type RedisScheduler struct {
	queue  *cache.DelayQueue
	poll   time.Duration
	logger *logrus.Logger
}

func NewRedisScheduler(queue *cache.DelayQueue, poll time.Duration, logger *logrus.Logger) *RedisScheduler {
	return &RedisScheduler{queue: queue, poll: poll, logger: logger}
}

var _ Scheduler = (*RedisScheduler)(nil)

// Schedule queues job. Scheduling the same job twice keeps one entry, due at
// the later time.
func (s *RedisScheduler) Schedule(ctx context.Context, job Job, delay time.Duration) error {
	member, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal automa job: %w", err)
	}
	return s.queue.Push(ctx, string(member), time.Now().Add(delay))
}

// Run polls for due jobs until ctx is done.
func (s *RedisScheduler) Run(ctx context.Context, h Handler) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx, h)
		}
	}
}

func (s *RedisScheduler) runDue(ctx context.Context, h Handler) {
	members, err := s.queue.Claim(ctx, time.Now(), 32)
	if err != nil {
		s.logger.WithError(err).Error("claim automa jobs")
	}
	for _, m := range members {
		var job Job
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			s.logger.WithField("member", m).WithError(err).Warn("invalid automa job")
			continue
		}
		_ = h(ctx, job)
	}
}
