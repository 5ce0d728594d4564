// Package scheduler runs tasks on a bounded pool of workers. Tasks sharing a
// key run one at a time in submission order; tasks with different keys run
// in parallel.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"texlsp/internal/metrics"
)

var log = commonlog.GetLogger("texlsp.scheduler")

var ErrStopped = errors.New("scheduler: stopped")

type Task struct {
	Name    string
	Key     string
	Execute func(ctx context.Context) error
}

type Scheduler struct {
	workers int

	mu      sync.Mutex
	cond    *sync.Cond
	lanes   map[string][]Task // queued, not yet started
	running map[string]bool
	ready   []string // keys with queued tasks and none running
	pending int      // queued plus running
	idle    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

// New creates a scheduler with the given number of workers.
func New(workers int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	idle := make(chan struct{})
	close(idle)
	s := &Scheduler{
		workers: workers,
		lanes:   make(map[string][]Task),
		running: make(map[string]bool),
		idle:    idle,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the workers. Tasks receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.work(ctx)
	}
}

func (s *Scheduler) work(ctx context.Context) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.ready) == 0 && !(s.stopped && s.pending == 0) {
			s.cond.Wait()
		}
		if len(s.ready) == 0 {
			s.mu.Unlock()
			return
		}
		key := s.ready[0]
		s.ready = s.ready[1:]
		lane := s.lanes[key]
		task := lane[0]
		if len(lane) == 1 {
			delete(s.lanes, key)
		} else {
			s.lanes[key] = lane[1:]
		}
		s.running[key] = true
		s.mu.Unlock()
		metrics.QueueDepth.Dec()

		s.run(ctx, task)

		s.mu.Lock()
		delete(s.running, key)
		if len(s.lanes[key]) > 0 {
			s.ready = append(s.ready, key)
			s.cond.Signal()
		}
		s.pending--
		if s.pending == 0 {
			close(s.idle)
			s.cond.Broadcast()
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	log.Debugf("executing %s", task.Name)
	if err := task.Execute(ctx); err != nil {
		log.Errorf("task %s failed: %s", task.Name, err)
	}
}

// Schedule queues a task behind all earlier tasks with the same key.
func (s *Scheduler) Schedule(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
	metrics.QueueDepth.Inc()
	lane, queued := s.lanes[task.Key]
	s.lanes[task.Key] = append(lane, task)
	if !queued && !s.running[task.Key] {
		s.ready = append(s.ready, task.Key)
		s.cond.Signal()
	}
	return nil
}

// SchedulePeriodic queues task every interval until ctx is done. A tick is
// skipped while an earlier run of the same key is still queued.
func (s *Scheduler) SchedulePeriodic(ctx context.Context, interval time.Duration, task Task) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.mu.Lock()
				busy := len(s.lanes[task.Key]) > 0
				s.mu.Unlock()
				if busy {
					log.Debugf("skipped scheduling %s, still queued", task.Name)
					continue
				}
				if err := s.Schedule(task); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait blocks until no task is queued or running, or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued and running tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Stop rejects new tasks, runs the queued ones and waits for the workers.
func (s *Scheduler) Stop() {
	log.Info("stopping scheduler")
	s.mu.Lock()
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.wg.Wait()
	log.Info("scheduler stopped")
}
