// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one periodic job run by the scheduler.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler runs registered tasks on their own tickers until stopped. Queue
// scans, timeout sweeps and finished-room cleanup all hang off this.
type Scheduler struct {
	mu     sync.Mutex
	tasks  []Task
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *logrus.Logger
}

// New returns a scheduler with no tasks.
func New(log *logrus.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Register adds a periodic task. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, run func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Run: run})
}

// Start launches one goroutine per task.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runLoop(ctx, task)
	}
	s.log.WithField("tasks", len(s.tasks)).Info("scheduler started")
}

func (s *Scheduler) runLoop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.WithField("task", task.Name).Debug("scheduler task stopped")
			return
		case <-ticker.C:
			task.Run(ctx)
		}
	}
}

// Stop cancels every task and waits for the loops to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
