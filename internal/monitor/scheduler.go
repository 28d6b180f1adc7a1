package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/cachewatch/pkg/models"
)

// Runner is satisfied by *Monitor.
type Runner interface {
	Run(ctx context.Context) (*models.RunReport, error)
}

// LastRun describes the most recent run a Scheduler executed.
type LastRun struct {
	Report     *models.RunReport `json:"report,omitempty"`
	Error      string            `json:"error,omitempty"`
	FailedStep Step              `json:"failed_step,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
	Runs       int               `json:"runs"`
	Failures   int               `json:"failures"`
}

// Scheduler runs a Runner every interval from a single goroutine, so runs
// never overlap. A run that outlasts the interval delays the next one.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last LastRun
	ran  bool
}

// NewScheduler creates a Scheduler. Each run is bounded by timeout.
func NewScheduler(r Runner, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   r,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single bounded run and records its outcome.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.RunReport, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.runner.Run(runCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ran = true
	s.last.Runs++
	s.last.FinishedAt = s.now().UTC()
	if err != nil {
		s.last.Failures++
		s.last.Report = nil
		s.last.Error = err.Error()
		s.last.FailedStep = FailedStep(err)
		s.logger.Error("scheduled run failed", "step", s.last.FailedStep, "error", err)
	} else {
		s.last.Report = report
		s.last.Error = ""
		s.last.FailedStep = ""
	}
	return report, err
}

// Last returns the outcome of the most recent run and whether any run has finished.
func (s *Scheduler) Last() (LastRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.ran
}
