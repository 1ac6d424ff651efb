package workers

import (
	"context"
	"fmt"
	"huddle/contract"
	"huddle/errors"
	"log/slog"
	"sync"
	"time"
)

const waitTimeBeforeRestart = 200 * time.Millisecond

// RestartPolicy bounds how a crashed worker is restarted.
// The delay doubles after each consecutive failure, capped by MaxDelay.
// MaxAttempts is the number of consecutive restarts allowed, zero meaning unlimited.
type RestartPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func (p RestartPolicy) delay(failures int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = waitTimeBeforeRestart
	}
	d := base
	for i := 1; i < failures; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Supervisor Own a context and a Cancel function
// Run each worker in a goroutine
// Check panics and errors
// Restart workers with backoff, give up after too many consecutive failures
// Shutdown properly if parent context is canceled
// Wait for the end of all goroutines via WaitGroup
type Supervisor struct {
	mu      sync.Mutex
	cancel  context.CancelFunc // To stop the context
	wg      *sync.WaitGroup    // Wait for the end of goroutines
	log     *slog.Logger
	policy  RestartPolicy
	workers []contract.Worker
}

func NewSupervisor(log *slog.Logger, policy RestartPolicy) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, policy: policy}
}

// Run Create a local cancellation trigger tied to the parent ctx
//
//	// If the parent (main) cancels, we Cancel.
//	// If WE call s.Stop(), only our children Cancel.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision and returns a channel closed when
// supervision of that worker ends.
// If Run panics or fails, the worker is restarted after the policy delay.
// A worker reporting progress clears its failure streak. Once the streak exceeds
// MaxAttempts the worker is abandoned and, if it is Degradable, told why.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) <-chan struct{} {
	s.wg.Add(1)
	done := make(chan struct{})
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()
		defer close(done)

		failures := 0
		for {
			if ctx.Err() != nil {
				s.log.Debug(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Debug(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Debug("Worker stopped (context canceled)", "name", workerName)
				return
			}

			if p, ok := worker.(contract.ProgressReporter); ok && p.MadeProgress() {
				failures = 0
			}
			failures++

			if s.policy.MaxAttempts > 0 && failures > s.policy.MaxAttempts {
				s.log.Error("Worker abandoned after repeated failures",
					"name", workerName, "attempts", failures, "error", err)
				if d, ok := worker.(contract.Degradable); ok {
					d.Degrade(err)
				}
				return
			}

			delay := s.policy.delay(failures)
			s.log.Warn("Worker crashed, restarting",
				"name", workerName, "error", err, "attempt", failures, "delay", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
	}()
	return done
}

// Stop Cancel all goroutines listening channel for Ctx.Done
// Supervisor will wait for all goroutines to finish
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until every supervised goroutine returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}
