package workers

import (
	"context"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"huddle/errors"
	"huddle/mocks"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	workerMock := mocks.NewMockWorker(ctrl)

	var calls atomic.Int32
	workerMock.EXPECT().
		Run(gomock.Any()).
		DoAndReturn(func(ctx context.Context) error {
			calls.Add(1)
			panic("boom")
		}).
		AnyTimes()

	sup := NewSupervisor(log, RestartPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go sup.Add(workerMock).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(300 * time.Millisecond)

	req.GreaterOrEqual(calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	workerMock := mocks.NewMockWorker(ctrl)

	// Given a worker running only once
	workerMock.EXPECT().
		Run(gomock.Any()).
		Return(nil).
		Times(1)

	sup := NewSupervisor(log, RestartPolicy{})

	// Given a channel to notify when Run() terminated
	done := make(chan struct{})

	go func() {
		sup.Add(workerMock).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected  a success, returned nil and stopped
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

// flakyWorker fails every run and may report progress.
type flakyWorker struct {
	runs     atomic.Int32
	progress atomic.Bool
	degraded chan error
}

func (w *flakyWorker) Run(context.Context) error {
	w.runs.Add(1)
	return assert.AnError
}

func (w *flakyWorker) MadeProgress() bool { return w.progress.Swap(false) }

func (w *flakyWorker) Degrade(err error) { w.degraded <- err }

func TestSupervisor_Gives_Up_And_Degrades(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(logs.GetLoggerFromLevel(slog.LevelDebug),
		RestartPolicy{BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, MaxAttempts: 3})
	worker := &flakyWorker{degraded: make(chan error, 1)}

	// When a worker keeps failing
	done := sup.Start(context.Background(), worker)

	// Then it is run once plus MaxAttempts restarts, then degraded
	select {
	case err := <-worker.degraded:
		req.ErrorIs(err, assert.AnError)
	case <-time.After(time.Second):
		req.Fail("worker was never degraded")
	}
	<-done
	req.Equal(int32(4), worker.runs.Load())
}

func TestSupervisor_Stop_Ends_Restart_Loop(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(logs.GetLoggerFromLevel(slog.LevelDebug),
		RestartPolicy{BaseDelay: time.Hour})
	worker := &flakyWorker{degraded: make(chan error, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	done := sup.Start(ctx, worker)
	req.Eventually(func() bool { return worker.runs.Load() == 1 }, time.Second, time.Millisecond)

	// When the context is cancelled while waiting for the next restart
	cancel()

	// Then supervision ends without waiting for the delay
	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("supervision did not stop")
	}
	req.Empty(worker.degraded)
}

func TestRestartPolicy_Delay_Doubles_Up_To_Max(t *testing.T) {
	req := require.New(t)
	policy := RestartPolicy{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}

	req.Equal(10*time.Millisecond, policy.delay(1))
	req.Equal(20*time.Millisecond, policy.delay(2))
	req.Equal(40*time.Millisecond, policy.delay(3))
	req.Equal(50*time.Millisecond, policy.delay(4))
	req.Equal(50*time.Millisecond, policy.delay(10))
	req.Equal(waitTimeBeforeRestart, RestartPolicy{}.delay(1))
}

type panickingWorker struct {
	degraded chan error
}

func (w panickingWorker) Run(context.Context) error { panic("boom") }

func (w panickingWorker) Degrade(err error) { w.degraded <- err }

func TestSupervisor_Panic_Is_Reported_As_Error(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(logs.GetLoggerFromLevel(slog.LevelDebug),
		RestartPolicy{BaseDelay: time.Millisecond, MaxAttempts: 1})
	worker := panickingWorker{degraded: make(chan error, 1)}

	<-sup.Start(context.Background(), worker)

	req.ErrorIs(<-worker.degraded, errors.ErrWorkerPanic)
}
