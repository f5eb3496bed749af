package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/DevRickLin/feishu-meetbot/internal/biz/usecase"
	"github.com/DevRickLin/feishu-meetbot/internal/logging"
)

// StaleJanitor deletes meetings left behind by a crashed process.
// Live meetings are touched every tick and never qualify.
type StaleJanitor struct {
	meetings   *usecase.MeetingUsecase
	staleAfter time.Duration
	interval   time.Duration
	now        func() time.Time
	log        *slog.Logger

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewStaleJanitor creates a janitor sweeping every interval
func NewStaleJanitor(meetings *usecase.MeetingUsecase, staleAfter, interval time.Duration) *StaleJanitor {
	if interval <= 0 {
		interval = staleAfter / 4
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &StaleJanitor{
		meetings:   meetings,
		staleAfter: staleAfter,
		interval:   interval,
		now:        time.Now,
		log:        slog.With("component", "janitor"),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the sweep loop; the first sweep runs immediately
func (j *StaleJanitor) Start() {
	if j.running || j.staleAfter <= 0 {
		return
	}
	j.running = true
	j.wg.Add(1)
	go j.loop()
	j.log.Info("started", "stale_after", j.staleAfter, "interval", j.interval)
}

// Stop stops the sweep loop
func (j *StaleJanitor) Stop() {
	if !j.running {
		return
	}
	j.running = false
	close(j.stopCh)
	j.wg.Wait()
	j.log.Info("stopped")
}

func (j *StaleJanitor) loop() {
	defer j.wg.Done()

	j.Sweep(context.Background())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep(context.Background())
		case <-j.stopCh:
			return
		}
	}
}

// Sweep deletes meetings untouched for longer than the stale age
func (j *StaleJanitor) Sweep(ctx context.Context) int64 {
	count, err := j.meetings.CleanupStale(ctx, j.now().Add(-j.staleAfter))
	if err != nil {
		j.log.ErrorContext(ctx, "cleanup failed", logging.ErrKey, err)
		return 0
	}
	if count > 0 {
		j.log.InfoContext(ctx, "cleaned up stale meetings", "count", count)
	}
	return count
}
