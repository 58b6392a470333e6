package tasks

import (
	"context"
	"log"
	"time"

	"github.com/gotrs-io/mailgate/internal/config"
	"github.com/gotrs-io/mailgate/internal/gateway"
	"github.com/gotrs-io/mailgate/internal/runner"
)

// FetchMailTask runs the gateway driver on the configured cron schedule.
// The external scheduler contract applies: the runner never invokes two
// overlapping passes of this task for the same configuration.
type FetchMailTask struct {
	driver  *gateway.Driver
	cfg     config.FetchConfig
	logger  *log.Logger
	running chan struct{}
}

// NewFetchMailTask builds the periodic scan task.
func NewFetchMailTask(driver *gateway.Driver, cfg config.FetchConfig) runner.Task {
	return &FetchMailTask{
		driver:  driver,
		cfg:     cfg,
		logger:  log.New(log.Writer(), "[MAIL-FETCH] ", log.LstdFlags),
		running: make(chan struct{}, 1),
	}
}

func (t *FetchMailTask) Name() string {
	return "mail-fetch"
}

func (t *FetchMailTask) Schedule() string {
	if t.cfg.Schedule != "" {
		return t.cfg.Schedule
	}
	return "0 */5 * * * *"
}

func (t *FetchMailTask) Timeout() time.Duration {
	if t.cfg.TaskTimeout > 0 {
		return t.cfg.TaskTimeout
	}
	return 10 * time.Minute
}

// Run executes one gateway pass. Overlapping ticks (a slow pass outlasting
// the schedule interval) are skipped rather than run concurrently, honoring
// the single-worker contract per folder.
func (t *FetchMailTask) Run(ctx context.Context) error {
	select {
	case t.running <- struct{}{}:
		defer func() { <-t.running }()
	default:
		t.logger.Println("previous pass still running, skipping tick")
		return nil
	}
	return t.driver.FetchAll(ctx)
}
