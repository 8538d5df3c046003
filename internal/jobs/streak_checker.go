package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"taskquest/internal/notify"
	"taskquest/internal/services"
)

// StreakChecker warns users whose streaks are about to eat grace and
// breaks streaks that can no longer be saved.
type StreakChecker struct {
	streaks   *services.StreakService
	notifier  notify.Notifier
	log       *zap.Logger
	scheduler gocron.Scheduler
}

// NewStreakChecker creates a new StreakChecker
func NewStreakChecker(streaks *services.StreakService, notifier notify.Notifier, log *zap.Logger) *StreakChecker {
	return &StreakChecker{streaks: streaks, notifier: notifier, log: log}
}

// Start schedules the daily run shortly after midnight UTC.
func (c *StreakChecker) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	c.scheduler = sched

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 15, 0))),
		gocron.NewTask(c.Run),
	)
	if err != nil {
		return err
	}

	sched.Start()
	return nil
}

// Stop shuts the scheduler down.
func (c *StreakChecker) Stop() {
	if c.scheduler != nil {
		_ = c.scheduler.Shutdown()
	}
}

// Run executes one sweep. Exposed so operators can trigger it by hand.
func (c *StreakChecker) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now().UTC()

	atRisk, err := c.streaks.ListAtRisk(ctx, now)
	if err != nil {
		c.log.Error("streak at-risk scan failed", zap.Error(err))
	} else {
		for _, st := range atRisk {
			c.notifier.Notify(ctx, st.UserID, notify.EventStreakAtRisk, map[string]interface{}{
				"streak_type":   st.StreakType,
				"reference_id":  st.ReferenceID,
				"current_count": st.CurrentCount,
			})
		}
	}

	broken, err := c.streaks.BreakOverdue(ctx, now)
	if err != nil {
		c.log.Error("streak break sweep failed", zap.Error(err))
		return
	}
	if broken > 0 {
		c.log.Info("streaks broken", zap.Int("count", broken))
	}
}
