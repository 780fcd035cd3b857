// Package scheduler runs the periodic jobs behind the bot: the poll
// reconcile sweep that backs up the per-poll countdowns.
package scheduler

import (
	"context"
	"time"

	log15 "github.com/inconshreveable/log15/v3"
	"github.com/robfig/cron/v3"

	"bookclubbot/poll"
)

const sweepTimeout = 30 * time.Second

// Start arms the cron jobs and returns the running scheduler. The sweep
// resolves any active poll already past its stored deadline, so a lost or
// misfired countdown only delays resolution by at most one sweep interval.
func Start(engine *poll.Engine, logger log15.Logger) *cron.Cron {
	log := logger.New("module", "scheduler")

	c := cron.New()
	_, err := c.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		engine.Reconcile(ctx)
	})
	if err != nil {
		log.Crit("failed to register reconcile sweep", "err", err)
		return c
	}

	c.Start()
	log.Info("reconcile sweep started", "interval", "1m")
	return c
}
