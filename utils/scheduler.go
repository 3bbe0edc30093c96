package utils

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"brokerdesk/logger"
)

// StartCronJob runs job on spec, a standard five-field cron expression. A
// run that is still going when the next one is due is skipped. The caller
// stops the returned scheduler.
func StartCronJob(name, spec string, job func(ctx context.Context) error) (*cron.Cron, error) {
	log := logger.GetLogger().With(zap.String("job", name))

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx := logger.WithContext(context.Background(), log)
		if err := job(ctx); err != nil {
			log.Error("Scheduled job failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q for %s", spec, name)
	}

	c.Start()
	log.Info("Scheduler started", zap.String("schedule", spec))
	return c, nil
}
