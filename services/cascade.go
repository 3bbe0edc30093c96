// Package services coordinates writes that span several stores. Each such
// write is an ordered list of named steps. Outside atomic mode every step
// commits on its own, and a failure after the first committed step is
// reported as an apperror.CascadeError naming what was already applied.
package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerdesk/apperror"
	"brokerdesk/logger"
	"brokerdesk/metrics"
	"brokerdesk/stores"
)

type step struct {
	name string
	run  func(ctx context.Context, s *stores.Stores) error
}

// stepHook runs before each step and may fail it.
type stepHook func(ctx context.Context, s *stores.Stores, operation, step string) error

type cascadeRunner struct {
	db         *gorm.DB
	atomic     bool
	beforeStep stepHook
}

// run executes steps in order. Caller cancellation does not stop a cascade
// once it has started.
func (r *cascadeRunner) run(ctx context.Context, operation string, steps []step) error {
	ctx = context.WithoutCancel(ctx)
	if r.atomic {
		return r.runAtomic(ctx, operation, steps)
	}

	completed, failed, err := r.runSteps(ctx, stores.New(r.db), operation, steps)
	if err == nil {
		return nil
	}
	if len(completed) == 0 {
		return err
	}
	logger.FromContext(ctx).Error("Cascade partially applied",
		zap.String("operation", operation),
		zap.Strings("completed", completed),
		zap.String("failed", failed),
		zap.Error(err),
	)
	return apperror.NewCascadeError(operation, completed, failed, err)
}

func (r *cascadeRunner) runAtomic(ctx context.Context, operation string, steps []step) error {
	var completed []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		completed, _, err = r.runSteps(ctx, stores.New(tx), operation, steps)
		return err
	})
	if err != nil {
		for _, name := range completed {
			metrics.CascadeSteps.WithLabelValues(operation, name, "rolled_back").Inc()
		}
		if len(completed) > 0 {
			logger.FromContext(ctx).Warn("Cascade rolled back",
				zap.String("operation", operation),
				zap.Strings("rolled_back", completed),
				zap.Error(err),
			)
		}
	}
	return err
}

func (r *cascadeRunner) runSteps(ctx context.Context, s *stores.Stores, operation string, steps []step) ([]string, string, error) {
	log := logger.FromContext(ctx)
	completed := make([]string, 0, len(steps))
	for _, st := range steps {
		start := time.Now()
		err := r.hook(ctx, s, operation, st.name)
		if err == nil {
			err = st.run(ctx, s)
		}
		if err != nil {
			metrics.CascadeSteps.WithLabelValues(operation, st.name, "failed").Inc()
			log.Warn("Cascade step failed",
				zap.String("operation", operation),
				zap.String("step", st.name),
				zap.Error(err),
			)
			return completed, st.name, err
		}
		metrics.CascadeSteps.WithLabelValues(operation, st.name, "ok").Inc()
		log.Debug("Cascade step applied",
			zap.String("operation", operation),
			zap.String("step", st.name),
			zap.Duration("took", time.Since(start)),
		)
		completed = append(completed, st.name)
	}
	return completed, "", nil
}

func (r *cascadeRunner) hook(ctx context.Context, s *stores.Stores, operation, name string) error {
	if r.beforeStep == nil {
		return nil
	}
	return r.beforeStep(ctx, s, operation, name)
}
