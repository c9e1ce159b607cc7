package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/packrescue/packrescue-backend/pkg/logger"
)

// OrderExpiryJobParams configure the order expiry job.
type OrderExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper *Sweeper
	Now     func() time.Time
}

// NewOrderExpiryJob builds the cron job that expires overdue orders.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &orderExpiryJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		now:     params.Now,
	}, nil
}

type orderExpiryJob struct {
	logg    *logger.Logger
	sweeper *Sweeper
	now     func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	count, err := j.sweeper.Sweep(ctx, j.now().UTC(), false)
	if err != nil {
		return fmt.Errorf("sweep overdue orders: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return nil
}
