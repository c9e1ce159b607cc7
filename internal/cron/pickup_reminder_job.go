package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

const defaultReminderLeadTime = 30 * time.Minute

// Notifier delivers a pickup reminder for one order. Delivery mechanics live
// behind this interface; the job only decides who to remind and when.
type Notifier interface {
	NotifyPickupReminder(ctx context.Context, order models.Order) error
}

// expiringOrderReader is the slice of the reservation repository the
// reminder job uses.
type expiringOrderReader interface {
	FindPendingExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Order, error)
}

// PickupReminderJobParams configure the pickup reminder job.
type PickupReminderJobParams struct {
	Logger   *logger.Logger
	Reader   expiringOrderReader
	Notifier Notifier
	LeadTime time.Duration
	Now      func() time.Time
}

// NewPickupReminderJob builds the cron job that reminds buyers of pickup
// windows about to close.
func NewPickupReminderJob(params PickupReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reader == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.LeadTime <= 0 {
		params.LeadTime = defaultReminderLeadTime
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &pickupReminderJob{
		logg:     params.Logger,
		reader:   params.Reader,
		notifier: params.Notifier,
		leadTime: params.LeadTime,
		now:      params.Now,
	}, nil
}

type pickupReminderJob struct {
	logg     *logger.Logger
	reader   expiringOrderReader
	notifier Notifier
	leadTime time.Duration
	now      func() time.Time
}

func (j *pickupReminderJob) Name() string { return "pickup-reminder" }

func (j *pickupReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	orders, err := j.reader.FindPendingExpiringBetween(ctx, now, now.Add(j.leadTime))
	if err != nil {
		return fmt.Errorf("query expiring orders: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(orders))
	var errs []error
	notified := 0
	for _, order := range orders {
		if _, dup := seen[order.ID]; dup {
			continue
		}
		seen[order.ID] = struct{}{}
		if err := j.notifier.NotifyPickupReminder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("remind order %s: %w", order.ID, err))
			continue
		}
		notified++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": notified})
	j.logg.Info(logCtx, "pickup reminder loop complete")
	return multierr.Combine(errs...)
}
