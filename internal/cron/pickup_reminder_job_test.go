package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

type fakeExpiringReader struct {
	orders []models.Order
	from   time.Time
	to     time.Time
}

func (f *fakeExpiringReader) FindPendingExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	f.from, f.to = from, to
	return f.orders, nil
}

type fakeNotifier struct {
	notified []uuid.UUID
	failFor  map[uuid.UUID]error
}

func (f *fakeNotifier) NotifyPickupReminder(ctx context.Context, order models.Order) error {
	if err, ok := f.failFor[order.ID]; ok {
		return err
	}
	f.notified = append(f.notified, order.ID)
	return nil
}

func TestPickupReminderJob(t *testing.T) {
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	orderA := models.Order{ID: uuid.New()}
	orderB := models.Order{ID: uuid.New()}
	reader := &fakeExpiringReader{orders: []models.Order{orderA, orderB, orderA}}
	notifier := &fakeNotifier{}

	job, err := NewPickupReminderJob(PickupReminderJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Reader:   reader,
		Notifier: notifier,
		LeadTime: 30 * time.Minute,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != "pickup-reminder" {
		t.Fatalf("unexpected job name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if !reader.from.Equal(now) || !reader.to.Equal(now.Add(30*time.Minute)) {
		t.Fatalf("unexpected reminder window %s - %s", reader.from, reader.to)
	}
	// The repeated order is reminded once.
	if len(notifier.notified) != 2 {
		t.Fatalf("expected 2 reminders, got %d", len(notifier.notified))
	}
}

func TestPickupReminderJobContinuesPastFailures(t *testing.T) {
	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	failing := models.Order{ID: uuid.New()}
	healthy := models.Order{ID: uuid.New()}
	reader := &fakeExpiringReader{orders: []models.Order{failing, healthy}}
	notifier := &fakeNotifier{failFor: map[uuid.UUID]error{failing.ID: errors.New("smtp down")}}

	job, err := NewPickupReminderJob(PickupReminderJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Reader:   reader,
		Notifier: notifier,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != healthy.ID {
		t.Fatalf("expected the healthy order reminded, got %v", notifier.notified)
	}
}
