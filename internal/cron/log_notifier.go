package cron

import (
	"context"
	"fmt"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

// LogNotifier records reminders in the service log. It stands in until a
// push or email channel is wired.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) (*LogNotifier, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &LogNotifier{logg: logg}, nil
}

func (n *LogNotifier) NotifyPickupReminder(ctx context.Context, order models.Order) error {
	ctx = n.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"user_id":  order.UserID.String(),
		"pack_id":  order.PackID.String(),
	})
	n.logg.Info(ctx, "pickup.reminder")
	return nil
}
