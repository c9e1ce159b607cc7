package mpwebhook

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/mercadopago"
)

// Repository covers the rows the reconciliation path touches: the dedupe
// log, the order under lock, and the payment being advanced.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	HasRequestID(ctx context.Context, requestID string) (bool, error)
	CreateLog(ctx context.Context, log *models.WebhookLog) error

	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindPaymentByOrderProvider(ctx context.Context, orderID uuid.UUID, provider string) (*models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	SavePayment(ctx context.Context, payment *models.Payment) error
}

// providerClient fetches the canonical resource behind a notification.
type providerClient interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.PaymentResource, error)
	GetMerchantOrder(ctx context.Context, orderID string) (*mercadopago.MerchantOrderResource, error)
}

// orderPayer is the slice of the reservation service the webhook needs.
type orderPayer interface {
	MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
