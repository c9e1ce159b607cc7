package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/mercadopago"
)

// Repository owns payment persistence plus the order and pack reads the
// payment flow needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindPack(ctx context.Context, packID uuid.UUID) (*models.Pack, error)

	FindPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	FindByOrderProvider(ctx context.Context, orderID uuid.UUID, provider string) (*models.Payment, error)
	LastByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	SavePayment(ctx context.Context, payment *models.Payment) error
}

// PreferenceCreator abstracts the provider checkout-session call so a local
// mock can stand in during development.
type PreferenceCreator interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
}

// orderPayer is the slice of the reservation service the payment flow needs.
type orderPayer interface {
	MarkPaidTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}
