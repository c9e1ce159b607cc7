package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
	"github.com/packrescue/packrescue-backend/pkg/mercadopago"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives provider payments for orders: starting a checkout session,
// advancing payment status, and reporting state back to the buyer.
type Service interface {
	StartPayment(ctx context.Context, userID, orderID uuid.UUID) (*StartResult, error)
	LastForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	ApplyStatus(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, next enums.PaymentStatus) (bool, error)
	ApproveManually(ctx context.Context, orderID uuid.UUID) error
	Status(ctx context.Context, userID, orderID uuid.UUID) (*StatusResult, error)
}

// URLs configures the provider-side redirect and notification endpoints.
type URLs struct {
	Notification string
	Success      string
	Failure      string
}

// StartResult is the checkout session handed back to the buyer.
type StartResult struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	Provider     string    `json:"provider"`
	PreferenceID string    `json:"preference_id"`
	InitPoint    string    `json:"init_point,omitempty"`
}

// PaymentSummary is the buyer-visible slice of a payment row.
type PaymentSummary struct {
	Provider          string              `json:"provider"`
	Status            enums.PaymentStatus `json:"status"`
	ProviderPaymentID *string             `json:"provider_payment_id,omitempty"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
}

// StatusResult combines order state with the most recent payment, if any.
type StatusResult struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderStatus enums.OrderStatus `json:"order_status"`
	Payment     *PaymentSummary   `json:"payment,omitempty"`
}

type service struct {
	repo   Repository
	tx     txRunner
	prefs  PreferenceCreator
	orders orderPayer
	urls   URLs
	now    func() time.Time
}

// NewService wires the payment service.
func NewService(repo Repository, tx txRunner, prefs PreferenceCreator, orders orderPayer, urls URLs, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if prefs == nil {
		return nil, fmt.Errorf("preference creator is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order payer is required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, tx: tx, prefs: prefs, orders: orders, urls: urls, now: now}, nil
}

func (s *service) StartPayment(ctx context.Context, userID, orderID uuid.UUID) (*StartResult, error) {
	var result *StartResult

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
				WithDetails(map[string]any{"status": order.Status})
		}
		if order.PaymentMethod != enums.PaymentMethodMercadoPago {
			return pkgerrors.New(pkgerrors.CodeValidation, "order is not payable through this provider")
		}
		provider := string(order.PaymentMethod)

		// A retried start reuses the existing pending session instead of
		// opening a second one with the provider.
		existing, err := repo.FindByOrderProvider(ctx, orderID, provider)
		if err == nil {
			if existing.Status == enums.PaymentStatusPending && existing.PreferenceID != nil {
				result = &StartResult{
					PaymentID:    existing.ID,
					Provider:     existing.Provider,
					PreferenceID: *existing.PreferenceID,
				}
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already progressed for this order").
				WithDetails(map[string]any{"payment_status": existing.Status})
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		pack, err := repo.FindPack(ctx, order.PackID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pack")
		}

		pref, err := s.prefs.CreatePreference(ctx, mercadopago.PreferenceRequest{
			Items: []mercadopago.PreferenceItem{{
				Title:     pack.Title,
				Quantity:  1,
				UnitPrice: order.PricePaid,
			}},
			ExternalReference: order.ID.String(),
			NotificationURL:   s.urls.Notification,
			BackURLs: &mercadopago.BackURLs{
				Success: s.urls.Success,
				Failure: s.urls.Failure,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout preference")
		}

		payment := &models.Payment{
			ID:           uuid.New(),
			OrderID:      order.ID,
			Provider:     provider,
			PreferenceID: &pref.ID,
			Status:       enums.PaymentStatusPending,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		result = &StartResult{
			PaymentID:    payment.ID,
			Provider:     provider,
			PreferenceID: pref.ID,
			InitPoint:    pref.InitPoint,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) LastForOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.LastByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

// ApplyStatus advances a payment within an already-open transaction.
func (s *service) ApplyStatus(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, next enums.PaymentStatus) (bool, error) {
	if tx == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "transaction handle is required")
	}
	repo := s.repo.WithTx(tx)

	payment, err := repo.FindPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if !Advance(payment, next, s.now().UTC()) {
		return false, nil
	}
	if err := repo.SavePayment(ctx, payment); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}
	return true, nil
}

// ApproveManually settles an order outside the provider flow. Used for the
// development mock and over-the-counter payment methods.
func (s *service) ApproveManually(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		provider := string(order.PaymentMethod)

		payment, err := repo.FindByOrderProvider(ctx, orderID, provider)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			payment = &models.Payment{
				ID:       uuid.New(),
				OrderID:  order.ID,
				Provider: provider,
				Status:   enums.PaymentStatusPending,
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
		} else if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		if Advance(payment, enums.PaymentStatusApproved, s.now().UTC()) {
			if err := repo.SavePayment(ctx, payment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
			}
		}
		return s.orders.MarkPaidTx(ctx, tx, order.ID)
	})
}

func (s *service) Status(ctx context.Context, userID, orderID uuid.UUID) (*StatusResult, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	// Non-owners get the same answer as a missing order.
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	result := &StatusResult{OrderID: order.ID, OrderStatus: order.Status}
	payment, err := s.LastForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		result.Payment = &PaymentSummary{
			Provider:          payment.Provider,
			Status:            payment.Status,
			ProviderPaymentID: payment.PaymentID,
			PaidAt:            payment.PaidAt,
		}
	}
	return result, nil
}
