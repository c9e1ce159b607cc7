package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/packrescue/packrescue-backend/api/responses"
	"github.com/packrescue/packrescue-backend/internal/reservation"
	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
	"github.com/packrescue/packrescue-backend/pkg/logger"
)

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	PackID           uuid.UUID           `json:"pack_id"`
	PricePaid        decimal.Decimal     `json:"price_paid"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	StockDecremented bool                `json:"stock_decremented"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
}

func newOrderResponse(order models.Order) orderResponse {
	return orderResponse{
		ID:               order.ID,
		PackID:           order.PackID,
		PricePaid:        order.PricePaid,
		Status:           order.Status,
		PaymentMethod:    order.PaymentMethod,
		StockDecremented: order.StockDecremented,
		PaidAt:           order.PaidAt,
		CreatedAt:        order.CreatedAt,
	}
}

// ReservePack reserves a single unit of a pack for the authenticated buyer.
func ReservePack(svc reservation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		packID, err := pathUUID(r, "packID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReserveSingle(r.Context(), userID, packID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"order_id":  result.OrderID,
			"new_stock": result.NewStock,
		})
	}
}

// CancelOrder releases a pending reservation and restores its stock.
func CancelOrder(svc reservation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": string(enums.OrderStatusCancelled)})
	}
}

// RedeemOrder marks an order as picked up.
func RedeemOrder(svc reservation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Redeem(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": string(enums.OrderStatusRedeemed)})
	}
}

// ListOrders returns the authenticated buyer's orders, newest first.
func ListOrders(svc reservation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.ListForUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for _, order := range orders {
			out = append(out, newOrderResponse(order))
		}
		responses.WriteSuccess(w, map[string]any{"orders": out})
	}
}

// GetOrder returns one of the buyer's orders.
func GetOrder(svc reservation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reservation service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetForUser(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}
