package mpwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/packrescue/packrescue-backend/internal/payments"
	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
	"github.com/packrescue/packrescue-backend/pkg/mercadopago"
	"github.com/packrescue/packrescue-backend/pkg/types"
)

const (
	providerName        = "mp"
	defaultFetchTimeout = 5 * time.Second
)

type ServiceParams struct {
	Repo              Repository
	Client            providerClient
	Orders            orderPayer
	TransactionRunner txRunner
	WebhookSecret     string
	FetchTimeout      time.Duration
	Now               func() time.Time
}

// Service reconciles provider notifications against local orders. Deliveries
// are at-least-once and unordered; the request-id log plus the monotonic
// status rule make redeliveries and stale events harmless.
type Service struct {
	repo         Repository
	client       providerClient
	orders       orderPayer
	txRunner     txRunner
	secret       string
	fetchTimeout time.Duration
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("webhook repository is required")
	}
	if params.Client == nil {
		return nil, fmt.Errorf("provider client is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order payer is required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.FetchTimeout <= 0 {
		params.FetchTimeout = defaultFetchTimeout
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		repo:         params.Repo,
		client:       params.Client,
		orders:       params.Orders,
		txRunner:     params.TransactionRunner,
		secret:       params.WebhookSecret,
		fetchTimeout: params.FetchTimeout,
		now:          params.Now,
	}, nil
}

// HandleWebhook processes one delivery. A nil return means the notification
// was durably logged and must be acknowledged with 200, even when the event
// itself could not be applied.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, headers http.Header) error {
	if !verifySignature(s.secret, body, headers.Get("x-signature")) {
		return pkgerrors.New(pkgerrors.CodeInvalidSignature, "webhook signature mismatch")
	}

	requestID := headers.Get("X-Request-Id")
	if requestID == "" {
		requestID = "no-id-" + uuid.NewString()
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		seen, err := repo.HasRequestID(ctx, requestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook dedupe")
		}
		if seen {
			return nil
		}
		if err := repo.CreateLog(ctx, &models.WebhookLog{
			ID:        uuid.New(),
			RequestID: requestID,
			Provider:  providerName,
			Headers:   headerMap(headers),
			Body:      bodyMap(body),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append webhook log")
		}

		event, ok := parseNotification(body)
		if !ok {
			return nil
		}
		resolved, ok := s.fetchResource(ctx, event)
		if !ok {
			return nil
		}
		return s.apply(ctx, tx, repo, resolved)
	})
}

type notification struct {
	topic      string
	resourceID string
}

type resolvedEvent struct {
	orderID           uuid.UUID
	providerPaymentID string
	status            enums.PaymentStatus
	raw               map[string]any
}

// fetchResource pulls the canonical record from the provider. Notifications
// carry only ids, and bodies can be forged even with a valid signature setup,
// so local state is never advanced from the body alone. A fetch failure
// leaves the delivery logged and skipped.
func (s *Service) fetchResource(ctx context.Context, event notification) (resolvedEvent, bool) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	switch event.topic {
	case "payment":
		resource, err := s.client.GetPayment(fetchCtx, event.resourceID)
		if err != nil {
			return resolvedEvent{}, false
		}
		orderID, err := uuid.Parse(resource.ExternalReference)
		if err != nil {
			return resolvedEvent{}, false
		}
		return resolvedEvent{
			orderID:           orderID,
			providerPaymentID: strconv.FormatInt(resource.ID, 10),
			status:            mapProviderStatus(resource.Status),
			raw:               resource.Raw,
		}, true
	case "merchant_order":
		resource, err := s.client.GetMerchantOrder(fetchCtx, event.resourceID)
		if err != nil {
			return resolvedEvent{}, false
		}
		orderID, err := uuid.Parse(resource.ExternalReference)
		if err != nil {
			return resolvedEvent{}, false
		}
		best, ok := bestOrderPayment(resource.Payments)
		if !ok {
			return resolvedEvent{}, false
		}
		return resolvedEvent{
			orderID:           orderID,
			providerPaymentID: strconv.FormatInt(best.ID, 10),
			status:            mapProviderStatus(best.Status),
			raw:               resource.Raw,
		}, true
	default:
		return resolvedEvent{}, false
	}
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, repo Repository, event resolvedEvent) error {
	// The order row lock serializes concurrent deliveries for one order.
	if _, err := repo.FindOrderForUpdate(ctx, event.orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}

	payment, err := repo.FindPaymentByOrderProvider(ctx, event.orderID, providerName)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		payment = &models.Payment{
			ID:       uuid.New(),
			OrderID:  event.orderID,
			Provider: providerName,
			Status:   enums.PaymentStatusPending,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
	} else if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	payment.PaymentID = &event.providerPaymentID
	payment.RawEvent = event.raw
	advanced := payments.Advance(payment, event.status, s.now().UTC())
	if err := repo.SavePayment(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save payment")
	}

	if advanced && payment.Status == enums.PaymentStatusApproved {
		return s.orders.MarkPaidTx(ctx, tx, event.orderID)
	}
	return nil
}

func parseNotification(body []byte) (notification, bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return notification{}, false
	}

	topic, _ := payload["type"].(string)
	if topic == "" {
		topic, _ = payload["topic"].(string)
	}

	var resourceID string
	if data, ok := payload["data"].(map[string]any); ok {
		resourceID = stringField(data["id"])
	}
	if resourceID == "" {
		resourceID = stringField(payload["resource"])
	}
	if resourceID == "" {
		resourceID = stringField(payload["id"])
	}
	if topic == "" || resourceID == "" {
		return notification{}, false
	}
	return notification{topic: topic, resourceID: resourceID}, true
}

func stringField(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}

// bestOrderPayment picks the entry that ranks highest under the status
// priority, so a merchant order with a rejected attempt and an approved
// retry reports approved.
func bestOrderPayment(entries []mercadopago.OrderPayment) (mercadopago.OrderPayment, bool) {
	var best mercadopago.OrderPayment
	found := false
	for _, entry := range entries {
		if !found || mapProviderStatus(entry.Status).Priority() > mapProviderStatus(best.Status).Priority() {
			best = entry
			found = true
		}
	}
	return best, found
}

// mapProviderStatus folds the provider vocabulary into the local one.
// Unknown values count as pending so a later authoritative status can still
// advance the payment.
func mapProviderStatus(status string) enums.PaymentStatus {
	switch status {
	case "approved":
		return enums.PaymentStatusApproved
	case "pending", "in_process", "authorized":
		return enums.PaymentStatusPending
	case "in_mediation":
		return enums.PaymentStatusInMediation
	case "rejected":
		return enums.PaymentStatusRejected
	case "cancelled", "canceled":
		return enums.PaymentStatusCancelled
	case "refunded":
		return enums.PaymentStatusRefunded
	case "charged_back", "chargeback":
		return enums.PaymentStatusChargeback
	default:
		return enums.PaymentStatusPending
	}
}

func headerMap(headers http.Header) types.JSONMap {
	out := make(types.JSONMap, len(headers))
	for key := range headers {
		out[key] = headers.Get(key)
	}
	return out
}

func bodyMap(body []byte) types.JSONMap {
	var out types.JSONMap
	if err := json.Unmarshal(body, &out); err != nil {
		return types.JSONMap{"raw": string(body)}
	}
	return out
}
