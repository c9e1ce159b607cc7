package payments

import (
	"time"

	"github.com/packrescue/packrescue-backend/pkg/db/models"
	"github.com/packrescue/packrescue-backend/pkg/enums"
)

// Advance moves a payment to next under the monotonic priority rule and
// reports whether anything changed. A status that ranks below the current
// one is discarded; a repeat of the current status is a no-op. The first
// transition to approved stamps paid_at.
func Advance(payment *models.Payment, next enums.PaymentStatus, at time.Time) bool {
	if next == payment.Status {
		return false
	}
	if next.Priority() < payment.Status.Priority() {
		return false
	}
	payment.Status = next
	if next == enums.PaymentStatusApproved && payment.PaidAt == nil {
		paidAt := at
		payment.PaidAt = &paidAt
	}
	return true
}
