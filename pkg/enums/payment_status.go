package enums

import "fmt"

// PaymentStatus tracks the lifecycle of a payment as reported by the provider.
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusInMediation PaymentStatus = "in_mediation"
	PaymentStatusRejected    PaymentStatus = "rejected"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
	PaymentStatusApproved    PaymentStatus = "approved"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusChargeback  PaymentStatus = "chargeback"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusInMediation,
	PaymentStatusRejected,
	PaymentStatusCancelled,
	PaymentStatusApproved,
	PaymentStatusRefunded,
	PaymentStatusChargeback,
}

// paymentStatusPriority orders statuses so that out-of-order webhook
// deliveries never regress a payment to an earlier state. A status only
// replaces the stored one when its priority is greater or equal.
var paymentStatusPriority = map[PaymentStatus]int{
	PaymentStatusPending:     1,
	PaymentStatusInMediation: 2,
	PaymentStatusRejected:    3,
	PaymentStatusCancelled:   3,
	PaymentStatusApproved:    4,
	PaymentStatusRefunded:    5,
	PaymentStatusChargeback:  6,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// Priority returns the monotonic rank used when reconciling provider updates.
// Unknown statuses rank lowest so they never overwrite stored state.
func (p PaymentStatus) Priority() int {
	return paymentStatusPriority[p]
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
