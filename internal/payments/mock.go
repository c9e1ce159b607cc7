package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/packrescue/packrescue-backend/pkg/mercadopago"
)

// MockPreferenceCreator issues local preference ids without talking to the
// provider. Wired in when PACKRESCUE_FEATURE_MOCK_PAYMENTS is set so the
// checkout flow works in development without credentials.
type MockPreferenceCreator struct{}

func NewMockPreferenceCreator() *MockPreferenceCreator {
	return &MockPreferenceCreator{}
}

func (m *MockPreferenceCreator) CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error) {
	return &mercadopago.Preference{
		ID:        "mock-" + uuid.NewString(),
		InitPoint: "",
	}, nil
}
