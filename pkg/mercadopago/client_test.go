package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCreatePreference(t *testing.T) {
	var gotAuth string
	var gotBody PreferenceRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":         "pref-123",
			"init_point": "https://mp.example/checkout/pref-123",
		})
	}))
	defer srv.Close()

	client, err := NewClient("token-abc", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	pref, err := client.CreatePreference(context.Background(), PreferenceRequest{
		Items: []PreferenceItem{{
			Title:     "Surprise pack",
			Quantity:  1,
			UnitPrice: decimal.NewFromFloat(4.99),
		}},
		ExternalReference: "order-1",
	})
	if err != nil {
		t.Fatalf("create preference: %v", err)
	}

	if pref.ID != "pref-123" {
		t.Fatalf("unexpected preference id %q", pref.ID)
	}
	if gotAuth != "Bearer token-abc" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotBody.ExternalReference != "order-1" {
		t.Fatalf("external reference not forwarded, got %q", gotBody.ExternalReference)
	}
}

func TestCreatePreferenceValidation(t *testing.T) {
	client, err := NewClient("token")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.CreatePreference(context.Background(), PreferenceRequest{ExternalReference: "order-1"}); err == nil {
		t.Fatal("expected error for empty items")
	}
	if _, err := client.CreatePreference(context.Background(), PreferenceRequest{
		Items: []PreferenceItem{{Title: "x", Quantity: 1}},
	}); err == nil {
		t.Fatal("expected error for missing external reference")
	}
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/987" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 987,
			"status":             "approved",
			"status_detail":      "accredited",
			"external_reference": "order-xyz",
		})
	}))
	defer srv.Close()

	client, err := NewClient("token", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	payment, err := client.GetPayment(context.Background(), "987")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if payment.Status != "approved" {
		t.Fatalf("unexpected status %q", payment.Status)
	}
	if payment.ExternalReference != "order-xyz" {
		t.Fatalf("unexpected external reference %q", payment.ExternalReference)
	}
	if payment.Raw["status_detail"] != "accredited" {
		t.Fatal("raw payload not preserved")
	}
}

func TestGetMerchantOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchant_orders/55" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 55,
			"external_reference": "order-xyz",
			"payments": []map[string]any{
				{"id": 987, "status": "approved"},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient("token", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	order, err := client.GetMerchantOrder(context.Background(), "55")
	if err != nil {
		t.Fatalf("get merchant order: %v", err)
	}
	if len(order.Payments) != 1 || order.Payments[0].Status != "approved" {
		t.Fatalf("unexpected payments %+v", order.Payments)
	}
}

func TestGetPaymentUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient("token", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.GetPayment(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for blank token")
	}
}
