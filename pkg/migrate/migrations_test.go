package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCoreMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_core_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no core tables migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS packs",
		"REFERENCES packs(id) ON DELETE RESTRICT",
		"CHECK (stock >= 0)",
		"CHECK (price_offer <= price_original)",
		"CHECK (pickup_end > pickup_start)",
		"CONSTRAINT ux_cart_items_cart_pack UNIQUE (cart_id, pack_id)",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_payment_tables.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no payment tables migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"CONSTRAINT ux_payments_request_id UNIQUE (request_id)",
		"CONSTRAINT ux_webhook_logs_request_id UNIQUE (request_id)",
		"DROP TABLE IF EXISTS webhook_logs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
