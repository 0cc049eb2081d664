package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCartsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_carts.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no carts migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS carts",
		"is_active BOOLEAN NOT NULL DEFAULT TRUE",
		"parent_cart_id UUID REFERENCES carts(id) ON DELETE CASCADE",
		"CREATE TABLE IF NOT EXISTS cart_items",
		"CHECK (quantity > 0)",
		"DROP TABLE IF EXISTS carts",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsUniqueIndexes(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_snapshot_id",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_order_payments_reference",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
