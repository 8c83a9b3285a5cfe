package migrate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"go.uber.org/multierr"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	if err := ValidateDir(EmbeddedDir); err != nil {
		t.Fatalf("validate migrations on disk: %v", err)
	}

	entries, err := fs.ReadDir(Migrations, EmbeddedDir)
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) < 5 {
		t.Fatalf("expected at least 5 embedded migrations, got %d", len(entries))
	}
}

func TestInventoryMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_catalog.sql")
	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS inventory_records",
		"FOREIGN KEY (purchasable_unit_id) REFERENCES purchasable_units(id) ON DELETE CASCADE",
		"CHECK (stock >= 0)",
		"CHECK (reserved <= stock)",
		"DROP TABLE IF EXISTS inventory_records",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")
	for _, sub := range []string{
		"CONSTRAINT ux_orders_order_ref UNIQUE (order_ref)",
		"CONSTRAINT ux_payments_order UNIQUE (order_id)",
		"CHECK (total = subtotal - discount_total)",
		"CREATE TABLE IF NOT EXISTS order_counters",
		"'PAYMENT_FOR_VERIFICATION'",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected invalid filename error")
	}

	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_no_down.sql"), []byte("-- +goose Up\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ValidateDir(dir); err == nil {
		t.Fatalf("expected missing down error")
	}
}

func TestValidateFSReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260101000000_reversed.sql":   {Data: []byte("-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x();\n")},
		"m/20260101000100_open_block.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		"m/20260101000200_stray_end.sql":  {Data: []byte("-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n")},
		"m/20260101000300_ok.sql":         {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n-- +goose Down\n")},
		"m/20260101000300_zdup.sql":       {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"m/README.md":                     {Data: []byte("notes")},
	}

	err := ValidateFS(fsys, "m")
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	if got := len(multierr.Errors(err)); got != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", got, err)
	}
	for _, want := range []string{"reversed", "open_block", "duplicate migration version", "stray_end"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error mentioning %q, got %v", want, err)
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Pickup Window")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_pickup_window.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	second, err := CreateSQLMigration(dir, "add pickup window")
	if err != nil {
		t.Fatalf("create second migration: %v", err)
	}
	if filepath.Base(second) <= filepath.Base(path) {
		t.Fatalf("expected %s to sort after %s", second, path)
	}
	if _, err := CreateSQLMigration(dir, "  "); err == nil {
		t.Fatalf("expected error for blank name")
	}
}

func TestRunRequiresDB(t *testing.T) {
	if err := Run(context.Background(), nil, DefaultDir, "up"); err == nil {
		t.Fatalf("expected error without db")
	}
	if err := MigrateToVersion(context.Background(), nil, DefaultDir, "1"); err == nil {
		t.Fatalf("expected error without db")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := fs.Glob(Migrations, EmbeddedDir+"/"+pattern)
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := fs.ReadFile(Migrations, matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
