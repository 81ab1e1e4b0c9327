package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory") ||
		strings.Contains(lower, "out of memory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpen_Drivers(t *testing.T) {
	if _, err := Open(Options{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Options{Driver: "postgres"}); err == nil {
		t.Fatalf("expected missing DSN error")
	}

	db, err := Open(Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "bot.db"), Tracing: true})
	if err != nil {
		t.Fatalf("Open sqlite with tracing: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
}

func TestOpenSQLite_SetsPragmas_Pool_AndAutoMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var (
		journalMode string
		fkOn        int
		busyMS      int
	)
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil || fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d (%v)", fkOn, err)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil || busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d (%v)", busyMS, err)
	}
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&domain.User{}, &domain.Product{}, &domain.Order{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	p := &domain.Product{Title: "Кола", Category: "Напитки", Price: decimal.RequireFromString("2.5")}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert product: %v", err)
	}
	var got domain.Product
	if err := db.First(&got, p.ID).Error; err != nil || got.Title != "Кола" {
		t.Fatalf("readback product failed: err=%v got=%+v", err, got)
	}
}

var _ func(string) (*gorm.DB, error) = OpenSQLite
