package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/carbazar/go-car-market/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// DSN-level pragmas reach every pooled connection; foreign_keys must be
	// on wherever a statement may run.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newSerialTestDB caps the pool at one connection so concurrent callers
// serialize at the pool instead of racing into SQLITE_BUSY.
func newSerialTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, sender string) *domain.User {
	t.Helper()
	u, err := UpsertUser(context.Background(), db, sender, "")
	if err != nil {
		t.Fatalf("seed user %s: %v", sender, err)
	}
	return u
}

func seedAd(t *testing.T, db *gorm.DB, sender, vin string) *domain.Ad {
	t.Helper()
	ctx := context.Background()
	seedUser(t, db, sender)
	brand, err := EnsureBrand(ctx, db, "TestBrand")
	if err != nil {
		t.Fatalf("seed brand: %v", err)
	}
	ad := &domain.Ad{
		Sender:      sender,
		Title:       "Test car",
		Description: "A test listing",
		Price:       10000,
		Year:        2015,
		CarBrandID:  brand.ID,
		Mileage:     100000,
		VIN:         vin,
		DayCount:    7,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := CreateAd(ctx, db, ad); err != nil {
		t.Fatalf("seed ad %s: %v", vin, err)
	}
	return ad
}
