package catalog

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
	"github.com/carbazar/go-car-market/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:catalog_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedListings(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.UpsertUser(ctx, db, "seller", ""); err != nil {
		t.Fatalf("user: %v", err)
	}
	brand, err := repo.EnsureBrand(ctx, db, "BMW")
	if err != nil {
		t.Fatalf("brand: %v", err)
	}
	base := time.Now().UTC()
	for i := 0; i < n; i++ {
		ad := &domain.Ad{
			Sender: "seller", Title: fmt.Sprintf("Car %d", i), Description: "d",
			Price: int64(1000 * (i + 1)), Year: 2010 + i, CarBrandID: brand.ID,
			VIN: fmt.Sprintf("VIN-%03d", i), DayCount: 7, IsActive: true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateAd(ctx, db, ad); err != nil {
			t.Fatalf("ad %d: %v", i, err)
		}
	}
}

func TestBrowser_FindPagesThroughResults(t *testing.T) {
	db := newTestDB(t)
	seedListings(t, db, 7)
	b := NewBrowser(db)
	b.PageSize = 3
	ctx := context.Background()

	page, err := b.Find(ctx, repo.AdFilter{}, 0)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if page.Total != 7 || len(page.Ads) != 3 {
		t.Fatalf("page 1: total=%d len=%d", page.Total, len(page.Ads))
	}
	// Newest first.
	if page.Ads[0].VIN != "VIN-006" {
		t.Fatalf("page 1 head = %s", page.Ads[0].VIN)
	}

	page, err = b.Find(ctx, repo.AdFilter{}, 6)
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(page.Ads) != 1 {
		t.Fatalf("last page len = %d, want 1", len(page.Ads))
	}
}

func TestBrowser_FindEmptyResult(t *testing.T) {
	db := newTestDB(t)
	b := NewBrowser(db)

	page, err := b.Find(context.Background(), repo.AdFilter{}, 0)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if page.Total != 0 || len(page.Ads) != 0 {
		t.Fatalf("empty catalog: %+v", page)
	}
}

func TestSessionStore_FilterAndOffset(t *testing.T) {
	s := NewSessionStore()

	if !s.Filter("s1").Empty() {
		t.Fatal("fresh session has criteria")
	}
	if s.Offset("s1") != 0 {
		t.Fatal("fresh session has offset")
	}

	if got := s.Advance("s1", 5); got != 5 {
		t.Fatalf("advance = %d, want 5", got)
	}
	if got := s.Advance("s1", 5); got != 10 {
		t.Fatalf("advance = %d, want 10", got)
	}

	// New criteria rewind to the first page.
	year := 2015
	s.SetFilter("s1", repo.AdFilter{Year: &year})
	if s.Offset("s1") != 0 {
		t.Fatalf("SetFilter did not rewind: offset = %d", s.Offset("s1"))
	}
	if s.Filter("s1").Year == nil {
		t.Fatal("criteria lost")
	}

	s.Reset("s1")
	if !s.Filter("s1").Empty() || s.Offset("s1") != 0 {
		t.Fatal("reset did not clear the session")
	}
}
