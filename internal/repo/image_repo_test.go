package repo

import (
	"context"
	"errors"
	"testing"
)

func TestAddAdImage_MissingAd(t *testing.T) {
	db := newTestDB(t)
	if _, err := AddAdImage(context.Background(), db, 999, "img"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddAdImage_OrderAndMap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ad := seedAd(t, db, "seller", "VIN-IMG")
	other := seedAd(t, db, "seller", "VIN-IMG2")

	for _, url := range []string{"a", "b"} {
		if _, err := AddAdImage(ctx, db, ad.ID, url); err != nil {
			t.Fatalf("add %q: %v", url, err)
		}
	}
	imgs, err := ListAdImages(ctx, db, ad.ID)
	if err != nil || len(imgs) != 2 || imgs[0].ImageURL != "a" {
		t.Fatalf("images = %+v (%v)", imgs, err)
	}

	m, err := MapAdImages(ctx, db, []uint{ad.ID, other.ID})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(m[ad.ID]) != 2 {
		t.Fatalf("map entry = %d images, want 2", len(m[ad.ID]))
	}
	if _, ok := m[other.ID]; ok {
		t.Fatal("imageless ad present in map")
	}
}

func TestDeleteAdImage_AbsentIsBenign(t *testing.T) {
	db := newTestDB(t)
	deleted, err := DeleteAdImage(context.Background(), db, 999)
	if err != nil || deleted {
		t.Fatalf("deleted=%v err=%v, want false nil", deleted, err)
	}
}
