package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/carbazar/go-car-market/internal/domain"
)

func TestUpsertUser_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := UpsertUser(ctx, db, "79001112233", "alice")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := UpsertUser(ctx, db, "79001112233", "someone-else")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.Username != first.Username {
		t.Fatalf("second upsert replaced the row: %q != %q", second.Username, first.Username)
	}

	var count int64
	if err := db.Model(&domain.User{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 user, got %d", count)
	}
}

func TestUpdateBalance_CreditAndDebit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "s1")

	applied, err := UpdateBalance(ctx, db, "s1", 300)
	if err != nil || !applied {
		t.Fatalf("credit: applied=%v err=%v", applied, err)
	}
	applied, err = UpdateBalance(ctx, db, "s1", -100)
	if err != nil || !applied {
		t.Fatalf("debit: applied=%v err=%v", applied, err)
	}

	u, err := GetUser(ctx, db, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Balance != 200 {
		t.Fatalf("balance = %d, want 200", u.Balance)
	}
}

func TestUpdateBalance_RefusesOverdraft(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "s1")

	if applied, err := UpdateBalance(ctx, db, "s1", 50); err != nil || !applied {
		t.Fatalf("credit: applied=%v err=%v", applied, err)
	}
	applied, err := UpdateBalance(ctx, db, "s1", -80)
	if err != nil {
		t.Fatalf("overdraft attempt: %v", err)
	}
	if applied {
		t.Fatal("overdraft debit was applied")
	}

	u, _ := GetUser(ctx, db, "s1")
	if u.Balance != 50 {
		t.Fatalf("balance changed by refused debit: %d", u.Balance)
	}
}

func TestUpdateBalance_MissingUser(t *testing.T) {
	db := newTestDB(t)

	_, err := UpdateBalance(context.Background(), db, "ghost", 10)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateBalance_ConcurrentIncrementsConverge(t *testing.T) {
	db := newSerialTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "s1")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := UpdateBalance(ctx, db, "s1", 5); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent update: %v", err)
	}

	u, err := GetUser(ctx, db, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Balance != workers*5 {
		t.Fatalf("balance = %d, want %d", u.Balance, workers*5)
	}
}

func TestDeleteUser_AbsentIsBenign(t *testing.T) {
	db := newTestDB(t)

	deleted, err := DeleteUser(context.Background(), db, "ghost")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted {
		t.Fatal("deleted a user that never existed")
	}
}
