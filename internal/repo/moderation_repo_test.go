package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/carbazar/go-car-market/internal/domain"
)

func TestCreateModerator_DuplicateTelegramID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateModerator(ctx, db, 42, "mod1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateModerator(ctx, db, 42, "mod2"); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestModeration_VerdictFlow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ad := seedAd(t, db, "s1", "VIN-MOD")
	mod, err := CreateModerator(ctx, db, 42, "mod")
	if err != nil {
		t.Fatalf("moderator: %v", err)
	}

	rec, err := CreateModeration(ctx, db, ad.ID)
	if err != nil {
		t.Fatalf("moderation: %v", err)
	}
	if rec.Status != domain.ModerationPending {
		t.Fatalf("fresh record status = %q", rec.Status)
	}

	// One review record per ad.
	if _, err := CreateModeration(ctx, db, ad.ID); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("second record: expected ErrDuplicateKey, got %v", err)
	}

	pending, err := ListPendingAds(ctx, db)
	if err != nil || len(pending) != 1 || pending[0].ID != ad.ID {
		t.Fatalf("pending = %+v (%v)", pending, err)
	}

	if err := AssignModerator(ctx, db, ad.ID, mod.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := UpdateModerationStatus(ctx, db, ad.ID, domain.ModerationRejected, "blurry photos"); err != nil {
		t.Fatalf("verdict: %v", err)
	}

	got, err := GetModeration(ctx, db, ad.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ModerationRejected || got.ModeratorID == nil || *got.ModeratorID != mod.ID {
		t.Fatalf("record after verdict: %+v", got)
	}
	if got.CheckedAt == nil {
		t.Fatal("verdict did not stamp checked_at")
	}

	comment, err := RejectionComment(ctx, db, ad.ID)
	if err != nil || comment != "blurry photos" {
		t.Fatalf("comment = %q (%v)", comment, err)
	}

	pending, err = ListPendingAds(ctx, db)
	if err != nil || len(pending) != 0 {
		t.Fatalf("queue not drained: %+v (%v)", pending, err)
	}
}

func TestAssignModerator_MissingModerator(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ad := seedAd(t, db, "s1", "VIN-MOD2")
	if _, err := CreateModeration(ctx, db, ad.ID); err != nil {
		t.Fatalf("moderation: %v", err)
	}
	if err := AssignModerator(ctx, db, ad.ID, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeactivateModerator(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	mod, err := CreateModerator(ctx, db, 42, "mod")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := DeactivateModerator(ctx, db, mod.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := ListActiveModerators(ctx, db)
	if err != nil || len(active) != 0 {
		t.Fatalf("active = %d (%v), want 0", len(active), err)
	}
}
