package services

import (
	"context"
	"errors"
	"testing"

	"github.com/carbazar/go-car-market/internal/domain"
	"github.com/carbazar/go-car-market/internal/repo"
)

func seedPendingListing(t *testing.T, coord *repo.Coordinator, vin string) *domain.Ad {
	t.Helper()
	ad := seedListing(t, coord, "seller", vin)
	if _, err := repo.CreateModeration(context.Background(), coord.DB(), ad.ID); err != nil {
		t.Fatalf("moderation: %v", err)
	}
	return ad
}

func TestModerationService_RegisterAndResolve(t *testing.T) {
	coord := newTestCoord(t)
	svc := NewModerationService(coord)
	ctx := context.Background()

	mod, err := svc.Register(ctx, 42, "mod")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, 42, "other"); !errors.Is(err, ErrModeratorExists) {
		t.Fatalf("expected ErrModeratorExists, got %v", err)
	}

	got, err := svc.ByTelegramID(ctx, 42)
	if err != nil || got.ID != mod.ID {
		t.Fatalf("resolve: %+v (%v)", got, err)
	}
	if _, err := svc.ByTelegramID(ctx, 7); !errors.Is(err, ErrNotModerator) {
		t.Fatalf("unknown id: expected ErrNotModerator, got %v", err)
	}

	// Deactivated moderators lose access without losing history.
	if err := repo.DeactivateModerator(ctx, coord.DB(), mod.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.ByTelegramID(ctx, 42); !errors.Is(err, ErrNotModerator) {
		t.Fatalf("inactive: expected ErrNotModerator, got %v", err)
	}
}

func TestModerationService_ApproveShowsListing(t *testing.T) {
	coord := newTestCoord(t)
	svc := NewModerationService(coord)
	ctx := context.Background()
	ad := seedPendingListing(t, coord, "VIN-APPROVE")
	if err := repo.SetAdActive(ctx, coord.DB(), ad.ID, false); err != nil {
		t.Fatalf("hide: %v", err)
	}
	mod, err := svc.Register(ctx, 42, "mod")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Approve(ctx, ad.ID, mod.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	rec, label, err := svc.Status(ctx, ad.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.Status != domain.ModerationApproved || label == "" {
		t.Fatalf("record = %+v label=%q", rec, label)
	}
	got, _ := repo.GetAd(ctx, coord.DB(), ad.ID)
	if !got.IsActive {
		t.Fatal("approved listing is not visible")
	}
}

func TestModerationService_RejectHidesListing(t *testing.T) {
	coord := newTestCoord(t)
	svc := NewModerationService(coord)
	ctx := context.Background()
	ad := seedPendingListing(t, coord, "VIN-REJECT")
	mod, err := svc.Register(ctx, 42, "mod")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Reject(ctx, ad.ID, mod.ID, "blurry photos"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	got, _ := repo.GetAd(ctx, coord.DB(), ad.ID)
	if got.IsActive {
		t.Fatal("rejected listing is still visible")
	}
	comment, err := repo.RejectionComment(ctx, coord.DB(), ad.ID)
	if err != nil || comment != "blurry photos" {
		t.Fatalf("comment = %q (%v)", comment, err)
	}
	pending, err := svc.Pending(ctx)
	if err != nil || len(pending) != 0 {
		t.Fatalf("queue not drained: %d (%v)", len(pending), err)
	}
}

func TestModerationService_VerdictWithoutRecord(t *testing.T) {
	coord := newTestCoord(t)
	svc := NewModerationService(coord)
	ctx := context.Background()
	mod, err := svc.Register(ctx, 42, "mod")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Approve(ctx, 999, mod.ID); !errors.Is(err, ErrModerationNotFound) {
		t.Fatalf("expected ErrModerationNotFound, got %v", err)
	}
}
