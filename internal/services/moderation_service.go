// Package services – ModerationService
//
// This file implements ModerationService, which governs the review queue.
// Approving or rejecting a listing is a two-entity write (verdict on the
// moderation record plus the ad's visibility flag) and runs inside one
// transaction scope, so a listing can never end up approved-but-hidden or
// rejected-but-visible.
package services

import (
	"context"
	"errors"

	"github.com/carbazar/go-car-market/internal/domain"
	"github.com/carbazar/go-car-market/internal/repo"
)

// ModerationService implements the moderator-facing use-cases.
type ModerationService struct {
	Coord *repo.Coordinator
}

// NewModerationService constructs a ModerationService.
func NewModerationService(coord *repo.Coordinator) *ModerationService {
	return &ModerationService{Coord: coord}
}

// ByTelegramID resolves an active moderator account, or ErrNotModerator.
func (s *ModerationService) ByTelegramID(ctx context.Context, telegramID int64) (*domain.Moderator, error) {
	m, err := repo.GetModeratorByTelegramID(ctx, s.Coord.DB(), telegramID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotModerator
		}
		return nil, err
	}
	if !m.IsActive {
		return nil, ErrNotModerator
	}
	return m, nil
}

// Register creates a moderator account, or ErrModeratorExists when the
// telegram ID is already registered.
func (s *ModerationService) Register(ctx context.Context, telegramID int64, username string) (*domain.Moderator, error) {
	m, err := repo.CreateModerator(ctx, s.Coord.DB(), telegramID, username)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateKey) {
			return nil, ErrModeratorExists
		}
		return nil, err
	}
	return m, nil
}

// Pending returns listings awaiting review, oldest first.
func (s *ModerationService) Pending(ctx context.Context) ([]domain.Ad, error) {
	return repo.ListPendingAds(ctx, s.Coord.DB())
}

// Approve records an approval verdict and makes the listing visible, both in
// one scope.
func (s *ModerationService) Approve(ctx context.Context, adID, moderatorID uint) error {
	return s.verdict(ctx, adID, moderatorID, domain.ModerationApproved, "", true)
}

// Reject records a rejection verdict with a comment and hides the listing,
// both in one scope.
func (s *ModerationService) Reject(ctx context.Context, adID, moderatorID uint, comment string) error {
	return s.verdict(ctx, adID, moderatorID, domain.ModerationRejected, comment, false)
}

func (s *ModerationService) verdict(ctx context.Context, adID, moderatorID uint, status, comment string, active bool) error {
	scope, err := s.Coord.Begin(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()
	tx := scope.DB()

	if err := repo.AssignModerator(ctx, tx, adID, moderatorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrModerationNotFound
		}
		return err
	}
	if err := repo.UpdateModerationStatus(ctx, tx, adID, status, comment); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrModerationNotFound
		}
		return err
	}
	if err := repo.SetAdActive(ctx, tx, adID, active); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAdNotFound
		}
		return err
	}
	return scope.Commit()
}

// Status returns the moderation record of a listing together with its
// human-readable label.
func (s *ModerationService) Status(ctx context.Context, adID uint) (*domain.Moderation, string, error) {
	m, err := repo.GetModeration(ctx, s.Coord.DB(), adID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrModerationNotFound
		}
		return nil, "", err
	}
	return m, domain.StatusLabel(m.Status), nil
}
