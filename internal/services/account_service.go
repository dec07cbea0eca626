// Package services – AccountService
//
// This file implements AccountService, which owns user lifecycle and money
// movement: first-contact registration, balance top-ups, debits, favorites
// and the profile summary. A top-up is a two-entity write (Payment row plus
// atomic balance increment) and runs inside one transaction scope so the
// payment record and the balance can never diverge.
package services

import (
	"context"
	"errors"

	"github.com/carbazar/go-car-market/internal/domain"
	"github.com/carbazar/go-car-market/internal/repo"
)

// AccountService implements the use-cases around users and their money.
type AccountService struct {
	// Coord owns the DB handle and transaction scopes.
	Coord *repo.Coordinator
}

// NewAccountService constructs an AccountService.
func NewAccountService(coord *repo.Coordinator) *AccountService {
	return &AccountService{Coord: coord}
}

// EnsureUser registers the sender on first contact. Safe to call on every
// inbound message; an existing user is returned unchanged.
func (s *AccountService) EnsureUser(ctx context.Context, sender, username string) (*domain.User, error) {
	return repo.UpsertUser(ctx, s.Coord.DB(), sender, username)
}

// Balance returns the sender's current balance, or ErrUserNotFound.
func (s *AccountService) Balance(ctx context.Context, sender string) (int64, error) {
	u, err := repo.GetUser(ctx, s.Coord.DB(), sender)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	return u.Balance, nil
}

// TopUp records a payment and credits the balance atomically. Both writes
// share one scope: if either fails nothing is applied.
func (s *AccountService) TopUp(ctx context.Context, sender string, amount int64, description string) (*domain.Payment, error) {
	scope, err := s.Coord.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	tx := scope.DB()

	p, err := repo.CreatePayment(ctx, tx, sender, amount, description)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if _, err := repo.UpdateBalance(ctx, tx, sender, amount); err != nil {
		return nil, err
	}
	if err := scope.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

// Spend debits the sender's balance. The debit is refused with
// ErrInsufficientBalance when it would go below zero.
func (s *AccountService) Spend(ctx context.Context, sender string, amount int64) error {
	applied, err := repo.UpdateBalance(ctx, s.Coord.DB(), sender, -amount)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !applied {
		return ErrInsufficientBalance
	}
	return nil
}

// ExtendListing buys extra publication days for the sender's listing. The
// debit and the day-count increment share one scope: a refused debit leaves
// the listing untouched.
func (s *AccountService) ExtendListing(ctx context.Context, sender string, adID uint, days int, cost int64) error {
	scope, err := s.Coord.Begin(ctx)
	if err != nil {
		return err
	}
	defer scope.Close()
	tx := scope.DB()

	ad, err := repo.GetAd(ctx, tx, adID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrAdNotFound
		}
		return err
	}
	if ad.Sender != sender {
		return ErrAdNotFound
	}
	applied, err := repo.UpdateBalance(ctx, tx, sender, -cost)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !applied {
		return ErrInsufficientBalance
	}
	if err := repo.ExtendAd(ctx, tx, adID, days); err != nil {
		return err
	}
	return scope.Commit()
}

// AddFavorite bookmarks an ad for the sender; idempotent on repeat calls.
func (s *AccountService) AddFavorite(ctx context.Context, sender string, adID uint) (*domain.Favorite, error) {
	fav, err := repo.AddFavorite(ctx, s.Coord.DB(), sender, adID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAdNotFound
		}
		return nil, err
	}
	return fav, nil
}

// RemoveFavorite drops a bookmark; removing an absent one is not an error.
func (s *AccountService) RemoveFavorite(ctx context.Context, sender string, adID uint) (bool, error) {
	return repo.RemoveFavorite(ctx, s.Coord.DB(), sender, adID)
}

// Favorites lists the sender's bookmarks, newest first.
func (s *AccountService) Favorites(ctx context.Context, sender string) ([]domain.Favorite, error) {
	return repo.ListFavorites(ctx, s.Coord.DB(), sender)
}

// Profile is the sender's account summary.
type Profile struct {
	User      *domain.User
	Ads       []domain.Ad
	AdsActive int
}

// Summary loads the sender's profile: user row, listings, and the active
// listing count.
func (s *AccountService) Summary(ctx context.Context, sender string) (*Profile, error) {
	u, err := repo.GetUser(ctx, s.Coord.DB(), sender)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	ads, err := repo.ListAdsBySender(ctx, s.Coord.DB(), sender)
	if err != nil {
		return nil, err
	}
	active := 0
	for _, ad := range ads {
		if ad.IsActive {
			active++
		}
	}
	return &Profile{User: u, Ads: ads, AdsActive: active}, nil
}
