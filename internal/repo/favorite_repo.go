// Package repo – Favorite repository.
//
// Favorites are keyed by the natural (sender, ad_id) pair and use
// insert-or-return-existing semantics: a second add with the same pair is an
// idempotent no-op that returns the pre-existing row. Both the conflict and
// the referential checks are resolved by the database, not by read-then-write
// checks, so concurrent adds and deletes cannot duplicate or dangle.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carbazar/go-car-market/internal/domain"
)

// AddFavorite bookmarks an ad for a sender. Both the user and the ad must
// exist; their foreign keys fire on the insert itself and come back as
// ErrNotFound. Re-adding the same pair returns the existing row without error.
func AddFavorite(ctx context.Context, db *gorm.DB, sender string, adID uint) (*domain.Favorite, error) {
	fav := &domain.Favorite{
		Sender:  sender,
		AdID:    adID,
		AddedAt: time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sender"}, {Name: "ad_id"}},
			DoNothing: true,
		}).
		Create(fav)
	if res.Error != nil {
		return nil, translateMissingRef(res.Error)
	}
	if res.RowsAffected == 0 {
		var existing domain.Favorite
		if err := db.WithContext(ctx).
			Where("sender = ? AND ad_id = ?", sender, adID).
			First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return fav, nil
}

// RemoveFavorite deletes a bookmark. It returns (true, nil) when a row was
// deleted and (false, nil) when the pair was not bookmarked.
func RemoveFavorite(ctx context.Context, db *gorm.DB, sender string, adID uint) (bool, error) {
	res := db.WithContext(ctx).
		Where("sender = ? AND ad_id = ?", sender, adID).
		Delete(&domain.Favorite{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListFavorites returns a sender's bookmarks, newest first.
func ListFavorites(ctx context.Context, db *gorm.DB, sender string) ([]domain.Favorite, error) {
	var out []domain.Favorite
	err := db.WithContext(ctx).
		Where("sender = ?", sender).
		Order("added_at desc").
		Find(&out).Error
	return out, err
}
