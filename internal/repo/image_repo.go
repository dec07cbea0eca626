// Package repo – AdImage repository. Images require their ad to exist at
// creation time; orphan inserts fail with ErrNotFound.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/carbazar/go-car-market/internal/domain"
)

// AddAdImage attaches an image URL to an existing ad. Returns ErrNotFound
// when the ad does not exist; the referential check is the insert's own
// foreign key, not a separate lookup.
func AddAdImage(ctx context.Context, db *gorm.DB, adID uint, imageURL string) (*domain.AdImage, error) {
	img := &domain.AdImage{
		AdID:       adID,
		ImageURL:   imageURL,
		UploadedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(img).Error; err != nil {
		return nil, translateMissingRef(err)
	}
	return img, nil
}

// ListAdImages returns all images of an ad in upload order.
func ListAdImages(ctx context.Context, db *gorm.DB, adID uint) ([]domain.AdImage, error) {
	var out []domain.AdImage
	err := db.WithContext(ctx).Where("ad_id = ?", adID).Order("id").Find(&out).Error
	return out, err
}

// MapAdImages returns the images of each listed ad keyed by ad ID.
// Ads without images are absent from the map.
func MapAdImages(ctx context.Context, db *gorm.DB, adIDs []uint) (map[uint][]domain.AdImage, error) {
	if len(adIDs) == 0 {
		return map[uint][]domain.AdImage{}, nil
	}
	var images []domain.AdImage
	if err := db.WithContext(ctx).Where("ad_id IN ?", adIDs).Order("id").Find(&images).Error; err != nil {
		return nil, err
	}
	out := make(map[uint][]domain.AdImage, len(adIDs))
	for _, img := range images {
		out[img.AdID] = append(out[img.AdID], img)
	}
	return out, nil
}

// DeleteAdImage removes an image. It returns (true, nil) when a row was
// deleted and (false, nil) when no such image existed.
func DeleteAdImage(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	res := db.WithContext(ctx).Delete(&domain.AdImage{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
