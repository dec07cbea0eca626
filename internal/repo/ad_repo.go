// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Ad model,
// including the catalog filter queries consumed by the browse flow.
//
// Error semantics:
//   - CreateAd uses insert-or-fail semantics on the unique VIN: a duplicate
//     surfaces as ErrDuplicateKey wrapped with "ads.vin_number", never masked.
//   - Update/activate/extend of a missing ad returns ErrNotFound (caller bug);
//     DeleteAd reports absence as (false, nil) (benign).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/carbazar/go-car-market/internal/domain"
)

// AdFilter narrows catalog queries. Nil fields are ignored.
type AdFilter struct {
	BrandID    *uint
	MinPrice   *int64
	MaxPrice   *int64
	Year       *int
	MinMileage *int64
	MaxMileage *int64
}

func (f AdFilter) apply(q *gorm.DB) *gorm.DB {
	if f.BrandID != nil {
		q = q.Where("car_brand_id = ?", *f.BrandID)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}
	if f.Year != nil {
		q = q.Where("year_car = ?", *f.Year)
	}
	if f.MinMileage != nil {
		q = q.Where("mileage_km >= ?", *f.MinMileage)
	}
	if f.MaxMileage != nil {
		q = q.Where("mileage_km <= ?", *f.MaxMileage)
	}
	return q
}

// Empty reports whether the filter has no criteria set.
func (f AdFilter) Empty() bool {
	return f.BrandID == nil && f.MinPrice == nil && f.MaxPrice == nil &&
		f.Year == nil && f.MinMileage == nil && f.MaxMileage == nil
}

// CreateAd inserts a new listing. The VIN must be unique across all ads; a
// conflict returns ErrDuplicateKey wrapped with the constraint name so the
// caller can re-prompt the VIN field specifically.
func CreateAd(ctx context.Context, db *gorm.DB, ad *domain.Ad) error {
	if err := db.WithContext(ctx).Create(ad).Error; err != nil {
		return translateDuplicate(err, "ads.vin_number")
	}
	return nil
}

// GetAd fetches an ad by ID, or ErrNotFound if missing.
func GetAd(ctx context.Context, db *gorm.DB, id uint) (*domain.Ad, error) {
	var ad domain.Ad
	if err := db.WithContext(ctx).First(&ad, id).Error; err != nil {
		return nil, err
	}
	return &ad, nil
}

// GetAdByVIN fetches an ad by its VIN, or ErrNotFound if missing.
func GetAdByVIN(ctx context.Context, db *gorm.DB, vin string) (*domain.Ad, error) {
	var ad domain.Ad
	if err := db.WithContext(ctx).Where("vin_number = ?", vin).First(&ad).Error; err != nil {
		return nil, err
	}
	return &ad, nil
}

// UpdateAd applies the given column/value pairs to an existing ad.
// Returns ErrNotFound when the ad is missing and ErrDuplicateKey when a VIN
// change collides with another listing.
func UpdateAd(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Ad{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	err := db.WithContext(ctx).Model(&domain.Ad{}).Where("id = ?", id).Updates(fields).Error
	return translateDuplicate(err, "ads.vin_number")
}

// SetAdActive flips the listing's visibility. Returns ErrNotFound when the ad
// does not exist.
func SetAdActive(ctx context.Context, db *gorm.DB, id uint, active bool) error {
	res := db.WithContext(ctx).Model(&domain.Ad{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ExtendAd adds days to the listing's remaining publication time as a single
// atomic increment. Returns ErrNotFound when the ad does not exist.
func ExtendAd(ctx context.Context, db *gorm.DB, id uint, days int) error {
	res := db.WithContext(ctx).
		Model(&domain.Ad{}).
		Where("id = ?", id).
		Update("day_count", gorm.Expr("day_count + ?", days))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAd removes a listing. It returns (true, nil) when a row was deleted
// and (false, nil) when no such ad existed.
func DeleteAd(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	res := db.WithContext(ctx).Delete(&domain.Ad{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListAdsBySender returns all listings owned by sender, newest first.
func ListAdsBySender(ctx context.Context, db *gorm.DB, sender string) ([]domain.Ad, error) {
	var out []domain.Ad
	err := db.WithContext(ctx).
		Where("sender = ?", sender).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListActiveAds returns a page of active listings matching the filter,
// newest first. Use CountActiveAds for pagination metadata.
func ListActiveAds(ctx context.Context, db *gorm.DB, f AdFilter, limit, offset int) ([]domain.Ad, error) {
	var out []domain.Ad
	q := f.apply(db.WithContext(ctx).Where("is_active = ?", true))
	err := q.Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

// CountActiveAds returns the number of active listings matching the filter.
func CountActiveAds(ctx context.Context, db *gorm.DB, f AdFilter) (int64, error) {
	var total int64
	q := f.apply(db.WithContext(ctx).Model(&domain.Ad{}).Where("is_active = ?", true))
	err := q.Count(&total).Error
	return total, err
}

// TickDayCounts decrements the remaining publication days of every active
// listing and deactivates the ones that ran out. Returns how many listings
// were deactivated. Meant to run once per day from the scheduler.
func TickDayCounts(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Ad{}).
		Where("is_active = ? AND day_count > 0", true).
		Update("day_count", gorm.Expr("day_count - 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	res = db.WithContext(ctx).
		Model(&domain.Ad{}).
		Where("is_active = ? AND day_count <= 0", true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
