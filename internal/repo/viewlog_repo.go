// Package repo – ViewLog repository. View logs are append-only; popularity is
// aggregated at the database boundary with a bounded result set.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/carbazar/go-car-market/internal/domain"
)

// LogView appends a view record for an existing ad. Returns ErrNotFound when
// the ad is missing.
func LogView(ctx context.Context, db *gorm.DB, adID uint, sender string) (*domain.ViewLog, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Ad{}).Where("id = ?", adID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNotFound
	}
	v := &domain.ViewLog{
		AdID:     adID,
		Sender:   sender,
		ViewedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, err
	}
	return v, nil
}

// ViewCount returns how many times an ad was viewed.
func ViewCount(ctx context.Context, db *gorm.DB, adID uint) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ViewLog{}).
		Where("ad_id = ?", adID).
		Count(&count).Error
	return count, err
}

// ListViewsBySender returns all views made by a sender.
func ListViewsBySender(ctx context.Context, db *gorm.DB, sender string) ([]domain.ViewLog, error) {
	var out []domain.ViewLog
	err := db.WithContext(ctx).Where("sender = ?", sender).Find(&out).Error
	return out, err
}

// ViewStat is one line of the popularity aggregation.
type ViewStat struct {
	AdID  uint
	Views int64
}

// PopularAds returns ads ranked by view count, descending, bounded by limit
// (default 10).
func PopularAds(ctx context.Context, db *gorm.DB, limit int) ([]ViewStat, error) {
	if limit <= 0 {
		limit = defaultAggLimit
	}
	var out []ViewStat
	err := db.WithContext(ctx).
		Model(&domain.ViewLog{}).
		Select("ad_id, COUNT(id) AS views").
		Group("ad_id").
		Order("views DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// ViewsBetween returns the views logged in [from, to].
func ViewsBetween(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.ViewLog, error) {
	var out []domain.ViewLog
	err := db.WithContext(ctx).
		Where("viewed_at BETWEEN ? AND ?", from, to).
		Find(&out).Error
	return out, err
}
