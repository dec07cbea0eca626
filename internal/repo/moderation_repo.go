// Package repo – Moderator and Moderation repositories.
//
// Each ad has exactly one moderation row (unique ad_id), created alongside
// the ad by the intake commit. Moderators use insert-or-fail semantics on the
// unique telegram ID.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/carbazar/go-car-market/internal/domain"
)

// CreateModerator registers a new moderator. A duplicate telegram ID returns
// ErrDuplicateKey wrapped with "moderators.telegram_id".
func CreateModerator(ctx context.Context, db *gorm.DB, telegramID int64, username string) (*domain.Moderator, error) {
	m := &domain.Moderator{
		TelegramID:   telegramID,
		Username:     username,
		RegisteredAt: time.Now().UTC(),
		IsActive:     true,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, translateDuplicate(err, "moderators.telegram_id")
	}
	return m, nil
}

// GetModeratorByTelegramID fetches a moderator by telegram ID, or ErrNotFound.
func GetModeratorByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.Moderator, error) {
	var m domain.Moderator
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListActiveModerators returns all moderators currently allowed to review.
func ListActiveModerators(ctx context.Context, db *gorm.DB) ([]domain.Moderator, error) {
	var out []domain.Moderator
	err := db.WithContext(ctx).Where("is_active = ?", true).Find(&out).Error
	return out, err
}

// DeactivateModerator flags a moderator inactive without deleting history.
// Returns ErrNotFound when the moderator does not exist.
func DeactivateModerator(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Model(&domain.Moderator{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ModerationCount returns how many verdicts a moderator has issued.
func ModerationCount(ctx context.Context, db *gorm.DB, moderatorID uint) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Moderation{}).
		Where("moderator_id = ?", moderatorID).
		Count(&count).Error
	return count, err
}

// CreateModeration opens the review record for an ad. The ad_id is unique;
// a second record for the same ad returns ErrDuplicateKey.
func CreateModeration(ctx context.Context, db *gorm.DB, adID uint) (*domain.Moderation, error) {
	m := &domain.Moderation{
		AdID:   adID,
		Status: domain.ModerationPending,
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, translateDuplicate(err, "moderations.ad_id")
	}
	return m, nil
}

// GetModeration fetches the review record of an ad, or ErrNotFound.
func GetModeration(ctx context.Context, db *gorm.DB, adID uint) (*domain.Moderation, error) {
	var m domain.Moderation
	if err := db.WithContext(ctx).Where("ad_id = ?", adID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateModerationStatus records a verdict (approved/rejected) with an
// optional comment and stamps the check time. Returns ErrNotFound when the ad
// has no moderation record.
func UpdateModerationStatus(ctx context.Context, db *gorm.DB, adID uint, status, comment string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Moderation{}).
		Where("ad_id = ?", adID).
		Updates(map[string]any{
			"status":     status,
			"comment":    comment,
			"checked_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignModerator attaches a reviewer to an ad's moderation record. Both the
// moderator and the record must exist (ErrNotFound otherwise).
func AssignModerator(ctx context.Context, db *gorm.DB, adID, moderatorID uint) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.Moderator{}).Where("id = ?", moderatorID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	res := db.WithContext(ctx).
		Model(&domain.Moderation{}).
		Where("ad_id = ?", adID).
		Update("moderator_id", moderatorID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingAds returns ads still awaiting review, oldest first.
func ListPendingAds(ctx context.Context, db *gorm.DB) ([]domain.Ad, error) {
	var out []domain.Ad
	err := db.WithContext(ctx).
		Joins("JOIN moderations ON moderations.ad_id = ads.id").
		Where("moderations.status = ?", domain.ModerationPending).
		Order("ads.created_at").
		Find(&out).Error
	return out, err
}

// RejectionComment returns the comment of a rejected ad, or ErrNotFound when
// the ad is not rejected.
func RejectionComment(ctx context.Context, db *gorm.DB, adID uint) (string, error) {
	var m domain.Moderation
	err := db.WithContext(ctx).
		Where("ad_id = ? AND status = ?", adID, domain.ModerationRejected).
		First(&m).Error
	if err != nil {
		return "", err
	}
	return m.Comment, nil
}
