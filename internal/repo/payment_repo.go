// Package repo – Payment repository and spend aggregations. Aggregations group
// and sum at the database, never by pulling full row sets into the caller, and
// are bounded by a caller-supplied limit.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/carbazar/go-car-market/internal/domain"
)

// defaultAggLimit bounds aggregation result sets when the caller passes <= 0.
const defaultAggLimit = 10

// CreatePayment records a payment for an existing user. Returns ErrNotFound
// when the user is missing; the user foreign key fires on the insert itself.
func CreatePayment(ctx context.Context, db *gorm.DB, sender string, amount int64, description string) (*domain.Payment, error) {
	p := &domain.Payment{
		Sender:      sender,
		Amount:      amount,
		Description: description,
		PaidAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, translateMissingRef(err)
	}
	return p, nil
}

// ListPayments returns all payments of a sender, newest first.
func ListPayments(ctx context.Context, db *gorm.DB, sender string) ([]domain.Payment, error) {
	var out []domain.Payment
	err := db.WithContext(ctx).
		Where("sender = ?", sender).
		Order("payment_date desc").
		Find(&out).Error
	return out, err
}

// SpendingRow is one line of the spend-by-user aggregation.
type SpendingRow struct {
	Sender string
	Total  int64
}

// TopSpenders returns senders ranked by total payment amount, descending,
// bounded by limit (default 10).
func TopSpenders(ctx context.Context, db *gorm.DB, limit int) ([]SpendingRow, error) {
	if limit <= 0 {
		limit = defaultAggLimit
	}
	var out []SpendingRow
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Select("sender, SUM(amount) AS total").
		Group("sender").
		Order("total DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}
