// Package repo – processed-update bookkeeping. The transport delivers updates
// at least once; recording each update ID lets the dispatcher drop redeliveries
// instead of replaying them through the handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carbazar/go-car-market/internal/domain"
)

// MarkUpdateProcessed records an update ID and reports whether this was the
// first time it was seen. A redelivered update returns (false, nil).
func MarkUpdateProcessed(ctx context.Context, db *gorm.DB, updateID int) (bool, error) {
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "update_id"}}, DoNothing: true}).
		Create(&domain.ProcessedUpdate{UpdateID: updateID, SeenAt: time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PurgeProcessedUpdates deletes dedup records older than the cutoff and
// returns how many were removed. Meant to run from the scheduler.
func PurgeProcessedUpdates(ctx context.Context, db *gorm.DB, olderThan time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("seen_at < ?", olderThan).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
