// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - UpsertUser never fails on an existing sender; it returns the
//     pre-existing row (insert-or-return-existing, race-free via the
//     database's native conflict handling).
//   - UpdateBalance returns ErrNotFound when the user is absent; a debit that
//     would push the balance below zero is reported as (false, nil) without
//     touching the row.
//   - DeleteUser reports absence as (false, nil), not an error.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/carbazar/go-car-market/internal/domain"
)

// UpsertUser inserts a user keyed by sender, or returns the existing row when
// the sender is already registered. A second call with the same sender does
// not error and does not duplicate.
func UpsertUser(ctx context.Context, db *gorm.DB, sender, username string) (*domain.User, error) {
	u := &domain.User{
		Sender:       sender,
		Username:     username,
		RegisteredAt: time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sender"}}, DoNothing: true}).
		Create(u)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Conflict: the sender already exists, return that row.
		var existing domain.User
		if err := db.WithContext(ctx).Where("sender = ?", sender).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return u, nil
}

// GetUser fetches a user by sender, or ErrNotFound if missing.
func GetUser(ctx context.Context, db *gorm.DB, sender string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("sender = ?", sender).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateBalance applies delta to the user's balance as a single conditional
// UPDATE (balance = balance + delta), so concurrent updates never lose
// increments. Negative deltas are refused when they would make the balance
// negative; that case is reported as (false, nil).
//
// Returns ErrNotFound when no user with the given sender exists.
func UpdateBalance(ctx context.Context, db *gorm.DB, sender string, delta int64) (bool, error) {
	q := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("sender = ?", sender)
	if delta < 0 {
		q = q.Where("balance >= ?", -delta)
	}
	res := q.Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// Either the user is missing or the debit guard refused the update.
	var count int64
	if err := db.WithContext(ctx).Model(&domain.User{}).Where("sender = ?", sender).Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

// DeleteUser removes a user by sender. It returns (true, nil) when a row was
// deleted and (false, nil) when no such user existed.
func DeleteUser(ctx context.Context, db *gorm.DB, sender string) (bool, error) {
	res := db.WithContext(ctx).Where("sender = ?", sender).Delete(&domain.User{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
