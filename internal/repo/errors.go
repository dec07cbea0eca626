// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file centralizes repository-level error values and the
// driver-agnostic translation of database failures into them.
//
// Error semantics across the package:
//   - ErrNotFound when a referenced record is absent on read/update/assign,
//     and when an insert points at an absent referent (the foreign key fires,
//     there is no separate existence lookup that could race a delete).
//     Delete helpers instead report absence as a distinguishable (false, nil)
//     result, because deleting a missing row is a benign outcome for callers.
//   - ErrDuplicateKey when an insert violates a unique constraint
//     (ads.vin_number, car_brands.name, moderators.telegram_id). The error is
//     wrapped with the constraint name so callers can re-prompt the exact field.
//   - ErrScopeFinalized when a transaction scope is committed or rolled back
//     twice (see scope.go).
package repo

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicateKey is returned when an insert violates a unique constraint.
// The returned error wraps this sentinel together with the constraint name.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrScopeFinalized is returned when a transaction scope is used after it has
// already been committed or rolled back.
var ErrScopeFinalized = errors.New("transaction scope already finalized")

// IsDuplicate reports whether err is a unique-constraint violation, across
// drivers that may not map it to gorm.ErrDuplicatedKey.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateKey) {
		return true
	}
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// translateDuplicate maps a unique-constraint violation to ErrDuplicateKey
// wrapped with the violated constraint name. Other errors pass through.
func translateDuplicate(err error, constraint string) error {
	if err == nil {
		return nil
	}
	if IsDuplicate(err) {
		return fmt.Errorf("%s: %w", constraint, ErrDuplicateKey)
	}
	return err
}

// IsForeignKeyViolation reports whether err is a referential-integrity
// failure, across drivers that may not map it to gorm.ErrForeignKeyViolated.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	// SQLite typically: "FOREIGN KEY constraint failed"
	// Postgres typically: "violates foreign key constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint")
}

// translateMissingRef maps a referential-integrity failure to ErrNotFound:
// for callers, inserting against an absent referent and reading an absent
// row are the same outcome. Other errors pass through.
func translateMissingRef(err error) error {
	if IsForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}
