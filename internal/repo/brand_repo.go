// Package repo – CarBrand repository. Brands use insert-or-fail semantics on
// the unique name; EnsureBrand is the race-free get-or-create used by the
// intake commit.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/carbazar/go-car-market/internal/domain"
)

// ListBrands returns all car brands ordered by name.
func ListBrands(ctx context.Context, db *gorm.DB) ([]domain.CarBrand, error) {
	var out []domain.CarBrand
	err := db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

// CreateBrand inserts a new brand. A duplicate name returns ErrDuplicateKey
// wrapped with "car_brands.name".
func CreateBrand(ctx context.Context, db *gorm.DB, name string) (*domain.CarBrand, error) {
	b := &domain.CarBrand{Name: name}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		return nil, translateDuplicate(err, "car_brands.name")
	}
	return b, nil
}

// GetBrandByName fetches a brand by name, case-insensitively.
// Returns ErrNotFound if missing.
func GetBrandByName(ctx context.Context, db *gorm.DB, name string) (*domain.CarBrand, error) {
	var b domain.CarBrand
	if err := db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// EnsureBrand returns the brand with the given name, creating it when absent.
// A concurrent create racing this call loses the insert but still gets the
// existing row back.
func EnsureBrand(ctx context.Context, db *gorm.DB, name string) (*domain.CarBrand, error) {
	b, err := GetBrandByName(ctx, db, name)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	b, err = CreateBrand(ctx, db, name)
	if err == nil {
		return b, nil
	}
	if errors.Is(err, ErrDuplicateKey) {
		// Lost the race; the row exists now.
		return GetBrandByName(ctx, db, name)
	}
	return nil, err
}

// RenameBrand updates a brand's name. Returns ErrNotFound when the brand is
// missing and ErrDuplicateKey when the new name is already taken.
func RenameBrand(ctx context.Context, db *gorm.DB, id uint, name string) error {
	res := db.WithContext(ctx).Model(&domain.CarBrand{}).Where("id = ?", id).Update("name", name)
	if res.Error != nil {
		return translateDuplicate(res.Error, "car_brands.name")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBrand removes a brand. It returns (true, nil) when a row was deleted
// and (false, nil) when no such brand existed.
func DeleteBrand(ctx context.Context, db *gorm.DB, id uint) (bool, error) {
	res := db.WithContext(ctx).Delete(&domain.CarBrand{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
