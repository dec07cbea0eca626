// Package domain defines the persistence models for the vehicle classifieds
// marketplace: users, ads and their images, car brands, favorites, payments,
// moderators, moderation verdicts, and view logs. These types are mapped with
// GORM and form the core data layer of the application.
package domain

import (
	"time"
)

// User represents a marketplace participant identified by the chat sender ID.
// Users own ads, favorites and view logs, and carry an integer balance that is
// only ever mutated through atomic increments (see repo.UpdateBalance).
//
// Fields:
//   - Sender: chat sender ID, natural primary key (varchar(50)).
//   - Username: optional display name.
//   - RegisteredAt: first-contact timestamp.
//   - Balance: account balance in whole currency units; never negative.
type User struct {
	Sender       string    `json:"sender"        gorm:"type:varchar(50);primaryKey"`
	Username     string    `json:"username"      gorm:"type:varchar(100)"`
	RegisteredAt time.Time `json:"registered_at"`
	Balance      int64     `json:"balance"       gorm:"not null;default:0"`

	Ads       []Ad       `json:"-" gorm:"foreignKey:Sender;references:Sender"`
	Favorites []Favorite `json:"-" gorm:"foreignKey:Sender;references:Sender"`
	Payments  []Payment  `json:"-" gorm:"foreignKey:Sender;references:Sender"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Ad represents a vehicle listing. An ad belongs to a user and a car brand,
// and owns its images, its single moderation record, its views, and the
// favorites pointing at it.
//
// Fields:
//   - ID: auto-increment primary key.
//   - Sender: owner's chat sender ID.
//   - Title / Description: listing text.
//   - Price: asking price; non-negative.
//   - Year: model year.
//   - CarBrandID: foreign key to the brand.
//   - Mileage: odometer reading in km; non-negative.
//   - VIN: vehicle identification number, unique across all ads.
//   - DayCount: remaining publication days.
//   - IsActive: whether the listing is visible in the catalog.
type Ad struct {
	ID          uint      `json:"id"           gorm:"primaryKey"`
	Sender      string    `json:"sender"       gorm:"type:varchar(50);not null;index"`
	Title       string    `json:"title"        gorm:"type:varchar(100);not null"`
	Description string    `json:"description"  gorm:"type:text;not null"`
	Price       int64     `json:"price"        gorm:"not null;check:price >= 0"`
	Year        int       `json:"year"         gorm:"column:year_car;not null"`
	CarBrandID  uint      `json:"car_brand_id" gorm:"not null;index"`
	Mileage     int64     `json:"mileage"      gorm:"column:mileage_km;not null;check:mileage_km >= 0"`
	VIN         string    `json:"vin"          gorm:"column:vin_number;type:varchar(100);not null;uniqueIndex"`
	DayCount    int       `json:"day_count"    gorm:"not null;default:0"`
	IsActive    bool      `json:"is_active"    gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`

	Owner      User        `json:"-" gorm:"foreignKey:Sender;references:Sender"`
	Brand      CarBrand    `json:"-" gorm:"foreignKey:CarBrandID;references:ID"`
	Images     []AdImage   `json:"-" gorm:"foreignKey:AdID;constraint:OnDelete:CASCADE"`
	FavoredBy  []Favorite  `json:"-" gorm:"foreignKey:AdID;constraint:OnDelete:CASCADE"`
	Moderation *Moderation `json:"-" gorm:"foreignKey:AdID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Ad.
func (Ad) TableName() string { return "ads" }

// CarBrand is a vehicle make referenced by ads. Brand names are unique.
type CarBrand struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
}

// TableName returns the database table name for CarBrand.
func (CarBrand) TableName() string { return "car_brands" }

// AdImage is a photo attached to an ad. The ad must exist at creation time.
type AdImage struct {
	ID         uint      `json:"id"        gorm:"primaryKey"`
	AdID       uint      `json:"ad_id"     gorm:"not null;index"`
	ImageURL   string    `json:"image_url" gorm:"type:text;not null"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TableName returns the database table name for AdImage.
func (AdImage) TableName() string { return "ad_images" }

// Favorite links a user to an ad they bookmarked. The (sender, ad_id) pair is
// unique; re-adding the same pair is an idempotent no-op that returns the
// existing row.
type Favorite struct {
	ID      uint      `json:"id"     gorm:"primaryKey"`
	Sender  string    `json:"sender" gorm:"type:varchar(50);not null;uniqueIndex:ux_favorites_sender_ad"`
	AdID    uint      `json:"ad_id"  gorm:"not null;uniqueIndex:ux_favorites_sender_ad"`
	AddedAt time.Time `json:"added_at"`
}

// TableName returns the database table name for Favorite.
func (Favorite) TableName() string { return "favorites" }

// Payment records a balance top-up made by a user.
type Payment struct {
	ID          uint      `json:"id"     gorm:"primaryKey"`
	Sender      string    `json:"sender" gorm:"type:varchar(50);not null;index"`
	Amount      int64     `json:"amount" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	PaidAt      time.Time `json:"paid_at"     gorm:"column:payment_date"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// Moderator is a staff account allowed to review listings. Identified by a
// unique telegram ID; can be deactivated without losing review history.
type Moderator struct {
	ID           uint      `json:"id"          gorm:"primaryKey"`
	TelegramID   int64     `json:"telegram_id" gorm:"not null;uniqueIndex"`
	Username     string    `json:"username"    gorm:"type:varchar(100)"`
	RegisteredAt time.Time `json:"registered_at"`
	IsActive     bool      `json:"is_active"   gorm:"not null;default:true"`
}

// TableName returns the database table name for Moderator.
func (Moderator) TableName() string { return "moderators" }

// Moderation status values.
const (
	ModerationPending  = "pending"
	ModerationApproved = "approved"
	ModerationRejected = "rejected"
)

// Moderation is the review record of an ad. Exactly one moderation row exists
// per ad (unique ad_id); it is created alongside the ad and mutated by
// moderator actions.
//
// Fields:
//   - AdID: the reviewed ad, unique (1:1).
//   - ModeratorID: assigned reviewer, nil until someone picks it up.
//   - Status: pending / approved / rejected.
//   - Comment: rejection reason, when rejected.
//   - CheckedAt: verdict timestamp, nil while pending.
type Moderation struct {
	ID          uint       `json:"id"           gorm:"primaryKey"`
	AdID        uint       `json:"ad_id"        gorm:"not null;uniqueIndex"`
	ModeratorID *uint      `json:"moderator_id"`
	Status      string     `json:"status"  gorm:"type:varchar(20);not null;default:'pending';check:status IN ('pending','approved','rejected')"`
	Comment     string     `json:"comment" gorm:"type:text"`
	CheckedAt   *time.Time `json:"checked_at"`
}

// TableName returns the database table name for Moderation.
func (Moderation) TableName() string { return "moderations" }

// StatusLabel returns a short human-readable headline for a moderation status.
func StatusLabel(status string) string {
	switch status {
	case ModerationPending:
		return "Awaiting review"
	case ModerationApproved:
		return "Approved and published"
	case ModerationRejected:
		return "Rejected, see the comment"
	default:
		return "Unknown status"
	}
}

// ViewLog is an append-only record of a user viewing an ad.
type ViewLog struct {
	ID       uint      `json:"id"     gorm:"primaryKey"`
	AdID     uint      `json:"ad_id"  gorm:"not null;index"`
	Sender   string    `json:"sender" gorm:"type:varchar(50);not null;index"`
	ViewedAt time.Time `json:"viewed_at"`
}

// TableName returns the database table name for ViewLog.
func (ViewLog) TableName() string { return "view_logs" }

// ProcessedUpdate marks an inbound transport update as handled, so redelivered
// updates are dropped instead of replayed (at-least-once delivery upstream).
type ProcessedUpdate struct {
	UpdateID int       `json:"update_id" gorm:"primaryKey;autoIncrement:false"`
	SeenAt   time.Time `json:"seen_at"   gorm:"index"`
}

// TableName returns the database table name for ProcessedUpdate.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
