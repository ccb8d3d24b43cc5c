package model

import (
	"time"
)

// PurchasePack is a buyable credit bundle. Reference data: seeded from
// configuration at startup and treated as immutable afterwards.
type PurchasePack struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	DisplayName     string    `gorm:"type:varchar(64);not null" json:"display_name"`
	Size            int64     `gorm:"not null" json:"size"` // credits granted
	Price           float64   `gorm:"not null" json:"price"`
	Currency        string    `gorm:"type:varchar(8);not null" json:"currency"`
	CouponCodesCSV  string    `gorm:"column:coupon_codes;type:varchar(256)" json:"-"` // comma-separated applicable coupon codes
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PurchasePack) TableName() string {
	return "purchase_pack"
}

// Coupon is a percentage discount code. Which packs it applies to is
// recorded on the pack side (CouponCodesCSV).
type Coupon struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code            string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	DiscountPercent int       `gorm:"not null" json:"discount_percent"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Coupon) TableName() string {
	return "coupon"
}
