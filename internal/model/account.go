package model

import (
	"time"
)

// Account is one anonymous account, keyed by a server-issued UUID.
// The UUID is the only credential a client ever holds.
type Account struct {
	UUID        string    `gorm:"primaryKey;type:varchar(36)" json:"uuid"`
	Fingerprint string    `gorm:"type:varchar(64);not null" json:"-"` // sha256 of the declared user agent, change detection only
	Balance     int64     `gorm:"not null;default:0" json:"balance"`  // spendable credits
	LastAwarded int64     `gorm:"not null" json:"last_awarded"`       // unix seconds of the last free grant
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
