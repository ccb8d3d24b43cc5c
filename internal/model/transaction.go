package model

import (
	"time"
)

const (
	TransactionTypeGrant    = "GRANT"    // periodic free credit
	TransactionTypePurchase = "PURCHASE" // pack credit after payment
	TransactionTypeUsage    = "USAGE"    // one credit spent
	TransactionTypeAdmin    = "ADMIN"    // manual adjustment
)

// CreditTransaction is the append-only journal of balance changes.
// Rows are never updated or deleted; balance before/after makes the
// journal self-checking against the account table.
type CreditTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	AccountUUID   string    `gorm:"type:varchar(36);index;not null" json:"account_uuid"`
	Amount        int64     `gorm:"not null" json:"amount"` // positive credit, negative debit
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Reference     string    `gorm:"type:varchar(64);index" json:"reference"` // payment reference for PURCHASE rows
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transaction"
}
