package repository

import (
	"context"
	"errors"

	"creditmanager/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetByUUID loads one account. Pass the enclosing transaction when
// reading inside one; sqlite runs a single pooled connection, so a
// read through r.db would block against an open transaction.
func (r *AccountRepository) GetByUUID(ctx context.Context, tx *gorm.DB, uuid string) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("uuid = ?", uuid).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) Exists(ctx context.Context, tx *gorm.DB, uuid string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("uuid = ?", uuid).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetBalance returns 0 for an unknown account. Callers rely on that to
// mean "no balance", so a missing row is not an error here.
func (r *AccountRepository) GetBalance(ctx context.Context, uuid string) (int64, error) {
	account, err := r.GetByUUID(ctx, nil, uuid)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

// AdjustBalance applies balance += delta as a single UPDATE and returns
// the new balance. It never creates a row: zero rows affected means the
// account does not exist.
func (r *AccountRepository) AdjustBalance(ctx context.Context, tx *gorm.DB, uuid string, delta int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("uuid = ?", uuid).
		Update("balance", gorm.Expr("balance + ?", delta))

	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrAccountNotFound
	}

	account, err := r.GetByUUID(ctx, tx, uuid)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// DebitOne spends one credit. The balance check and the decrement are a
// single conditional UPDATE, so concurrent debits can never drive the
// balance below zero.
func (r *AccountRepository) DebitOne(ctx context.Context, tx *gorm.DB, uuid string) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("uuid = ? AND balance > 0", uuid).
		Update("balance", gorm.Expr("balance - 1"))

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// distinguish a drained balance from a missing account
		exists, err := r.Exists(ctx, tx, uuid)
		if err != nil {
			return err
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrInsufficientBalance
	}
	return nil
}

// GrantIfEligible awards the free credit increment when the last award
// is at or before the cutoff. Eligibility check and last_awarded reset
// are one conditional UPDATE, so at most one grant lands per interval
// even under concurrent balance reads.
func (r *AccountRepository) GrantIfEligible(ctx context.Context, tx *gorm.DB, uuid string, amount int64, cutoff, now int64) (bool, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("uuid = ? AND last_awarded <= ?", uuid, cutoff).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance + ?", amount),
			"last_awarded": now,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *AccountRepository) GetFingerprint(ctx context.Context, uuid string) (string, error) {
	account, err := r.GetByUUID(ctx, nil, uuid)
	if err != nil {
		return "", err
	}
	return account.Fingerprint, nil
}

// UpdateFingerprint records a changed client identity. Observability
// only: balance and last_awarded are untouched.
func (r *AccountRepository) UpdateFingerprint(ctx context.Context, uuid, fingerprint string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("uuid = ?", uuid).
		Update("fingerprint", fingerprint)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ClearAllBalances sets every account's balance to exactly 0. It leaves
// uuid and last_awarded alone, so cleared accounts keep their grant
// schedule.
func (r *AccountRepository) ClearAllBalances(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("1 = 1").
		Update("balance", 0)
	return result.RowsAffected, result.Error
}

func (r *AccountRepository) Delete(ctx context.Context, uuid string) error {
	result := r.db.WithContext(ctx).
		Where("uuid = ?", uuid).
		Delete(&model.Account{})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&model.Account{})
	return result.RowsAffected, result.Error
}
