package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"creditmanager/internal/config"
	"creditmanager/internal/model"
	"creditmanager/internal/repository"
	"creditmanager/pkg/idgen"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccountService issues anonymous accounts and owns the balance read,
// free-grant and debit paths.
type AccountService struct {
	db              *gorm.DB
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewAccountService(db *gorm.DB, cfg *config.Config) *AccountService {
	return &AccountService{
		db:              db,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// HashFingerprint reduces a client-declared identity string to the
// stored fingerprint. Change detection only, not a security boundary.
func HashFingerprint(userAgent string) string {
	sum := sha256.Sum256([]byte(userAgent))
	return hex.EncodeToString(sum[:])
}

// Register creates a fresh account with the configured starting
// balance. The 128-bit random UUID space makes a collision check
// unnecessary; the primary-key constraint would still catch one.
func (s *AccountService) Register(ctx context.Context, userAgent string) (*model.Account, error) {
	account := &model.Account{
		UUID:        uuid.NewString(),
		Fingerprint: HashFingerprint(userAgent),
		Balance:     s.cfg.Business.StartingBalance,
		LastAwarded: time.Now().Unix(),
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	log.Printf("account registered: uuid=%s, balance=%d", account.UUID, account.Balance)
	return account, nil
}

func (s *AccountService) Exists(ctx context.Context, accountUUID string) (bool, error) {
	return s.accountRepo.Exists(ctx, nil, accountUUID)
}

// GetBalanceWithGrant returns the current balance, first awarding the
// periodic free credit if the interval has elapsed. An unknown account
// reads as balance 0. The grant, its journal row and its outbox event
// commit in one transaction.
func (s *AccountService) GetBalanceWithGrant(ctx context.Context, accountUUID string) (int64, bool, error) {
	var balance int64
	var granted bool

	now := time.Now().Unix()
	cutoff := now - s.cfg.Business.FreeGrantIntervalS
	amount := s.cfg.Business.FreeGrantAmount

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		granted, err = s.accountRepo.GrantIfEligible(ctx, tx, accountUUID, amount, cutoff, now)
		if err != nil {
			return fmt.Errorf("apply free grant: %w", err)
		}

		account, err := s.accountRepo.GetByUUID(ctx, tx, accountUUID)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				balance = 0
				return nil
			}
			return err
		}
		balance = account.Balance

		if granted {
			trans := &model.CreditTransaction{
				TransactionNo: idgen.GenerateTransactionNo(),
				AccountUUID:   accountUUID,
				Amount:        amount,
				Type:          model.TransactionTypeGrant,
				BalanceBefore: balance - amount,
				BalanceAfter:  balance,
				Remark:        "periodic free grant",
			}
			if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
				return fmt.Errorf("record grant: %w", err)
			}
			msg := newBalanceOutboxMessage(s.cfg.Kafka.Topic.BalanceEvents, trans)
			if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
				return fmt.Errorf("enqueue grant event: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}

	if granted {
		log.Printf("free grant awarded: uuid=%s, amount=%d, balance=%d", accountUUID, amount, balance)
	}
	return balance, granted, nil
}

// VerifyFingerprint compares the declared identity against the stored
// fingerprint and overwrites it on change. Never touches balance.
func (s *AccountService) VerifyFingerprint(ctx context.Context, accountUUID, userAgent string) (bool, error) {
	stored, err := s.accountRepo.GetFingerprint(ctx, accountUUID)
	if err != nil {
		return false, err
	}

	current := HashFingerprint(userAgent)
	if stored == current {
		return false, nil
	}

	if err := s.accountRepo.UpdateFingerprint(ctx, accountUUID, current); err != nil {
		return false, fmt.Errorf("update fingerprint: %w", err)
	}
	log.Printf("client fingerprint changed: uuid=%s", accountUUID)
	return true, nil
}

// UseCredit spends one credit. success=false means the balance was
// already 0 or the account is unknown; neither is an error.
func (s *AccountService) UseCredit(ctx context.Context, accountUUID string) (bool, int64, error) {
	var balance int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.accountRepo.DebitOne(ctx, tx, accountUUID); err != nil {
			return err
		}

		account, err := s.accountRepo.GetByUUID(ctx, tx, accountUUID)
		if err != nil {
			return err
		}
		balance = account.Balance

		trans := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountUUID:   accountUUID,
			Amount:        -1,
			Type:          model.TransactionTypeUsage,
			BalanceBefore: balance + 1,
			BalanceAfter:  balance,
			Remark:        "credit used",
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("record usage: %w", err)
		}
		msg := newBalanceOutboxMessage(s.cfg.Kafka.Topic.BalanceEvents, trans)
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("enqueue usage event: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) || errors.Is(err, repository.ErrAccountNotFound) {
			log.Printf("debit refused: uuid=%s, reason=%v", accountUUID, err)
			return false, 0, nil
		}
		return false, 0, err
	}

	return true, balance, nil
}

// ListTransactions pages through an account's journal, newest first.
func (s *AccountService) ListTransactions(ctx context.Context, accountUUID string, page, pageSize int) ([]*model.CreditTransaction, int64, error) {
	return s.transactionRepo.ListByAccount(ctx, accountUUID, page, pageSize)
}
