package service

import (
	"context"
	"fmt"
	"log"

	"creditmanager/internal/config"
	"creditmanager/internal/model"
	"creditmanager/internal/repository"
	"creditmanager/pkg/idgen"

	"gorm.io/gorm"
)

// AdminService carries the bulk and manual operations. Not reachable in
// release mode; the router gates it, this layer does not.
type AdminService struct {
	db              *gorm.DB
	cfg             *config.Config
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewAdminService(db *gorm.DB, cfg *config.Config) *AdminService {
	return &AdminService{
		db:              db,
		cfg:             cfg,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// ClearAllBalances zeroes every account. One bulk UPDATE; per-account
// debits racing it resolve last-write-wins at the row level.
func (s *AdminService) ClearAllBalances(ctx context.Context) (int64, error) {
	affected, err := s.accountRepo.ClearAllBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear balances: %w", err)
	}
	log.Printf("all balances cleared: accounts=%d", affected)
	return affected, nil
}

func (s *AdminService) DeleteAccount(ctx context.Context, accountUUID string) error {
	if err := s.accountRepo.Delete(ctx, accountUUID); err != nil {
		return err
	}
	log.Printf("account deleted: uuid=%s", accountUUID)
	return nil
}

func (s *AdminService) DeleteAllAccounts(ctx context.Context) (int64, error) {
	affected, err := s.accountRepo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete accounts: %w", err)
	}
	log.Printf("all accounts deleted: count=%d", affected)
	return affected, nil
}

// AddBalance manually adjusts one account by delta (either sign) and
// journals the change like any other mutation.
func (s *AdminService) AddBalance(ctx context.Context, accountUUID string, delta int64) (int64, error) {
	var balance int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		newBalance, err := s.accountRepo.AdjustBalance(ctx, tx, accountUUID, delta)
		if err != nil {
			return err
		}
		balance = newBalance

		trans := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountUUID:   accountUUID,
			Amount:        delta,
			Type:          model.TransactionTypeAdmin,
			BalanceBefore: newBalance - delta,
			BalanceAfter:  newBalance,
			Remark:        "manual adjustment",
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("record adjustment: %w", err)
		}
		msg := newBalanceOutboxMessage(s.cfg.Kafka.Topic.BalanceEvents, trans)
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("enqueue adjustment event: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Printf("manual adjustment: uuid=%s, delta=%d, balance=%d", accountUUID, delta, balance)
	return balance, nil
}
