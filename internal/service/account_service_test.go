package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"creditmanager/internal/config"
	"creditmanager/internal/infrastructure/database"
	"creditmanager/internal/model"
	"creditmanager/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "debug"},
		Business: config.BusinessConfig{
			StartingBalance:    10,
			FreeGrantAmount:    10,
			FreeGrantIntervalS: 86400,
			BalanceType:        "Credits",
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{BalanceEvents: "credit.balance.events"},
		},
		Payment: config.PaymentConfig{
			RedirectURL:      "https://pay.example.com/checkout?account_id={account_id}&amount={amount}",
			CurrencyUnit:     "$",
			CurrencyDecimals: 2,
		},
	}
}

func setupAccountService(t *testing.T) (*AccountService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, 1)
	require.NoError(t, err)
	return NewAccountService(db, testConfig()), db
}

func TestRegisterIssuesFreshAccount(t *testing.T) {
	svc, _ := setupAccountService(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, "agent-one")
	require.NoError(t, err)
	require.NotEmpty(t, a.UUID)
	require.Equal(t, int64(10), a.Balance)
	require.Equal(t, HashFingerprint("agent-one"), a.Fingerprint)

	b, err := svc.Register(ctx, "agent-one")
	require.NoError(t, err)
	require.NotEqual(t, a.UUID, b.UUID)

	// balance right after creation equals the starting balance and
	// must not trigger a grant
	balance, granted, err := svc.GetBalanceWithGrant(ctx, a.UUID)
	require.NoError(t, err)
	require.False(t, granted)
	require.Equal(t, int64(10), balance)
}

func TestGetBalanceWithGrantUnknownAccount(t *testing.T) {
	svc, _ := setupAccountService(t)

	balance, granted, err := svc.GetBalanceWithGrant(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.False(t, granted)
	require.Zero(t, balance)
}

func TestGetBalanceWithGrantAwardsOnce(t *testing.T) {
	svc, db := setupAccountService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "agent")
	require.NoError(t, err)

	// age the account past the grant interval
	err = db.Model(&model.Account{}).
		Where("uuid = ?", account.UUID).
		Update("last_awarded", time.Now().Unix()-90000).Error
	require.NoError(t, err)

	balance, granted, err := svc.GetBalanceWithGrant(ctx, account.UUID)
	require.NoError(t, err)
	require.True(t, granted)
	require.Equal(t, int64(20), balance)

	// second read in quick succession must not grant again
	balance, granted, err = svc.GetBalanceWithGrant(ctx, account.UUID)
	require.NoError(t, err)
	require.False(t, granted)
	require.Equal(t, int64(20), balance)

	// the grant left a journal row and an outbox event
	var trans model.CreditTransaction
	require.NoError(t, db.Where("account_uuid = ? AND type = ?", account.UUID, model.TransactionTypeGrant).First(&trans).Error)
	require.Equal(t, int64(10), trans.Amount)
	require.Equal(t, int64(10), trans.BalanceBefore)
	require.Equal(t, int64(20), trans.BalanceAfter)

	var outboxCount int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Where("status = ?", model.OutboxStatusPending).Count(&outboxCount).Error)
	require.Equal(t, int64(1), outboxCount)
}

func TestUseCredit(t *testing.T) {
	svc, db := setupAccountService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "agent")
	require.NoError(t, err)

	ok, balance, err := svc.UseCredit(ctx, account.UUID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9), balance)

	var trans model.CreditTransaction
	require.NoError(t, db.Where("account_uuid = ? AND type = ?", account.UUID, model.TransactionTypeUsage).First(&trans).Error)
	require.Equal(t, int64(-1), trans.Amount)
	require.Equal(t, int64(10), trans.BalanceBefore)
	require.Equal(t, int64(9), trans.BalanceAfter)
}

func TestUseCreditRefusedOnEmptyBalance(t *testing.T) {
	svc, db := setupAccountService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "agent")
	require.NoError(t, err)

	require.NoError(t, db.Model(&model.Account{}).
		Where("uuid = ?", account.UUID).
		Update("balance", 0).Error)

	ok, _, err := svc.UseCredit(ctx, account.UUID)
	require.NoError(t, err)
	require.False(t, ok)

	// refusal leaves no journal row and no negative balance
	var count int64
	require.NoError(t, db.Model(&model.CreditTransaction{}).
		Where("account_uuid = ? AND type = ?", account.UUID, model.TransactionTypeUsage).
		Count(&count).Error)
	require.Zero(t, count)

	got, err := repository.NewAccountRepository(db).GetByUUID(ctx, nil, account.UUID)
	require.NoError(t, err)
	require.Zero(t, got.Balance)
}

func TestUseCreditUnknownAccount(t *testing.T) {
	svc, _ := setupAccountService(t)

	ok, _, err := svc.UseCredit(context.Background(), uuid.NewString())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyFingerprint(t *testing.T) {
	svc, _ := setupAccountService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "agent-one")
	require.NoError(t, err)

	changed, err := svc.VerifyFingerprint(ctx, account.UUID, "agent-one")
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = svc.VerifyFingerprint(ctx, account.UUID, "agent-two")
	require.NoError(t, err)
	require.True(t, changed)

	// the change never resets the balance
	balance, _, err := svc.GetBalanceWithGrant(ctx, account.UUID)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance)

	_, err = svc.VerifyFingerprint(ctx, uuid.NewString(), "agent")
	require.ErrorIs(t, err, repository.ErrAccountNotFound)
}
