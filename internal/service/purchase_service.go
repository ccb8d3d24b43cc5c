package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"creditmanager/internal/config"
	"creditmanager/internal/infrastructure/lock"
	"creditmanager/internal/model"
	"creditmanager/internal/repository"
	"creditmanager/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrInvalidCoupon    = errors.New("coupon is invalid or not applicable to this pack")
	ErrDuplicatePayment = errors.New("payment reference already credited")
)

// PurchaseService turns a pack/coupon selection into either a payment
// redirect (release mode) or a direct credit (debug mode), and credits
// accounts when the gateway calls back.
type PurchaseService struct {
	db              *gorm.DB
	redisClient     *redis.Client
	cfg             *config.Config
	resolver        *PricingResolver
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewPurchaseService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, resolver *PricingResolver) *PurchaseService {
	return &PurchaseService{
		db:              db,
		redisClient:     redisClient,
		cfg:             cfg,
		resolver:        resolver,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

type CheckoutRequest struct {
	AccountUUID string `json:"account_id" binding:"required"`
	Pack        string `json:"pack" binding:"required"`
	Coupon      string `json:"coupon"`
}

type CheckoutResponse struct {
	PaymentURL string `json:"payment_url,omitempty"`
	Reference  string `json:"reference"`
	Credited   int64  `json:"credited,omitempty"`
	Balance    int64  `json:"balance,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Checkout validates the pack/coupon combination. In release mode it
// returns the gateway redirect URL carrying the discounted price; in
// debug mode it credits the account immediately.
func (s *PurchaseService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	exists, err := s.accountRepo.Exists(ctx, nil, req.AccountUUID)
	if err != nil {
		return nil, fmt.Errorf("look up account: %w", err)
	}
	if !exists {
		return nil, repository.ErrAccountNotFound
	}

	pack, err := s.resolver.ResolvePack(req.Pack)
	if err != nil {
		return nil, err
	}

	discount := 0
	if req.Coupon != "" {
		valid, d := s.resolver.ResolveCoupon(req.Coupon, req.Pack)
		if !valid {
			return nil, ErrInvalidCoupon
		}
		discount = d
	}

	reference := idgen.GeneratePaymentReference()

	if s.cfg.IsDebug() {
		credit := ComputeCredit(pack.Size, discount)
		balance, err := s.creditAccount(ctx, req.AccountUUID, credit, reference, fmt.Sprintf("debug checkout %s", pack.Name))
		if err != nil {
			return nil, err
		}
		return &CheckoutResponse{
			Reference: reference,
			Credited:  credit,
			Balance:   balance,
			Message:   "credited directly (debug mode)",
		}, nil
	}

	charge := pack.Price * float64(100-discount) / 100
	url := strings.NewReplacer(
		"{account_id}", req.AccountUUID,
		"{amount}", s.FormatAmount(charge),
	).Replace(s.cfg.Payment.RedirectURL)

	log.Printf("checkout redirect: uuid=%s, pack=%s, discount=%d%%, reference=%s",
		req.AccountUUID, pack.Name, discount, reference)

	return &CheckoutResponse{
		PaymentURL: url,
		Reference:  reference,
	}, nil
}

type WebhookRequest struct {
	AccountUUID string `json:"account_id" binding:"required"`
	Pack        string `json:"pack" binding:"required"`
	Coupon      string `json:"coupon"`
	Reference   string `json:"reference" binding:"required"`
	Status      string `json:"status" binding:"required"`
}

type WebhookResponse struct {
	Reference string `json:"reference"`
	Credited  int64  `json:"credited"`
	Balance   int64  `json:"balance"`
}

// HandleWebhook credits the purchased pack once per payment reference.
// The journal row keyed by reference is the idempotency record; the
// per-account redis lock serializes repeated gateway callbacks.
func (s *PurchaseService) HandleWebhook(ctx context.Context, req *WebhookRequest) (*WebhookResponse, error) {
	if !strings.EqualFold(req.Status, "success") {
		return nil, fmt.Errorf("payment not successful: status=%s", req.Status)
	}

	existing, err := s.transactionRepo.GetByReference(ctx, req.Reference)
	if err != nil {
		return nil, fmt.Errorf("check payment reference: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicatePayment
	}

	creditLock := lock.NewCreditLock(s.redisClient, req.AccountUUID, req.Reference)
	if err := creditLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, fmt.Errorf("acquire credit lock: %w", err)
	}
	defer creditLock.Unlock(ctx)

	// re-check under the lock
	existing, err = s.transactionRepo.GetByReference(ctx, req.Reference)
	if err != nil {
		return nil, fmt.Errorf("check payment reference: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicatePayment
	}

	pack, err := s.resolver.ResolvePack(req.Pack)
	if err != nil {
		return nil, err
	}

	discount := 0
	if req.Coupon != "" {
		if valid, d := s.resolver.ResolveCoupon(req.Coupon, req.Pack); valid {
			discount = d
		}
	}

	credit := ComputeCredit(pack.Size, discount)
	balance, err := s.creditAccount(ctx, req.AccountUUID, credit, req.Reference, fmt.Sprintf("purchase %s", pack.Name))
	if err != nil {
		return nil, err
	}

	log.Printf("purchase credited: uuid=%s, pack=%s, credit=%d, reference=%s",
		req.AccountUUID, pack.Name, credit, req.Reference)

	return &WebhookResponse{
		Reference: req.Reference,
		Credited:  credit,
		Balance:   balance,
	}, nil
}

// creditAccount applies the credit, journals it and enqueues the event
// in one transaction.
func (s *PurchaseService) creditAccount(ctx context.Context, accountUUID string, credit int64, reference, remark string) (int64, error) {
	var balance int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		newBalance, err := s.accountRepo.AdjustBalance(ctx, tx, accountUUID, credit)
		if err != nil {
			return err
		}
		balance = newBalance

		trans := &model.CreditTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountUUID:   accountUUID,
			Amount:        credit,
			Type:          model.TransactionTypePurchase,
			BalanceBefore: newBalance - credit,
			BalanceAfter:  newBalance,
			Reference:     reference,
			Remark:        remark,
		}
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("record purchase: %w", err)
		}
		msg := newBalanceOutboxMessage(s.cfg.Kafka.Topic.BalanceEvents, trans)
		if err := s.outboxRepo.Create(ctx, tx, msg); err != nil {
			return fmt.Errorf("enqueue purchase event: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// FormatAmount renders a price with the configured currency unit and
// decimal places.
func (s *PurchaseService) FormatAmount(amount float64) string {
	return fmt.Sprintf("%s%.*f", s.cfg.Payment.CurrencyUnit, s.cfg.Payment.CurrencyDecimals, amount)
}

// Packs exposes the catalog listing together with the display label for
// the balance unit.
func (s *PurchaseService) Packs() ([]PackInfo, string) {
	return s.resolver.Packs(), s.cfg.Business.BalanceType
}
