package handler

import (
	"errors"
	"strconv"

	"creditmanager/internal/config"
	"creditmanager/internal/repository"
	"creditmanager/internal/service"
	"creditmanager/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler bundles all service dependencies behind the HTTP surface.
type Handler struct {
	accountService  *service.AccountService
	purchaseService *service.PurchaseService
	adminService    *service.AdminService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config, resolver *service.PricingResolver) *Handler {
	return &Handler{
		accountService:  service.NewAccountService(db, cfg),
		purchaseService: service.NewPurchaseService(db, rdb, cfg, resolver),
		adminService:    service.NewAdminService(db, cfg),
	}
}

// ============================================================
// account endpoints
// ============================================================

// Register issues a fresh anonymous account.
// POST /api/v1/account/register
func (h *Handler) Register(c *gin.Context) {
	userAgent := c.GetHeader("User-Agent")
	if userAgent == "" {
		response.ParamError(c, "User-Agent header is required")
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), userAgent)
	if err != nil {
		response.ServerError(c, "failed to register account")
		return
	}

	response.Success(c, gin.H{
		"account_id": account.UUID,
		"balance":    account.Balance,
	})
}

// GetBalance returns the balance with the free grant applied, and
// detects a changed client agent on the way.
// GET /api/v1/account/balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ParamError(c, "account_id is required")
		return
	}

	fingerprintChanged := false
	if ua := c.GetHeader("User-Agent"); ua != "" {
		changed, err := h.accountService.VerifyFingerprint(c.Request.Context(), accountID, ua)
		if err == nil {
			fingerprintChanged = changed
		} else if !errors.Is(err, repository.ErrAccountNotFound) {
			response.ServerError(c, "failed to verify client fingerprint")
			return
		}
	}

	balance, granted, err := h.accountService.GetBalanceWithGrant(c.Request.Context(), accountID)
	if err != nil {
		response.ServerError(c, "failed to fetch balance")
		return
	}

	response.Success(c, gin.H{
		"account_id":          accountID,
		"balance":             balance,
		"granted":             granted,
		"fingerprint_changed": fingerprintChanged,
	})
}

// Exists supports the "access an existing balance" flow where a client
// pastes a previously issued id.
// GET /api/v1/account/exists?account_id=xxx
func (h *Handler) Exists(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ParamError(c, "account_id is required")
		return
	}

	exists, err := h.accountService.Exists(c.Request.Context(), accountID)
	if err != nil {
		response.ServerError(c, "failed to look up account")
		return
	}

	response.Success(c, gin.H{"exists": exists})
}

// UseRequest identifies the account spending one credit.
type UseRequest struct {
	AccountUUID string `json:"account_id" binding:"required"`
}

// Use spends one credit. An empty balance is a normal outcome reported
// as success=false, not an error.
// POST /api/v1/account/use
func (h *Handler) Use(c *gin.Context) {
	var req UseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	ok, balance, err := h.accountService.UseCredit(c.Request.Context(), req.AccountUUID)
	if err != nil {
		response.ServerError(c, "failed to use credit")
		return
	}

	response.Success(c, gin.H{
		"success": ok,
		"balance": balance,
	})
}

// ListTransactions pages through the account journal.
// GET /api/v1/account/transactions?account_id=xxx&page=1&page_size=10
func (h *Handler) ListTransactions(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ParamError(c, "account_id is required")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	transactions, total, err := h.accountService.ListTransactions(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		response.ServerError(c, "failed to list transactions")
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// purchase endpoints
// ============================================================

// ListPacks returns the purchase catalog.
// GET /api/v1/purchase/packs
func (h *Handler) ListPacks(c *gin.Context) {
	packs, balanceType := h.purchaseService.Packs()
	response.Success(c, gin.H{
		"packs":        packs,
		"balance_type": balanceType,
	})
}

// Checkout validates pack and coupon and either hands back a payment
// redirect URL or, in debug mode, credits directly.
// POST /api/v1/purchase/checkout
func (h *Handler) Checkout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.purchaseService.Checkout(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
			response.BusinessError(c, response.CodeAccountNotFound, "account not found")
		case errors.Is(err, service.ErrPackNotFound):
			response.BusinessError(c, response.CodePackNotFound, "unknown purchase pack")
		case errors.Is(err, service.ErrInvalidCoupon):
			response.BusinessError(c, response.CodeInvalidCoupon, "coupon is invalid for this pack")
		default:
			response.ServerError(c, "checkout failed")
		}
		return
	}

	response.Success(c, result)
}

// Webhook is the payment gateway callback crediting a completed
// purchase. Idempotent per payment reference.
// POST /api/v1/purchase/webhook
func (h *Handler) Webhook(c *gin.Context) {
	var req service.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.purchaseService.HandleWebhook(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicatePayment):
			response.BusinessError(c, response.CodeDuplicatePayment, "payment already credited")
		case errors.Is(err, repository.ErrAccountNotFound):
			response.BusinessError(c, response.CodeAccountNotFound, "account not found")
		case errors.Is(err, service.ErrPackNotFound):
			response.BusinessError(c, response.CodePackNotFound, "unknown purchase pack")
		default:
			response.ServerError(c, "failed to process payment callback")
		}
		return
	}

	response.Success(c, result)
}

// ============================================================
// admin endpoints (debug mode only, see router)
// ============================================================

// ClearAllBalances zeroes every account's balance.
// POST /api/v1/admin/balances/clear
func (h *Handler) ClearAllBalances(c *gin.Context) {
	affected, err := h.adminService.ClearAllBalances(c.Request.Context())
	if err != nil {
		response.ServerError(c, "failed to clear balances")
		return
	}
	response.Success(c, gin.H{"accounts": affected})
}

// DeleteAccount removes one account record.
// DELETE /api/v1/admin/account/:id
func (h *Handler) DeleteAccount(c *gin.Context) {
	accountID := c.Param("id")

	err := h.adminService.DeleteAccount(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			response.BusinessError(c, response.CodeAccountNotFound, "account not found")
			return
		}
		response.ServerError(c, "failed to delete account")
		return
	}
	response.Success(c, gin.H{"deleted": accountID})
}

// DeleteAllAccounts drops every account record.
// DELETE /api/v1/admin/accounts
func (h *Handler) DeleteAllAccounts(c *gin.Context) {
	affected, err := h.adminService.DeleteAllAccounts(c.Request.Context())
	if err != nil {
		response.ServerError(c, "failed to delete accounts")
		return
	}
	response.Success(c, gin.H{"accounts": affected})
}

// AdjustRequest is a manual balance adjustment.
type AdjustRequest struct {
	AccountUUID string `json:"account_id" binding:"required"`
	Delta       int64  `json:"delta" binding:"required"`
}

// AdjustBalance applies a signed manual adjustment.
// POST /api/v1/admin/balance/adjust
func (h *Handler) AdjustBalance(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	balance, err := h.adminService.AddBalance(c.Request.Context(), req.AccountUUID, req.Delta)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			response.BusinessError(c, response.CodeAccountNotFound, "account not found")
			return
		}
		response.ServerError(c, "failed to adjust balance")
		return
	}
	response.Success(c, gin.H{"balance": balance})
}
