package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"creditmanager/internal/config"
	"creditmanager/internal/infrastructure/database"
	"creditmanager/internal/model"
	"creditmanager/internal/repository"
	"creditmanager/internal/service"
	"creditmanager/pkg/response"

	"github.com/gin-gonic/gin"
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
		Catalog: config.CatalogConfig{
			Packs: []config.PackConfig{
				{Name: "pack_a", DisplayName: "A", Size: 100, Price: 9.99, Currency: "USD", Coupons: []string{"SAVE10"}},
			},
			Coupons: []config.CouponConfig{
				{Code: "SAVE10", DiscountPercent: 10},
			},
		},
	}
}

// the router runs without redis here: every tested path stays clear of
// the purchase lock.
func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, 1)
	require.NoError(t, err)

	ctx := context.Background()
	cfg := testConfig()
	catalogRepo := repository.NewCatalogRepository(db)
	require.NoError(t, catalogRepo.Seed(ctx, &cfg.Catalog))
	packs, err := catalogRepo.LoadPacks(ctx)
	require.NoError(t, err)
	coupons, err := catalogRepo.LoadCoupons(ctx)
	require.NoError(t, err)

	return SetupRouter(db, nil, cfg, service.NewPricingResolver(packs, coupons)), db
}

func httpDo(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "expected object data, got %T", resp.Data)
	return data
}

func registerAccount(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := httpDo(r, "POST", "/api/v1/account/register", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	require.Equal(t, float64(10), data["balance"])
	id, _ := data["account_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestRegisterAndBalanceFlow(t *testing.T) {
	r, _ := setupRouter(t)

	id := registerAccount(t, r)

	w := httpDo(r, "GET", "/api/v1/account/balance?account_id="+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, decode(t, w))
	require.Equal(t, float64(10), data["balance"])
	require.Equal(t, false, data["granted"])
	require.Equal(t, false, data["fingerprint_changed"])
}

func TestBalanceUnknownAccountIsZero(t *testing.T) {
	r, _ := setupRouter(t)

	w := httpDo(r, "GET", "/api/v1/account/balance?account_id=no-such-id", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, decode(t, w))
	require.Equal(t, float64(0), data["balance"])
}

func TestExists(t *testing.T) {
	r, _ := setupRouter(t)

	id := registerAccount(t, r)

	w := httpDo(r, "GET", "/api/v1/account/exists?account_id="+id, nil)
	data := dataMap(t, decode(t, w))
	require.Equal(t, true, data["exists"])

	w = httpDo(r, "GET", "/api/v1/account/exists?account_id=nope", nil)
	data = dataMap(t, decode(t, w))
	require.Equal(t, false, data["exists"])
}

func TestUseCreditEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	id := registerAccount(t, r)

	w := httpDo(r, "POST", "/api/v1/account/use", gin.H{"account_id": id})
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, decode(t, w))
	require.Equal(t, true, data["success"])
	require.Equal(t, float64(9), data["balance"])

	// drain and verify the refusal shape
	for i := 0; i < 9; i++ {
		httpDo(r, "POST", "/api/v1/account/use", gin.H{"account_id": id})
	}
	w = httpDo(r, "POST", "/api/v1/account/use", gin.H{"account_id": id})
	data = dataMap(t, decode(t, w))
	require.Equal(t, false, data["success"])
}

func TestCheckoutEndpoint(t *testing.T) {
	r, _ := setupRouter(t)

	id := registerAccount(t, r)

	// debug mode credits directly
	w := httpDo(r, "POST", "/api/v1/purchase/checkout", gin.H{
		"account_id": id,
		"pack":       "pack_a",
		"coupon":     "SAVE10",
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := dataMap(t, resp)
	require.Equal(t, float64(90), data["credited"])
	require.Equal(t, float64(100), data["balance"])

	// unknown pack
	w = httpDo(r, "POST", "/api/v1/purchase/checkout", gin.H{"account_id": id, "pack": "pack_x"})
	require.Equal(t, response.CodePackNotFound, decode(t, w).Code)

	// coupon that does not apply
	w = httpDo(r, "POST", "/api/v1/purchase/checkout", gin.H{"account_id": id, "pack": "pack_a", "coupon": "NOPE"})
	require.Equal(t, response.CodeInvalidCoupon, decode(t, w).Code)

	// unknown account
	w = httpDo(r, "POST", "/api/v1/purchase/checkout", gin.H{"account_id": "ghost", "pack": "pack_a"})
	require.Equal(t, response.CodeAccountNotFound, decode(t, w).Code)
}

func TestListPacks(t *testing.T) {
	r, _ := setupRouter(t)

	w := httpDo(r, "GET", "/api/v1/purchase/packs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, decode(t, w))
	require.Equal(t, "Credits", data["balance_type"])
	packs, ok := data["packs"].([]interface{})
	require.True(t, ok)
	require.Len(t, packs, 1)
}

func TestWebhookDuplicateIsRejected(t *testing.T) {
	r, db := setupRouter(t)

	id := registerAccount(t, r)

	require.NoError(t, db.Create(&model.CreditTransaction{
		TransactionNo: "TXN-test-1",
		AccountUUID:   id,
		Amount:        90,
		Type:          model.TransactionTypePurchase,
		BalanceBefore: 10,
		BalanceAfter:  100,
		Reference:     "PAY-dup",
	}).Error)

	w := httpDo(r, "POST", "/api/v1/purchase/webhook", gin.H{
		"account_id": id,
		"pack":       "pack_a",
		"reference":  "PAY-dup",
		"status":     "success",
	})
	require.Equal(t, response.CodeDuplicatePayment, decode(t, w).Code)
}

func TestAdminEndpoints(t *testing.T) {
	r, _ := setupRouter(t)

	a := registerAccount(t, r)
	b := registerAccount(t, r)

	// manual adjustment
	w := httpDo(r, "POST", "/api/v1/admin/balance/adjust", gin.H{"account_id": a, "delta": 5})
	data := dataMap(t, decode(t, w))
	require.Equal(t, float64(15), data["balance"])

	// clear all balances
	w = httpDo(r, "POST", "/api/v1/admin/balances/clear", nil)
	data = dataMap(t, decode(t, w))
	require.Equal(t, float64(2), data["accounts"])

	for _, id := range []string{a, b} {
		w = httpDo(r, "GET", "/api/v1/account/balance?account_id="+id, nil)
		require.Equal(t, float64(0), dataMap(t, decode(t, w))["balance"])
	}

	// delete one account, then the rest
	w = httpDo(r, "DELETE", "/api/v1/admin/account/"+a, nil)
	require.Equal(t, response.CodeSuccess, decode(t, w).Code)

	w = httpDo(r, "DELETE", "/api/v1/admin/account/"+a, nil)
	require.Equal(t, response.CodeAccountNotFound, decode(t, w).Code)

	w = httpDo(r, "DELETE", "/api/v1/admin/accounts", nil)
	data = dataMap(t, decode(t, w))
	require.Equal(t, float64(1), data["accounts"])
}

func TestAdminRoutesAbsentInReleaseMode(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, 1)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Server.Mode = "release"
	r := SetupRouter(db, nil, cfg, service.NewPricingResolver(nil, nil))

	w := httpDo(r, "POST", "/api/v1/admin/balances/clear", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFingerprintChangeDetectedOnBalanceRead(t *testing.T) {
	r, _ := setupRouter(t)

	id := registerAccount(t, r)

	req := httptest.NewRequest("GET", "/api/v1/account/balance?account_id="+id, nil)
	req.Header.Set("User-Agent", "another-agent")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	data := dataMap(t, decode(t, w))
	require.Equal(t, true, data["fingerprint_changed"])
	// balance survives the device change
	require.Equal(t, float64(10), data["balance"])
}
