package repository

import (
	"context"
	"fmt"
	"testing"

	"creditmanager/internal/config"
	"creditmanager/internal/infrastructure/database"

	"github.com/stretchr/testify/require"
)

func TestCatalogSeedIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := database.Open(dsn, 1)
	require.NoError(t, err)

	repo := NewCatalogRepository(db)
	ctx := context.Background()

	catalog := &config.CatalogConfig{
		Packs: []config.PackConfig{
			{Name: "pack_a", DisplayName: "A", Size: 100, Price: 9.99, Currency: "USD", Coupons: []string{"SAVE10"}},
			{Name: "pack_b", DisplayName: "B", Size: 300, Price: 19.99, Currency: "USD"},
		},
		Coupons: []config.CouponConfig{
			{Code: "SAVE10", DiscountPercent: 10},
		},
	}

	require.NoError(t, repo.Seed(ctx, catalog))

	// re-seeding with a changed price updates in place instead of duplicating
	catalog.Packs[0].Price = 7.99
	require.NoError(t, repo.Seed(ctx, catalog))

	packs, err := repo.LoadPacks(ctx)
	require.NoError(t, err)
	require.Len(t, packs, 2)
	require.Equal(t, "pack_a", packs[0].Name) // cheapest first
	require.Equal(t, 7.99, packs[0].Price)
	require.Equal(t, "SAVE10", packs[0].CouponCodesCSV)

	coupons, err := repo.LoadCoupons(ctx)
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	require.Equal(t, 10, coupons[0].DiscountPercent)
}
