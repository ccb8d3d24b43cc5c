package repository

import (
	"context"
	"strings"

	"creditmanager/internal/config"
	"creditmanager/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Seed upserts the configured packs and coupons into the reference
// tables. Runs once at startup; idempotent across restarts.
func (r *CatalogRepository) Seed(ctx context.Context, cfg *config.CatalogConfig) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range cfg.Packs {
			pack := &model.PurchasePack{
				Name:           p.Name,
				DisplayName:    p.DisplayName,
				Size:           p.Size,
				Price:          p.Price,
				Currency:       p.Currency,
				CouponCodesCSV: strings.Join(p.Coupons, ","),
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"display_name", "size", "price", "currency", "coupon_codes"}),
			}).Create(pack).Error
			if err != nil {
				return err
			}
		}

		for _, c := range cfg.Coupons {
			coupon := &model.Coupon{
				Code:            c.Code,
				DiscountPercent: c.DiscountPercent,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"discount_percent"}),
			}).Create(coupon).Error
			if err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *CatalogRepository) LoadPacks(ctx context.Context) ([]*model.PurchasePack, error) {
	var packs []*model.PurchasePack
	err := r.db.WithContext(ctx).Order("price ASC").Find(&packs).Error
	return packs, err
}

func (r *CatalogRepository) LoadCoupons(ctx context.Context) ([]*model.Coupon, error) {
	var coupons []*model.Coupon
	err := r.db.WithContext(ctx).Find(&coupons).Error
	return coupons, err
}
