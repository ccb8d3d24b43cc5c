package service

import (
	"errors"
	"strings"

	"creditmanager/internal/model"
)

var ErrPackNotFound = errors.New("purchase pack not found")

// PackInfo is the resolved view of a purchase pack.
type PackInfo struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Size        int64   `json:"size"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
}

// PricingResolver validates pack/coupon combinations and computes the
// credit to award. Pure: built once from the persisted catalog and
// never mutated afterwards.
type PricingResolver struct {
	packs       []PackInfo
	packsByName map[string]PackInfo
	packCoupons map[string]map[string]struct{} // pack name -> applicable coupon codes
	discounts   map[string]int                 // coupon code -> discount percent
}

func NewPricingResolver(packs []*model.PurchasePack, coupons []*model.Coupon) *PricingResolver {
	r := &PricingResolver{
		packsByName: make(map[string]PackInfo, len(packs)),
		packCoupons: make(map[string]map[string]struct{}, len(packs)),
		discounts:   make(map[string]int, len(coupons)),
	}

	for _, p := range packs {
		info := PackInfo{
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Size:        p.Size,
			Price:       p.Price,
			Currency:    p.Currency,
		}
		r.packs = append(r.packs, info)
		r.packsByName[p.Name] = info

		applicable := make(map[string]struct{})
		for _, code := range strings.Split(p.CouponCodesCSV, ",") {
			code = strings.TrimSpace(code)
			if code != "" {
				applicable[code] = struct{}{}
			}
		}
		r.packCoupons[p.Name] = applicable
	}

	for _, c := range coupons {
		r.discounts[c.Code] = c.DiscountPercent
	}

	return r
}

// Packs lists the catalog in price order.
func (r *PricingResolver) Packs() []PackInfo {
	return r.packs
}

func (r *PricingResolver) ResolvePack(name string) (PackInfo, error) {
	pack, ok := r.packsByName[name]
	if !ok {
		return PackInfo{}, ErrPackNotFound
	}
	return pack, nil
}

// ResolveCoupon reports whether code applies to the given pack and at
// what discount. An unknown or inapplicable coupon is a normal outcome,
// never an error: (false, 0).
func (r *PricingResolver) ResolveCoupon(code, packName string) (bool, int) {
	discount, ok := r.discounts[code]
	if !ok {
		return false, 0
	}
	applicable, ok := r.packCoupons[packName]
	if !ok {
		return false, 0
	}
	if _, ok := applicable[code]; !ok {
		return false, 0
	}
	return true, discount
}

// ComputeCredit returns size - floor(size*discount/100), never below 0.
func ComputeCredit(size int64, discountPercent int) int64 {
	credit := size - size*int64(discountPercent)/100
	if credit < 0 {
		return 0
	}
	return credit
}
