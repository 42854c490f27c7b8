package postgres

import (
	"context"

	domain "github.com/meridian-goods/api/internal/domain"
)

// CouponRepository implements repositories.CouponRepository on the coupons table.
type CouponRepository struct {
	provider *Provider
}

// NewCouponRepository constructs the repository over the shared provider.
func NewCouponRepository(provider *Provider) *CouponRepository {
	return &CouponRepository{provider: provider}
}

// FindByCode reads a coupon by its (case-insensitive) code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	const op = "coupon.find_by_code"
	row := r.provider.querier(ctx).QueryRow(ctx,
		`SELECT id, code, discount_type, discount_value, min_purchase_cents,
		        max_discount_cents, usage_limit, usage_count, starts_at, ends_at, is_active
		   FROM coupons WHERE upper(code) = upper($1)`, code)

	var coupon domain.Coupon
	var discountType string
	var minPurchase int64
	var maxDiscount *int64
	err := row.Scan(&coupon.ID, &coupon.Code, &discountType, &coupon.DiscountValue,
		&minPurchase, &maxDiscount, &coupon.UsageLimit, &coupon.UsageCount,
		&coupon.StartsAt, &coupon.EndsAt, &coupon.IsActive)
	if err != nil {
		return domain.Coupon{}, wrapError(op, err)
	}

	coupon.DiscountType = domain.CouponType(discountType)
	coupon.MinPurchase = domain.Cents(minPurchase)
	if maxDiscount != nil {
		capped := domain.Cents(*maxDiscount)
		coupon.MaxDiscount = &capped
	}
	return coupon, nil
}

// Redeem bumps usage_count with a single conditional statement bounded by the
// usage limit. A zero-row update means the coupon is exhausted or inactive.
func (r *CouponRepository) Redeem(ctx context.Context, couponID string) (bool, error) {
	const op = "coupon.redeem"
	tag, err := r.provider.querier(ctx).Exec(ctx,
		`UPDATE coupons
		    SET usage_count = usage_count + 1
		  WHERE id = $1 AND is_active
		    AND (usage_limit IS NULL OR usage_count < usage_limit)`,
		couponID)
	if err != nil {
		return false, wrapError(op, err)
	}
	return tag.RowsAffected() == 1, nil
}
