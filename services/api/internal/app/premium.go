package app

import (
	"context"
	"fmt"

	"meetai/pkg/apperr"
	"meetai/pkg/billing"
	"meetai/pkg/domain"
	"meetai/pkg/entitlement"
)

// Usage reports the caller's tier with agent and meeting usage.
func (a *App) Usage(ctx context.Context, userID string) (domain.UsageSummary, error) {
	sum, err := a.entitle.Summary(ctx, userID)
	if err != nil {
		return domain.UsageSummary{}, apperr.BadGateway("billing provider unavailable", err)
	}
	return sum, nil
}

// Subscription reports the caller's resolved tier.
func (a *App) Subscription(ctx context.Context, userID string) (domain.TierInfo, error) {
	info, err := a.entitle.ResolveTier(ctx, userID)
	if err != nil {
		return domain.TierInfo{}, apperr.BadGateway("billing provider unavailable", err)
	}
	return info, nil
}

// Plan is a purchasable product with the limits it unlocks.
type Plan struct {
	billing.Product
	Tier   domain.Tier   `json:"tier"`
	Limits domain.Limits `json:"limits"`
}

// Products lists the recurring plans on offer.
func (a *App) Products(ctx context.Context) ([]Plan, error) {
	if a.billing == nil {
		return []Plan{}, nil
	}
	products, err := a.billing.ListProducts(ctx)
	if err != nil {
		return nil, apperr.BadGateway("billing provider unavailable", fmt.Errorf("list products: %w", err))
	}
	plans := make([]Plan, 0, len(products))
	for _, p := range products {
		tier := entitlement.TierForProduct(p, a.tiers)
		plans = append(plans, Plan{Product: p, Tier: tier, Limits: entitlement.LimitsFor(tier)})
	}
	return plans, nil
}
