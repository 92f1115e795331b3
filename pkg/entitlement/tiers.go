// Package entitlement resolves a user's subscription tier and checks resource
// usage against the tier's limits.
package entitlement

import (
	"strings"

	"meetai/pkg/billing"
	"meetai/pkg/domain"
)

// MetadataTierKey is the product metadata key carrying the tier tag.
const MetadataTierKey = "tier"

var limitsTable = map[domain.Tier]domain.Limits{
	domain.TierFree: {
		Agents:              3,
		Meetings:            5,
		MeetingsMonthly:     false,
		ChatMessagesPerChat: 20,
	},
	domain.TierStarter: {
		Agents:              10,
		Meetings:            50,
		MeetingsMonthly:     true,
		ChatMessagesPerChat: 100,
	},
	domain.TierPro: {
		Agents:              50,
		Meetings:            200,
		MeetingsMonthly:     true,
		ChatMessagesPerChat: 500,
	},
	domain.TierEnterprise: {
		Agents:              domain.Unlimited,
		Meetings:            domain.Unlimited,
		MeetingsMonthly:     false,
		ChatMessagesPerChat: domain.Unlimited,
	},
}

// LimitsFor returns the limits of tier; unknown tiers get the free limits.
func LimitsFor(tier domain.Tier) domain.Limits {
	if l, ok := limitsTable[tier]; ok {
		return l
	}
	return limitsTable[domain.TierFree]
}

// TierForProduct maps a billing product to a tier: the product's metadata tag
// wins, then the configured product table, then free.
func TierForProduct(p billing.Product, productTiers map[string]domain.Tier) domain.Tier {
	if raw, ok := p.Metadata[MetadataTierKey]; ok {
		if tier, ok := domain.ParseTier(strings.ToLower(strings.TrimSpace(raw))); ok {
			return tier
		}
	}
	if tier, ok := productTiers[p.ID]; ok {
		return tier
	}
	return domain.TierFree
}

func allowed(current, limit int) bool {
	return limit == domain.Unlimited || current < limit
}
