package domain

// Tier names a subscription level.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Unlimited marks a limit with no ceiling.
const Unlimited = -1

// ParseTier maps a tier tag to a Tier. Unknown tags report false.
func ParseTier(raw string) (Tier, bool) {
	switch Tier(raw) {
	case TierFree, TierStarter, TierPro, TierEnterprise:
		return Tier(raw), true
	default:
		return "", false
	}
}

// Limits are the per-tier resource ceilings.
type Limits struct {
	Agents              int  `json:"agents"`
	Meetings            int  `json:"meetings"`
	MeetingsMonthly     bool `json:"meetingsMonthly"`
	ChatMessagesPerChat int  `json:"chatMessagesPerChat"`
}

// TierInfo is computed per request from billing state.
type TierInfo struct {
	Tier               Tier   `json:"tier"`
	ProductID          string `json:"productId,omitempty"`
	ProductName        string `json:"productName,omitempty"`
	SubscriptionID     string `json:"subscriptionId,omitempty"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
	Limits             Limits `json:"limits"`
}

// Usage is the outcome of one entitlement check.
type Usage struct {
	Allowed bool `json:"allowed"`
	Current int  `json:"current"`
	Limit   int  `json:"limit"`
	Tier    Tier `json:"-"`
}

// UsageSummary reports tier plus agent and meeting usage together.
type UsageSummary struct {
	Tier     TierInfo `json:"tier"`
	Agents   Usage    `json:"agents"`
	Meetings Usage    `json:"meetings"`
}
