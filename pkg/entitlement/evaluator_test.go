package entitlement

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"meetai/pkg/apperr"
	"meetai/pkg/billing"
	"meetai/pkg/domain"
	"meetai/pkg/store"
)

type fakeBilling struct {
	subs     map[string][]billing.Subscription
	products map[string]billing.Product
	err      error
}

func (f *fakeBilling) ActiveSubscriptions(_ context.Context, id string) ([]billing.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.subs[id], nil
}

func (f *fakeBilling) GetProduct(_ context.Context, id string) (billing.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return billing.Product{}, billing.ErrNotFound
	}
	return p, nil
}

func (f *fakeBilling) ListProducts(context.Context) ([]billing.Product, error) {
	out := make([]billing.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, nil
}

func subscribed(userID, productID string) *fakeBilling {
	return &fakeBilling{
		subs: map[string][]billing.Subscription{
			userID: {{ID: "sub_1", Status: "active", ProductID: productID}},
		},
		products: map[string]billing.Product{
			"prod_starter": {ID: "prod_starter", Name: "Starter", Metadata: map[string]string{"tier": "starter"}},
			"prod_pro":     {ID: "prod_pro", Name: "Pro", Metadata: map[string]string{"tier": "pro"}},
			"prod_ent":     {ID: "prod_ent", Name: "Enterprise", Metadata: map[string]string{"tier": "enterprise"}},
			"prod_legacy":  {ID: "prod_legacy", Name: "Professional Plan"},
		},
	}
}

func addAgents(t *testing.T, s *store.MemoryStore, owner string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := s.CreateAgent(context.Background(), domain.Agent{ID: fmt.Sprintf("%s-a%d", owner, i), UserID: owner, Name: "a"}); err != nil {
			t.Fatalf("create agent: %v", err)
		}
	}
}

func TestResolveTier(t *testing.T) {
	tests := []struct {
		name    string
		product string
		tiers   map[string]domain.Tier
		want    domain.Tier
	}{
		{name: "no subscription", product: "", want: domain.TierFree},
		{name: "metadata starter", product: "prod_starter", want: domain.TierStarter},
		{name: "metadata pro", product: "prod_pro", want: domain.TierPro},
		{name: "metadata enterprise", product: "prod_ent", want: domain.TierEnterprise},
		{name: "name is never matched", product: "prod_legacy", want: domain.TierFree},
		{name: "configured fallback", product: "prod_legacy", tiers: map[string]domain.Tier{"prod_legacy": domain.TierPro}, want: domain.TierPro},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeBilling{}
			if tc.product != "" {
				provider = subscribed("u1", tc.product)
			}
			e := NewEvaluator(provider, store.NewMemoryStore(), WithProductTiers(tc.tiers))
			info, err := e.ResolveTier(context.Background(), "u1")
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if info.Tier != tc.want {
				t.Fatalf("tier = %s, want %s", info.Tier, tc.want)
			}
			if info.Limits != LimitsFor(tc.want) {
				t.Fatalf("limits = %+v, want %+v", info.Limits, LimitsFor(tc.want))
			}
		})
	}
}

func TestResolveTierPropagatesBillingError(t *testing.T) {
	boom := errors.New("billing down")
	e := NewEvaluator(&fakeBilling{err: boom}, store.NewMemoryStore())
	if _, err := e.ResolveTier(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected billing error, got %v", err)
	}
	if _, err := e.CheckAgentLimit(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Fatalf("expected billing error from check, got %v", err)
	}
}

func TestCheckAgentLimitFreeTier(t *testing.T) {
	s := store.NewMemoryStore()
	addAgents(t, s, "u1", 3)
	e := NewEvaluator(&fakeBilling{}, s)

	usage, err := e.CheckAgentLimit(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if usage.Allowed || usage.Current != 3 || usage.Limit != 3 || usage.Tier != domain.TierFree {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestCheckAgentLimitEnterpriseUnlimited(t *testing.T) {
	s := store.NewMemoryStore()
	addAgents(t, s, "u1", 1000)
	e := NewEvaluator(subscribed("u1", "prod_ent"), s)

	usage, err := e.CheckAgentLimit(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !usage.Allowed || usage.Limit != domain.Unlimited || usage.Current != 1000 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestCheckMeetingLimitMonthlyWindow(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	addAgents(t, s, "u1", 1)
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 60; i++ {
		if err := s.CreateMeeting(ctx, domain.Meeting{ID: fmt.Sprintf("old%d", i), UserID: "u1", AgentID: "u1-a0", CreatedAt: lastMonth}); err != nil {
			t.Fatalf("create meeting: %v", err)
		}
	}
	for i := 0; i < 49; i++ {
		if err := s.CreateMeeting(ctx, domain.Meeting{ID: fmt.Sprintf("new%d", i), UserID: "u1", AgentID: "u1-a0", CreatedAt: now}); err != nil {
			t.Fatalf("create meeting: %v", err)
		}
	}
	e := NewEvaluator(subscribed("u1", "prod_starter"), s, WithClock(func() time.Time { return now }))

	usage, err := e.CheckMeetingLimit(ctx, "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !usage.Allowed || usage.Current != 49 || usage.Limit != 50 {
		t.Fatalf("unexpected starter usage: %+v", usage)
	}

	free := NewEvaluator(&fakeBilling{}, s, WithClock(func() time.Time { return now }))
	usage, _ = free.CheckMeetingLimit(ctx, "u1")
	if usage.Allowed || usage.Current != 109 || usage.Limit != 5 {
		t.Fatalf("unexpected free usage: %+v", usage)
	}
}

func TestCheckChatMessageLimit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	addAgents(t, s, "u1", 1)
	_ = s.CreateMeeting(ctx, domain.Meeting{ID: "m1", UserID: "u1", AgentID: "u1-a0"})
	chat, _ := s.GetOrCreateChat(ctx, domain.MeetingChat{ID: "c1", MeetingID: "m1", UserID: "u1"})
	for i := 0; i < 20; i++ {
		_, _ = s.AppendUserMessage(ctx, domain.ChatMessage{ID: fmt.Sprintf("m%d", i), ChatID: chat.ID}, domain.Unlimited)
	}
	e := NewEvaluator(&fakeBilling{}, s)

	usage, err := e.CheckChatMessageLimit(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if usage.Allowed || usage.Current != 20 || usage.Limit != 20 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if _, err := e.CheckChatMessageLimit(ctx, "u2", "c1"); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for foreign chat, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	addAgents(t, s, "u1", 2)
	_ = s.CreateMeeting(ctx, domain.Meeting{ID: "m1", UserID: "u1", AgentID: "u1-a0", CreatedAt: time.Now()})
	e := NewEvaluator(subscribed("u1", "prod_pro"), s)

	sum, err := e.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Tier.Tier != domain.TierPro || sum.Tier.ProductName != "Pro" {
		t.Fatalf("unexpected tier: %+v", sum.Tier)
	}
	if sum.Agents != (domain.Usage{Allowed: true, Current: 2, Limit: 50, Tier: domain.TierPro}) {
		t.Fatalf("unexpected agent usage: %+v", sum.Agents)
	}
	if sum.Meetings != (domain.Usage{Allowed: true, Current: 1, Limit: 200, Tier: domain.TierPro}) {
		t.Fatalf("unexpected meeting usage: %+v", sum.Meetings)
	}
}

func TestMonthStart(t *testing.T) {
	got := MonthStart(time.Date(2026, 2, 28, 23, 59, 0, 0, time.FixedZone("x", -5*3600)))
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("month start = %v, want %v", got, want)
	}
}
