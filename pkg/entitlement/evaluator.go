package entitlement

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"meetai/pkg/apperr"
	"meetai/pkg/billing"
	"meetai/pkg/domain"
)

// UsageStore is the read side of the store the evaluator counts against.
type UsageStore interface {
	CountAgents(ctx context.Context, ownerID string) (int64, error)
	CountMeetings(ctx context.Context, ownerID string, since time.Time) (int64, error)
	GetChat(ctx context.Context, id string) (domain.MeetingChat, bool, error)
}

// Evaluator answers tier and limit questions. It never mutates state; callers
// turn a denied Usage into a FORBIDDEN error.
//
// Agent and meeting checks are check-then-write: two concurrent creates can
// both pass at limit-1. Chat messages use the store's guarded increment instead.
type Evaluator struct {
	billing      billing.Provider
	store        UsageStore
	productTiers map[string]domain.Tier
	now          func() time.Time
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithProductTiers sets the fallback productID -> tier table.
func WithProductTiers(m map[string]domain.Tier) Option {
	return func(e *Evaluator) {
		e.productTiers = m
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

func NewEvaluator(provider billing.Provider, store UsageStore, opts ...Option) *Evaluator {
	e := &Evaluator{
		billing: provider,
		store:   store,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func freeTier() domain.TierInfo {
	return domain.TierInfo{Tier: domain.TierFree, Limits: LimitsFor(domain.TierFree)}
}

// ResolveTier derives the user's tier from the first active subscription.
// Billing errors are returned as-is; there is no cache and no retry.
func (e *Evaluator) ResolveTier(ctx context.Context, userID string) (domain.TierInfo, error) {
	if e.billing == nil {
		return freeTier(), nil
	}
	subs, err := e.billing.ActiveSubscriptions(ctx, userID)
	if err != nil {
		return domain.TierInfo{}, fmt.Errorf("list subscriptions: %w", err)
	}
	var sub *billing.Subscription
	for i := range subs {
		if subs[i].Status == "active" || subs[i].Status == "trialing" {
			sub = &subs[i]
			break
		}
	}
	if sub == nil {
		return freeTier(), nil
	}
	product, err := e.billing.GetProduct(ctx, sub.ProductID)
	if err != nil {
		return domain.TierInfo{}, fmt.Errorf("get product %s: %w", sub.ProductID, err)
	}
	tier := TierForProduct(product, e.productTiers)
	return domain.TierInfo{
		Tier:               tier,
		ProductID:          product.ID,
		ProductName:        product.Name,
		SubscriptionID:     sub.ID,
		SubscriptionStatus: sub.Status,
		Limits:             LimitsFor(tier),
	}, nil
}

// CheckAgentLimit reports whether the user may create one more agent.
func (e *Evaluator) CheckAgentLimit(ctx context.Context, userID string) (domain.Usage, error) {
	info, err := e.ResolveTier(ctx, userID)
	if err != nil {
		return domain.Usage{}, err
	}
	return e.agentUsage(ctx, userID, info)
}

// CheckMeetingLimit reports whether the user may create one more meeting.
// Monthly tiers count only meetings created in the current UTC calendar month.
func (e *Evaluator) CheckMeetingLimit(ctx context.Context, userID string) (domain.Usage, error) {
	info, err := e.ResolveTier(ctx, userID)
	if err != nil {
		return domain.Usage{}, err
	}
	return e.meetingUsage(ctx, userID, info)
}

// CheckChatMessageLimit reports whether one more user message fits in the chat.
func (e *Evaluator) CheckChatMessageLimit(ctx context.Context, userID, chatID string) (domain.Usage, error) {
	chat, ok, err := e.store.GetChat(ctx, chatID)
	if err != nil {
		return domain.Usage{}, err
	}
	if !ok || chat.UserID != userID {
		return domain.Usage{}, apperr.NotFound("chat not found")
	}
	info, err := e.ResolveTier(ctx, userID)
	if err != nil {
		return domain.Usage{}, err
	}
	limit := info.Limits.ChatMessagesPerChat
	return domain.Usage{Allowed: allowed(chat.MessageCount, limit), Current: chat.MessageCount, Limit: limit, Tier: info.Tier}, nil
}

// Summary resolves the tier and both counts concurrently.
func (e *Evaluator) Summary(ctx context.Context, userID string) (domain.UsageSummary, error) {
	var (
		info      domain.TierInfo
		agents    int64
		meetingsU domain.Usage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = e.ResolveTier(gctx, userID)
		if err != nil {
			return err
		}
		meetingsU, err = e.meetingUsage(gctx, userID, info)
		return err
	})
	g.Go(func() error {
		var err error
		agents, err = e.store.CountAgents(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.UsageSummary{}, err
	}
	current := int(agents)
	return domain.UsageSummary{
		Tier: info,
		Agents: domain.Usage{
			Allowed: allowed(current, info.Limits.Agents),
			Current: current,
			Limit:   info.Limits.Agents,
			Tier:    info.Tier,
		},
		Meetings: meetingsU,
	}, nil
}

func (e *Evaluator) agentUsage(ctx context.Context, userID string, info domain.TierInfo) (domain.Usage, error) {
	n, err := e.store.CountAgents(ctx, userID)
	if err != nil {
		return domain.Usage{}, fmt.Errorf("count agents: %w", err)
	}
	current := int(n)
	limit := info.Limits.Agents
	return domain.Usage{Allowed: allowed(current, limit), Current: current, Limit: limit, Tier: info.Tier}, nil
}

func (e *Evaluator) meetingUsage(ctx context.Context, userID string, info domain.TierInfo) (domain.Usage, error) {
	var since time.Time
	if info.Limits.MeetingsMonthly {
		since = MonthStart(e.now())
	}
	n, err := e.store.CountMeetings(ctx, userID, since)
	if err != nil {
		return domain.Usage{}, fmt.Errorf("count meetings: %w", err)
	}
	current := int(n)
	limit := info.Limits.Meetings
	return domain.Usage{Allowed: allowed(current, limit), Current: current, Limit: limit, Tier: info.Tier}, nil
}

// MonthStart returns midnight UTC on the first day of t's month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
