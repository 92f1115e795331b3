package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meetai/internal/util"
	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/pkg/store"
)

const (
	maxAgentNameLen     = 100
	maxInstructionsLen  = 10000
	agentLimitMessage   = "You have reached the maximum number of agents for your plan"
	meetingLimitMessage = "You have reached the maximum number of meetings for your plan"
)

// AgentInput is the body of an agent create or update.
type AgentInput struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

func (in AgentInput) validate() (AgentInput, error) {
	name, err := normalizeName(in.Name, maxAgentNameLen)
	if err != nil {
		return in, apperr.BadRequest(err.Error())
	}
	instructions := strings.TrimSpace(in.Instructions)
	if instructions == "" {
		return in, apperr.BadRequest("instructions are required")
	}
	if len([]rune(instructions)) > maxInstructionsLen {
		return in, apperr.BadRequest(fmt.Sprintf("instructions must be at most %d characters", maxInstructionsLen))
	}
	return AgentInput{Name: name, Instructions: instructions}, nil
}

// CreateAgent stores a new agent after the tier check passes.
func (a *App) CreateAgent(ctx context.Context, userID string, in AgentInput) (domain.Agent, error) {
	in, err := in.validate()
	if err != nil {
		return domain.Agent{}, err
	}
	usage, err := a.entitle.CheckAgentLimit(ctx, userID)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("check agent limit: %w", err)
	}
	if !usage.Allowed {
		a.denied(ctx, userID, "agents", usage)
		return domain.Agent{}, apperr.Forbidden(agentLimitMessage)
	}
	now := a.clock()
	agent := domain.Agent{
		ID:           util.NewID(),
		UserID:       userID,
		Name:         in.Name,
		Instructions: in.Instructions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateAgent(ctx, agent); err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return domain.Agent{}, apperr.NotFound("user not found")
		}
		return domain.Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return agent, nil
}

// GetAgent returns an owned agent with its meeting count.
func (a *App) GetAgent(ctx context.Context, userID, id string) (domain.Agent, error) {
	agent, ok, err := a.store.GetOwnedAgent(ctx, userID, id)
	if err != nil {
		return domain.Agent{}, err
	}
	if !ok {
		return domain.Agent{}, ErrAgentNotFound
	}
	return agent, nil
}

// ListAgents pages through the user's agents, newest first.
func (a *App) ListAgents(ctx context.Context, userID, search string, page domain.Page) (Paged[domain.Agent], error) {
	items, total, err := a.store.ListAgents(ctx, userID, strings.TrimSpace(search), page)
	if err != nil {
		return Paged[domain.Agent]{}, err
	}
	return newPaged(items, total, page.PageSize), nil
}

// UpdateAgent replaces name and instructions.
func (a *App) UpdateAgent(ctx context.Context, userID, id string, in AgentInput) (domain.Agent, error) {
	in, err := in.validate()
	if err != nil {
		return domain.Agent{}, err
	}
	ok, err := a.store.UpdateAgent(ctx, domain.Agent{ID: id, UserID: userID, Name: in.Name, Instructions: in.Instructions})
	if err != nil {
		return domain.Agent{}, err
	}
	if !ok {
		return domain.Agent{}, ErrAgentNotFound
	}
	return a.GetAgent(ctx, userID, id)
}

// DeleteAgent removes the agent and, by cascade, its meetings.
func (a *App) DeleteAgent(ctx context.Context, userID, id string) error {
	ok, err := a.store.DeleteAgent(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAgentNotFound
	}
	return nil
}

// AgentExists reports whether an agent id exists, without ownership.
func (a *App) AgentExists(ctx context.Context, id string) (bool, error) {
	_, ok, err := a.store.GetAgent(ctx, id)
	return ok, err
}

func (a *App) denied(ctx context.Context, userID, resource string, usage domain.Usage) {
	a.metrics.EntitlementDenied(resource, string(usage.Tier))
	util.LoggerFromContext(ctx).Info("entitlement denied",
		"user_id", userID, "resource", resource, "tier", usage.Tier,
		"current", usage.Current, "limit", usage.Limit)
}
