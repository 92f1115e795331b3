package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meetai/internal/util"
	"meetai/pkg/ai"
	"meetai/pkg/domain"
)

func chatSystemPrompt(m domain.Meeting, agent domain.Agent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an AI assistant helping the user revisit the meeting %q, which has finished.\n\n", agent.Name, m.Name)
	b.WriteString("Below is a summary of the meeting, generated from its transcript:\n\n")
	b.WriteString(m.Summary)
	b.WriteString("\n\nThese are your original instructions from the live meeting. Keep following them as you assist the user:\n\n")
	b.WriteString(agent.Instructions)
	b.WriteString("\n\nThe user may ask questions about the meeting, request clarifications or ask for follow-up actions. ")
	b.WriteString("Base your answers on the summary above. If the summary does not contain the answer, say so.")
	return b.String()
}

// ReplyToChat answers the latest user messages of a meeting chat as the
// meeting's agent. A chat whose newest message is already an agent reply is
// left alone, so redelivered jobs do not answer twice.
func (a *App) ReplyToChat(ctx context.Context, chatID string) error {
	logger := util.LoggerFromContext(ctx).With("chat_id", chatID)
	chat, ok, err := a.store.GetChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load chat: %w", err)
	}
	if !ok {
		logger.Warn("reply skipped, chat deleted")
		return nil
	}
	m, ok, err := a.store.GetMeeting(ctx, chat.MeetingID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}
	if !ok {
		logger.Warn("reply skipped, meeting deleted")
		return nil
	}
	agent, ok, err := a.store.GetAgent(ctx, m.AgentID)
	if err != nil {
		return fmt.Errorf("load agent: %w", err)
	}
	if !ok {
		logger.Warn("reply skipped, agent deleted", "agent_id", m.AgentID)
		return nil
	}

	history, err := a.store.ListChatMessages(ctx, chat.ID, a.chatHistory)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 || history[len(history)-1].Role != domain.RoleUser {
		logger.Info("reply skipped, nothing to answer")
		return nil
	}

	reply, err := a.generate(ctx, "chat", ai.Request{
		System:   chatSystemPrompt(m, agent),
		Messages: toConversation(history),
	})
	if err != nil {
		return err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return errors.New("generate chat: empty response")
	}
	err = a.store.AppendAgentMessage(ctx, domain.ChatMessage{
		ID:        util.NewID(),
		ChatID:    chat.ID,
		Role:      domain.RoleAgent,
		AgentID:   agent.ID,
		Content:   reply,
		CreatedAt: a.clock(),
	})
	if err != nil {
		return fmt.Errorf("append agent message: %w", err)
	}
	return nil
}

// toConversation maps stored messages to LLM turns. History trimmed to a
// window may open with an agent turn; it is dropped since providers expect
// the user to speak first.
func toConversation(history []domain.ChatMessage) []ai.Message {
	out := make([]ai.Message, 0, len(history))
	for _, msg := range history {
		role := ai.RoleUser
		if msg.Role == domain.RoleAgent {
			role = ai.RoleAssistant
		}
		if len(out) == 0 && role == ai.RoleAssistant {
			continue
		}
		out = append(out, ai.Message{Role: role, Content: msg.Content})
	}
	return out
}
