package orchestrator

import (
	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/conversation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
)

func actionToWire(a action.Action) Action {
	return Action{
		ID:               a.ID,
		ConversationID:   a.ConversationID,
		Module:           string(a.Module),
		Type:             a.Type,
		Data:             a.Data,
		Status:           string(a.Status),
		RiskTier:         string(a.RiskTier),
		RequiresApproval: a.RequiresApproval,
		Result:           a.Result,
		Error:            a.Error,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		ApprovedAt:       a.ApprovedAt,
		ExecutedAt:       a.ExecutedAt,
	}
}

func actionsToWire(actions []action.Action) []Action {
	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionToWire(a))
	}
	return out
}

func eventsToWire(events []lifecycle.Event) []ActionEvent {
	out := make([]ActionEvent, 0, len(events))
	for _, e := range events {
		out = append(out, ActionEvent{
			Name:       e.EventName,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

func conversationToWire(c conversation.Conversation) Conversation {
	out := Conversation{
		ID:        c.ID,
		SessionID: c.SessionID,
		Module:    string(c.Module),
		IsActive:  c.IsActive,
		Context:   c.Context,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, m := range c.Messages {
		out.Messages = append(out.Messages, Message{
			Seq:       m.Seq,
			Role:      string(m.Role),
			Content:   m.Content,
			ActionID:  m.ActionID,
			Timestamp: m.Timestamp,
		})
	}
	return out
}

func personalityToWire(p module.Personality) Personality {
	return Personality{Name: p.Name, NameKa: p.NameKa, Style: p.Style}
}

func configToWire(c moduleconfig.Config) ModuleConfig {
	tiers := make([]string, 0, len(c.AutoApproveRiskTiers))
	for _, tier := range c.AutoApproveRiskTiers {
		tiers = append(tiers, string(tier))
	}
	return ModuleConfig{
		Module:         string(c.Module),
		Enabled:        c.Enabled,
		AutoApprove:    tiers,
		Capabilities:   c.Capabilities,
		BehaviorPrompt: c.BehaviorPrompt,
		Personality:    personalityToWire(c.Personality),
		UpdatedAt:      c.UpdatedAt,
	}
}

func definitionsToWire(defs []module.ActionDefinition) []ActionDefinition {
	out := make([]ActionDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, ActionDefinition{
			Type:          def.Type,
			Risk:          string(def.Risk),
			Description:   def.Description,
			DescriptionKa: def.DescriptionKa,
		})
	}
	return out
}
