package action

import (
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// ToRecord converts a into its persistence shape.
func ToRecord(a Action) storage.ActionRecord {
	return storage.ActionRecord{
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

// FromRecord converts a stored row into an Action.
func FromRecord(record storage.ActionRecord) Action {
	return Action{
		ID:               record.ID,
		ConversationID:   record.ConversationID,
		Module:           module.Module(record.Module),
		Type:             record.Type,
		Data:             record.Data,
		Status:           Status(record.Status),
		RiskTier:         module.RiskTier(record.RiskTier),
		RequiresApproval: record.RequiresApproval,
		Result:           record.Result,
		Error:            record.Error,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
		ApprovedAt:       record.ApprovedAt,
		ExecutedAt:       record.ExecutedAt,
	}
}

// FromRecords converts a slice of stored rows.
func FromRecords(records []storage.ActionRecord) []Action {
	actions := make([]Action, 0, len(records))
	for _, record := range records {
		actions = append(actions, FromRecord(record))
	}
	return actions
}
