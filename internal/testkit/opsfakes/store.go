// Package opsfakes provides in-memory fakes for orchestrator tests.
package opsfakes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// Store is an in-memory storage.Store safe for concurrent use.
//
// The Err fields, when set, are returned by the matching operations so tests
// can simulate persistence failures.
type Store struct {
	mu sync.Mutex

	Configs       map[string]storage.ModuleConfigRecord
	Sessions      map[string]storage.SessionRecord
	Conversations map[string]storage.ConversationRecord
	Messages      map[string][]storage.MessageRecord
	Actions       map[string]storage.ActionRecord
	Events        []storage.ActionEventRecord

	GetConfigErr      error
	PutActionErr      error
	TransitionErr     error
	AppendMessageErr  error
	PutActionEventErr error
	TransitionCalls   int
	GetConfigCalls    int
}

var _ storage.Store = (*Store)(nil)

// NewStore constructs a Store with initialized maps.
func NewStore() *Store {
	return &Store{
		Configs:       make(map[string]storage.ModuleConfigRecord),
		Sessions:      make(map[string]storage.SessionRecord),
		Conversations: make(map[string]storage.ConversationRecord),
		Messages:      make(map[string][]storage.MessageRecord),
		Actions:       make(map[string]storage.ActionRecord),
	}
}

func (s *Store) GetModuleConfig(_ context.Context, m string) (storage.ModuleConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetConfigCalls++
	if s.GetConfigErr != nil {
		return storage.ModuleConfigRecord{}, s.GetConfigErr
	}
	record, ok := s.Configs[m]
	if !ok {
		return storage.ModuleConfigRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *Store) PutModuleConfig(_ context.Context, record storage.ModuleConfigRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Configs[record.Module] = record
	return nil
}

func (s *Store) InsertModuleConfigIfAbsent(_ context.Context, record storage.ModuleConfigRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Configs[record.Module]; ok {
		return false, nil
	}
	s.Configs[record.Module] = record
	return true, nil
}

func (s *Store) ListModuleConfigs(_ context.Context) ([]storage.ModuleConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]storage.ModuleConfigRecord, 0, len(s.Configs))
	for _, record := range s.Configs {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Module < records[j].Module })
	return records, nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (storage.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Sessions[sessionID]
	if !ok {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *Store) PutSession(_ context.Context, record storage.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.Sessions[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	}
	s.Sessions[record.ID] = record
	return nil
}

func (s *Store) CreateConversation(_ context.Context, record storage.ConversationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Conversations[record.ID]; ok {
		return storage.ErrConflict
	}
	if record.IsActive {
		for _, existing := range s.Conversations {
			if existing.IsActive && existing.SessionID == record.SessionID && existing.Module == record.Module {
				return storage.ErrConflict
			}
		}
	}
	s.Conversations[record.ID] = record
	return nil
}

func (s *Store) GetConversation(_ context.Context, conversationID string) (storage.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Conversations[conversationID]
	if !ok {
		return storage.ConversationRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *Store) GetActiveConversation(_ context.Context, sessionID string, m string) (storage.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.Conversations {
		if record.IsActive && record.SessionID == sessionID && record.Module == m {
			return record, nil
		}
	}
	return storage.ConversationRecord{}, storage.ErrNotFound
}

func (s *Store) ListConversations(_ context.Context, sessionID string) ([]storage.ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var records []storage.ConversationRecord
	for _, record := range s.Conversations {
		if record.SessionID == sessionID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Store) UpdateConversationContext(_ context.Context, conversationID string, values map[string]any, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Conversations[conversationID]
	if !ok {
		return storage.ErrNotFound
	}
	record.Context = values
	record.UpdatedAt = updatedAt
	s.Conversations[conversationID] = record
	return nil
}

func (s *Store) DeactivateConversation(_ context.Context, sessionID string, m string, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.Conversations {
		if record.IsActive && record.SessionID == sessionID && record.Module == m {
			record.IsActive = false
			record.UpdatedAt = at
			s.Conversations[id] = record
			return id, nil
		}
	}
	return "", storage.ErrNotFound
}

func (s *Store) AppendMessage(_ context.Context, record storage.MessageRecord) (storage.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendMessageErr != nil {
		return storage.MessageRecord{}, s.AppendMessageErr
	}
	conversation, ok := s.Conversations[record.ConversationID]
	if !ok {
		return storage.MessageRecord{}, storage.ErrNotFound
	}
	record.Seq = int64(len(s.Messages[record.ConversationID]) + 1)
	s.Messages[record.ConversationID] = append(s.Messages[record.ConversationID], record)
	conversation.UpdatedAt = record.CreatedAt
	s.Conversations[record.ConversationID] = conversation
	return record, nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string, limit int) ([]storage.MessageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.Messages[conversationID]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return append([]storage.MessageRecord(nil), messages...), nil
}

func (s *Store) PutAction(_ context.Context, record storage.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutActionErr != nil {
		return s.PutActionErr
	}
	if _, ok := s.Actions[record.ID]; ok {
		return storage.ErrConflict
	}
	s.Actions[record.ID] = record
	return nil
}

func (s *Store) GetAction(_ context.Context, actionID string) (storage.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.Actions[actionID]
	if !ok {
		return storage.ActionRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *Store) TransitionAction(_ context.Context, actionID string, from string, to string, patch storage.ActionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TransitionCalls++
	if s.TransitionErr != nil {
		return s.TransitionErr
	}
	record, ok := s.Actions[actionID]
	if !ok {
		return storage.ErrNotFound
	}
	if record.Status != from {
		return storage.ErrConflict
	}
	record.Status = to
	record.UpdatedAt = patch.At
	if patch.Result != nil {
		record.Result = patch.Result
	}
	if patch.Error != "" {
		record.Error = patch.Error
	}
	if patch.SetApprovedAt {
		at := patch.At
		record.ApprovedAt = &at
	}
	if patch.SetExecutedAt {
		at := patch.At
		record.ExecutedAt = &at
	}
	s.Actions[actionID] = record
	return nil
}

// ListActions supports module, status, and keyset filtering. Filter clauses
// are SQL and are rejected.
func (s *Store) ListActions(_ context.Context, query storage.ActionQuery) (storage.ActionPage, error) {
	if query.FilterClause != "" {
		return storage.ActionPage{}, errors.New("filter clauses are not supported by the in-memory store")
	}
	if query.PageSize <= 0 {
		return storage.ActionPage{}, errors.New("page size must be greater than zero")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]struct{}, len(query.Statuses))
	for _, status := range query.Statuses {
		statuses[status] = struct{}{}
	}
	var matched []storage.ActionRecord
	for _, record := range s.Actions {
		if query.Module != "" && record.Module != query.Module {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[record.Status]; !ok {
				continue
			}
		}
		matched = append(matched, record)
	}
	sort.Slice(matched, func(i, j int) bool { return newerThan(matched[i], matched[j].CreatedAt, matched[j].ID) })

	page := storage.ActionPage{}
	for _, record := range matched {
		if query.After != nil && !newerThan(storage.ActionRecord{CreatedAt: query.After.CreatedAt, ID: query.After.ID}, record.CreatedAt, record.ID) {
			continue
		}
		if len(page.Actions) == query.PageSize {
			page.HasMore = true
			break
		}
		page.Actions = append(page.Actions, record)
	}
	return page, nil
}

// newerThan orders by created_at then id, both descending.
func newerThan(record storage.ActionRecord, createdAt time.Time, id string) bool {
	if record.CreatedAt.Equal(createdAt) {
		return record.ID > id
	}
	return record.CreatedAt.After(createdAt)
}

func (s *Store) PutActionEvent(_ context.Context, record storage.ActionEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutActionEventErr != nil {
		return s.PutActionEventErr
	}
	record.ID = int64(len(s.Events) + 1)
	s.Events = append(s.Events, record)
	return nil
}

func (s *Store) ListActionEvents(_ context.Context, actionID string) ([]storage.ActionEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []storage.ActionEventRecord
	for _, event := range s.Events {
		if event.ActionID == actionID {
			events = append(events, event)
		}
	}
	return events, nil
}

// ActionStatus returns the stored status of actionID, or "" when absent.
func (s *Store) ActionStatus(actionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Actions[actionID].Status
}

// MessageCount returns how many messages conversationID holds.
func (s *Store) MessageCount(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages[conversationID])
}
