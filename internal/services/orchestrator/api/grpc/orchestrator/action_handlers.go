package orchestrator

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
)

// SubmitAction proposes an action without a conversation turn.
func (s *Service) SubmitAction(ctx context.Context, in *SubmitActionRequest) (*ActionResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "submit action request is required")
	}
	mod, err := module.Parse(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	created, err := s.actions.Submit(ctx, lifecycle.SubmitInput{
		Type:           in.Type,
		Data:           in.Data,
		Module:         mod,
		ConversationID: in.ConversationID,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ActionResponse{Action: actionToWire(created)}, nil
}

// ApproveAction approves a pending action and returns its current state.
func (s *Service) ApproveAction(ctx context.Context, in *ActionIDRequest) (*ActionResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "approve action request is required")
	}
	if err := s.actions.Approve(ctx, in.ActionID); err != nil {
		return nil, s.toStatus(ctx, withActionID(err, in.ActionID))
	}
	return s.GetAction(ctx, in)
}

// RejectAction cancels a pending action and returns its current state.
func (s *Service) RejectAction(ctx context.Context, in *RejectActionRequest) (*ActionResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "reject action request is required")
	}
	if err := s.actions.Reject(ctx, in.ActionID, in.Reason); err != nil {
		return nil, s.toStatus(ctx, withActionID(err, in.ActionID))
	}
	return s.GetAction(ctx, &ActionIDRequest{ActionID: in.ActionID})
}

// GetAction returns one action.
func (s *Service) GetAction(ctx context.Context, in *ActionIDRequest) (*ActionResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get action request is required")
	}
	got, err := s.actions.Get(ctx, in.ActionID)
	if err != nil {
		return nil, s.toStatus(ctx, withActionID(err, in.ActionID))
	}
	return &ActionResponse{Action: actionToWire(got)}, nil
}

// ListPendingActions returns every action waiting for a decision.
func (s *Service) ListPendingActions(ctx context.Context, in *ListPendingActionsRequest) (*ListActionsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list pending actions request is required")
	}
	mod, err := parseOptionalModule(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	pending, err := s.actions.GetPending(ctx, mod)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ListActionsResponse{Actions: actionsToWire(pending)}, nil
}

// ListActionHistory returns recent finished actions.
func (s *Service) ListActionHistory(ctx context.Context, in *ListActionHistoryRequest) (*ListActionsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list action history request is required")
	}
	mod, err := parseOptionalModule(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	history, err := s.actions.GetHistory(ctx, mod, in.Limit)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ListActionsResponse{Actions: actionsToWire(history)}, nil
}

// ListActions returns a filtered page of actions.
func (s *Service) ListActions(ctx context.Context, in *ListActionsRequest) (*ListActionsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list actions request is required")
	}
	mod, err := parseOptionalModule(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	page, err := s.actions.List(ctx, lifecycle.ListInput{
		Module:    mod,
		Filter:    in.Filter,
		PageSize:  in.PageSize,
		PageToken: in.PageToken,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ListActionsResponse{Actions: actionsToWire(page.Actions), NextPageToken: page.NextPageToken}, nil
}

// ListActionEvents returns an action's audit trail.
func (s *Service) ListActionEvents(ctx context.Context, in *ActionIDRequest) (*ListActionEventsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list action events request is required")
	}
	events, err := s.actions.Events(ctx, in.ActionID)
	if err != nil {
		return nil, s.toStatus(ctx, withActionID(err, in.ActionID))
	}
	return &ListActionEventsResponse{Events: eventsToWire(events)}, nil
}
