package orchestrator

import (
	"context"
	"errors"

	"google.golang.org/grpc/status"

	apperrors "github.com/orbicity/opsbot/internal/platform/errors"
	"github.com/orbicity/opsbot/internal/platform/grpc/pagination"
	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/conversation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// errorCodes maps domain sentinels to error codes. Order matters: more
// specific sentinels that also wrap a generic one come first.
var errorCodes = []struct {
	target error
	code   apperrors.Code
}{
	{conversation.ErrEmptySessionID, apperrors.CodeSessionIDEmpty},
	{conversation.ErrEmptyMessage, apperrors.CodeMessageEmpty},
	{conversation.ErrNoActiveConversation, apperrors.CodeNoActiveConversation},
	{moduleconfig.ErrInvalidConfig, apperrors.CodeConfigInvalid},
	{module.ErrUnknownModule, apperrors.CodeModuleUnknown},
	{module.ErrUnknownRiskTier, apperrors.CodeRiskTierUnknown},
	{action.ErrEmptyID, apperrors.CodeActionIDEmpty},
	{action.ErrEmptyType, apperrors.CodeActionTypeEmpty},
	{action.ErrUnknownActionType, apperrors.CodeActionTypeUnknown},
	{action.ErrNotPending, apperrors.CodeActionNotPending},
	{action.ErrInvalidTransition, apperrors.CodeActionInvalidTransition},
	{lifecycle.ErrInvalidFilter, apperrors.CodeFilterInvalid},
	{pagination.ErrInvalidPageToken, apperrors.CodePageTokenInvalid},
	{lifecycle.ErrQueueFull, apperrors.CodeExecutionUnavailable},
	{lifecycle.ErrDispatcherStopped, apperrors.CodeExecutionUnavailable},
	{lifecycle.ErrNoScheduler, apperrors.CodeExecutionUnavailable},
	{moduleconfig.ErrNotFound, apperrors.CodeNotFound},
	{storage.ErrNotFound, apperrors.CodeNotFound},
	{storage.ErrConflict, apperrors.CodeConflict},
}

// classify returns the domain error for err, or CodeUnknown.
func classify(err error) *apperrors.Error {
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.target) {
			return apperrors.Wrap(entry.code, err.Error(), err)
		}
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "internal error", err)
}

// withActionID attaches the action ID to a classified domain error so clients
// can correlate the failure. Unknown errors are returned unchanged.
func withActionID(err error, actionID string) error {
	if err == nil || actionID == "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	domainErr := classify(err)
	if domainErr.Code == apperrors.CodeUnknown {
		return err
	}
	metadata := make(map[string]string, len(domainErr.Metadata)+1)
	for k, v := range domainErr.Metadata {
		metadata[k] = v
	}
	metadata["action_id"] = actionID
	return apperrors.WrapWithMetadata(domainErr.Code, domainErr.Message, metadata, err)
}

// toStatus converts err into a gRPC status with localized details. Unknown
// errors are logged and reported without their internal message.
func (s *Service) toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	domainErr := classify(err)
	if domainErr.Code == apperrors.CodeUnknown {
		s.logger.Error().Err(err).Msg("orchestrator request failed")
	}
	return domainErr.ToGRPCStatus(localeFromContext(ctx))
}
