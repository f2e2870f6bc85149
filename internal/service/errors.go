package service

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// translate maps lifecycle and repository errors to DomainErrors. Anything it
// does not recognise is a storage failure: logged with detail, returned generic.
func translate(logger *zap.Logger, err error, resource string, id int64) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var invalid *lifecycle.InvalidTransitionError
	var validation *lifecycle.ValidationError
	switch {
	case errors.As(err, &invalid):
		return apperrors.NewInvalidTransition(actionName(invalid.Transition), string(invalid.Current))
	case errors.As(err, &validation):
		return apperrors.NewValidationError(validation.Error(), map[string]any{validation.Field: validation.Message})
	case errors.Is(err, lifecycle.ErrForbidden):
		return apperrors.NewForbidden()
	case errors.Is(err, lifecycle.ErrUnknownTransition):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewValidationError("e-mail already registered", map[string]any{"email": "already registered"})
	}

	logger.Error("storage failure",
		zap.String("resource", resource),
		zap.Int64("id", id),
		zap.Error(err))
	return apperrors.NewInternalError(fmt.Errorf("%s %d: %w", resource, id, err))
}

func actionName(t lifecycle.Transition) string {
	switch t {
	case lifecycle.TransitionSetInProgress:
		return "set in progress"
	case lifecycle.TransitionAutoClose:
		return "auto-close"
	default:
		return string(t)
	}
}

// outcome labels a transition attempt for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.ToDomainError(err).Code
}
