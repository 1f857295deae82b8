package handlers

import (
	"errors"
	"fmt"

	"github.com/ersonp/lore-graph/internal/domain/apperror"
)

// UserMessage renders an error for the person or agent that made the call.
// Application errors keep their message; anything else is returned as is.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		return err.Error()
	}

	switch appErr.Code {
	case apperror.CodeSyncInProgress:
		return "graph is being rebuilt, try again shortly"
	case apperror.CodeGraphNotBuilt:
		return fmt.Sprintf("%s: run build first", appErr.Message)
	case apperror.CodeCycleDetected:
		return "invalid dependency: " + appErr.Message
	case apperror.CodeEmbeddingProvider:
		if appErr.Internal != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Internal)
		}
		return appErr.Message
	default:
		return appErr.Message
	}
}

func invalidArgument(err error) error {
	if err == nil {
		return nil
	}
	return apperror.InvalidArgument("%s", err.Error())
}
