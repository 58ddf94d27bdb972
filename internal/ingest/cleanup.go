package ingest

import (
	"context"
	"errors"
	"log/slog"

	apperr "occingest/cli/internal/errors"
)

// bestEffort runs a cleanup step whose failure must not replace the error that
// triggered it. The step survives cancellation of ctx; its own call timeout still applies.
func bestEffort(ctx context.Context, log *slog.Logger, what string, fn func(context.Context) error) {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		log.Warn(what+" failed", "error", err, "error_id", apperr.ErrorIDOf(err))
	}
}

// breakReason turns an attach failure into the errorMessage and errorDetails
// sent with a break request.
func breakReason(err error) (message, details string) {
	details = err.Error()
	var e *apperr.E
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
		if e.Context != "" {
			message = e.Context + ": " + e.Message
		}
		return message, details
	}
	return details, details
}
