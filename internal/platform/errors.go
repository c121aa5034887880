package platform

import (
	"context"
	"errors"

	apperrors "lemmylink/internal/errors"
	"lemmylink/pkg/lemmy"
	"lemmylink/pkg/reddit"
)

// classify converts client errors into AppErrors keyed by HTTP status.
// Errors without a response are transient. Context cancellation passes through untouched.
func classify(platform, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var redditErr *reddit.APIError
	if errors.As(err, &redditErr) {
		return apperrors.NewAPIError(platform, operation, redditErr.StatusCode, err)
	}

	var lemmyErr *lemmy.APIError
	if errors.As(err, &lemmyErr) {
		return apperrors.NewAPIError(platform, operation, lemmyErr.StatusCode, err)
	}

	return apperrors.NewAPIError(platform, operation, 0, err)
}
