package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tenlib/tenlib"
)

const cooldownDuration = 5 * time.Minute

// Router holds a priority-ordered list of model adapters and walks it
// on every call, skipping unavailable adapters and failing over on
// retryable errors. Content errors propagate immediately: the same
// request will be rejected by every model behind it.
type Router struct {
	adapters []Adapter
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a Router over adapters in priority order (index 0 tried
// first). logger may be nil, in which case slog.Default() is used.
func New(adapters []Adapter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		adapters: adapters,
		logger:   logger.With(slog.String("module", "router")),
		now:      time.Now,
	}
}

// Translate walks the adapter list and returns the first successful
// response. It returns tenlib.ErrAllModelsExhausted once every
// adapter has been skipped or has failed with a retryable error.
func (r *Router) Translate(ctx context.Context, chunk, systemPrompt string) (Response, error) {
	for _, adapter := range r.adapters {
		if !adapter.IsAvailable(r.now()) {
			continue
		}

		resp, err := adapter.Translate(ctx, chunk, systemPrompt)
		if err == nil {
			return resp, nil
		}

		var contentErr *ContentError
		if errors.As(err, &contentErr) {
			r.logger.Warn("content error, not failing over", slog.String("adapter", adapter.Name()), slog.Any("error", err))
			return Response{}, err
		}

		var retryableErr *RetryableError
		if errors.As(err, &retryableErr) {
			r.logger.Warn("retryable error, cooling adapter down",
				slog.String("adapter", adapter.Name()), slog.Any("error", err))
			adapter.Cooldown(r.now(), cooldownDuration)
			continue
		}

		// Unknown errors are treated like retryable ones: cool down and
		// keep going rather than propagate a transient failure.
		r.logger.Warn("unclassified error, cooling adapter down",
			slog.String("adapter", adapter.Name()), slog.Any("error", err))
		adapter.Cooldown(r.now(), cooldownDuration)
	}

	return Response{}, tenlib.ErrAllModelsExhausted
}
