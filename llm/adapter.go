package llm

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tenlib/tenlib/router"
	"github.com/tenlib/tenlib/storage"
	"github.com/tenlib/tenlib/tokencount"
)

// Usage is the token accounting a provider reports alongside a chat
// response. Zero values mean the provider didn't report usage for
// this call, not that zero tokens were used.
type Usage struct {
	TokensIn  int
	TokensOut int
}

// ChatResult is one provider round trip: the model's raw text plus
// whatever usage figures the provider's API returned with it.
type ChatResult struct {
	Text  string
	Usage Usage
}

// Chatter is the low-level capability every concrete adapter in this
// package already provides. ModelAdapter wraps it into the richer
// router.Adapter contract (name, availability, structured response,
// token accounting) without touching the underlying Chat call.
type Chatter interface {
	Chat(messages []string) (ChatResult, error)
}

// ModelAdapter layers the router's cooldown/quota/error-classification
// semantics on top of a teacher-style Chatter, reporting token usage
// back through the Repository instead of discarding it.
type ModelAdapter struct {
	name      string
	chatter   Chatter
	estimator tokencount.Estimator
	repo      storage.Repository
	quota     *storage.QuotaCache
	dailyQuota int

	mu            sync.Mutex
	cooldownUntil time.Time
}

// NewModelAdapter returns a ModelAdapter named name wrapping chatter.
// repo is used to persist token usage durably; quota, if non-nil, is
// consulted instead of repo as a cheap local cache of today's usage so
// IsAvailable doesn't need a SQLite round trip on every chunk.
// dailyQuota <= 0 means unlimited.
func NewModelAdapter(name string, chatter Chatter, estimator tokencount.Estimator, repo storage.Repository, quota *storage.QuotaCache, dailyQuota int) *ModelAdapter {
	if estimator == nil {
		estimator = tokencount.Simple{}
	}
	return &ModelAdapter{
		name:       name,
		chatter:    chatter,
		estimator:  estimator,
		repo:       repo,
		quota:      quota,
		dailyQuota: dailyQuota,
	}
}

func (a *ModelAdapter) Name() string { return a.name }

// IsAvailable folds cooldown and today's quota into one check: an
// adapter is available only if its cooldown has elapsed and it has
// not yet hit its daily token budget.
func (a *ModelAdapter) IsAvailable(now time.Time) bool {
	a.mu.Lock()
	onCooldown := now.Before(a.cooldownUntil)
	a.mu.Unlock()

	if onCooldown {
		return false
	}
	if a.dailyQuota <= 0 {
		return true
	}

	used, err := a.todayUsage(now)
	if err != nil {
		slog.Warn("quota check failed, assuming available", slog.String("adapter", a.name), slog.Any("error", err))
		return true
	}
	return used < a.dailyQuota
}

func (a *ModelAdapter) todayUsage(now time.Time) (int, error) {
	if a.quota != nil {
		return a.quota.TokensUsed(a.name, now)
	}
	if a.repo != nil {
		return a.repo.TokensUsedToday(context.Background(), a.name, now)
	}
	return 0, nil
}

func (a *ModelAdapter) Cooldown(now time.Time, d time.Duration) {
	a.mu.Lock()
	a.cooldownUntil = now.Add(d)
	a.mu.Unlock()
}

// Translate sends systemPrompt and chunk to the underlying model as a
// single combined message (the teacher's Chat contract has no
// separate system role), parses the result with the router's
// progressive-degradation parser, and records token usage exactly as
// the provider reported it.
func (a *ModelAdapter) Translate(ctx context.Context, chunk, systemPrompt string) (router.Response, error) {
	prompt := chunk
	if systemPrompt != "" {
		prompt = systemPrompt + "\n\n" + chunk
	}

	result, err := a.chatter.Chat([]string{prompt})
	if err != nil {
		return router.Response{}, classifyError(err)
	}

	resp := router.ParseResponse(a.name, result.Text)
	resp.TokensIn, resp.TokensOut = result.Usage.TokensIn, result.Usage.TokensOut
	if resp.TokensIn == 0 && resp.TokensOut == 0 {
		// The provider didn't return a usage block at all (seen on some
		// OpenAI-compatible servers); estimate rather than record a
		// false zero against the daily quota.
		slog.Warn("provider reported no usage, estimating", slog.String("adapter", a.name))
		resp.TokensIn = a.estimator.Estimate(prompt)
		resp.TokensOut = a.estimator.Estimate(resp.Translation)
	}

	a.recordUsage(ctx, resp.TokensIn+resp.TokensOut)

	return resp, nil
}

func (a *ModelAdapter) recordUsage(ctx context.Context, tokens int) {
	now := time.Now()
	if a.repo != nil {
		if _, err := a.repo.AddTokenUsage(ctx, a.name, now, tokens); err != nil {
			slog.Warn("failed to record token usage", slog.String("adapter", a.name), slog.Any("error", err))
		}
	}
	if a.quota != nil {
		if _, err := a.quota.AddTokens(a.name, now, tokens); err != nil {
			slog.Warn("failed to update quota cache", slog.String("adapter", a.name), slog.Any("error", err))
		}
	}
}

// classifyError turns a Chatter's plain error into the router's
// retryable/content distinction based on the HTTP status text the
// teacher's adapters already embed in their error messages
// ("unexpected status code: %d"). An unrecognized error is treated as
// retryable: failing over is safer than wedging the whole pipeline on
// an error we can't classify.
func classifyError(err error) error {
	msg := strings.ToLower(err.Error())

	for _, code := range []string{"429", "500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return &router.RetryableError{Err: err}
		}
	}
	for _, marker := range []string{"timeout", "connection", "deadline", "eof", "no such host"} {
		if strings.Contains(msg, marker) {
			return &router.RetryableError{Err: err}
		}
	}
	for _, code := range []string{"400", "401", "403", "404", "422"} {
		if strings.Contains(msg, code) {
			return &router.ContentError{Err: err}
		}
	}

	return &router.RetryableError{Err: err}
}
