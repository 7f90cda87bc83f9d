package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/triage/pkg/formatting"
)

// ChatFunc sends a rendered prompt and returns the raw reply text.
type ChatFunc func(ctx context.Context, prompt string) (string, error)

// Options tunes client-side pacing. A RateLimit of zero disables limiting.
type Options struct {
	RateLimit float64
	Burst     int
}

// Agent is a Generator backed by a go-agents chat call.
// Request timeouts come from the caller's context.
type Agent struct {
	chat    ChatFunc
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ Generator = (*Agent)(nil)

// NewAgent builds a go-agents agent from a finalized cfg and wraps its chat call.
func NewAgent(cfg *gaconfig.AgentConfig, opts Options, logger *slog.Logger) (*Agent, error) {
	a, err := agent.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: create agent: %w", ErrUnavailable, err)
	}

	chat := func(ctx context.Context, prompt string) (string, error) {
		resp, err := a.Chat(ctx, prompt)
		if err != nil {
			return "", err
		}
		return resp.Content(), nil
	}

	return NewChat(chat, opts, logger.With(
		"provider", cfg.Provider.Name,
		"model", cfg.Model.Name,
	)), nil
}

// NewChat wraps an arbitrary chat call as a Generator.
func NewChat(chat ChatFunc, opts Options, logger *slog.Logger) *Agent {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := max(opts.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Agent{
		chat:    chat,
		limiter: limiter,
		logger:  logger.With("system", "model"),
	}
}

func (a *Agent) Generate(ctx context.Context, p Prompt) (Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("%w: rate limit: %w", ErrTimeout, err)
	}

	start := time.Now()
	content, err := a.chat(ctx, p.Render())
	if err != nil {
		return Response{}, classify(ctx, err)
	}

	parsed, err := formatting.Parse[Response](content)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	a.logger.Debug("model generate complete", "duration", time.Since(start))
	return parsed, nil
}

// classify maps agent and context failures onto boundary errors.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
