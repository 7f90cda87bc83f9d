package classify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/triage/internal/metrics"
	"github.com/JaimeStill/triage/internal/model"
	"github.com/JaimeStill/triage/internal/triage"
)

// ReasonFallbackUnavailable marks a degraded fallback result.
const ReasonFallbackUnavailable = "fallback unavailable"

// DefaultFallbackTimeout bounds a model call when no timeout is configured.
const DefaultFallbackTimeout = 10 * time.Second

// Fallback classifies through the external model. It never returns an error:
// timeouts and malformed responses produce a degraded result.
type Fallback struct {
	gen     model.Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewFallback creates a Fallback bounded by timeout.
func NewFallback(gen model.Generator, timeout time.Duration, logger *slog.Logger) *Fallback {
	if gen == nil {
		gen = model.Disabled{}
	}
	if timeout <= 0 {
		timeout = DefaultFallbackTimeout
	}
	return &Fallback{
		gen:     gen,
		timeout: timeout,
		logger:  logger.With("system", "fallback"),
	}
}

// Degraded is the deterministic result returned when the model cannot answer.
func Degraded() triage.Result {
	return triage.Result{
		Zone:       triage.ZoneLater,
		RiskScore:  0,
		Confidence: 0,
		Reason:     ReasonFallbackUnavailable,
		Fallback:   true,
		Degraded:   true,
	}
}

// Classify asks the model to classify m. heuristicReason is forwarded as context.
func (f *Fallback) Classify(ctx context.Context, m *triage.Message, heuristicReason string) triage.Result {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	resp, err := f.gen.Generate(ctx, model.Prompt{
		Sender:          m.Sender,
		Subject:         m.Subject,
		Body:            m.Body,
		HeuristicReason: heuristicReason,
	})

	if err != nil {
		metrics.ObserveFallback(time.Since(start), metrics.OutcomeDegraded)
		f.logger.Warn("model fallback degraded",
			"source_message_id", m.SourceMessageID,
			"error", err,
		)
		return Degraded()
	}

	metrics.ObserveFallback(time.Since(start), metrics.OutcomeSuccess)
	return fromResponse(resp)
}

func fromResponse(resp model.Response) triage.Result {
	zone, err := triage.ParseZone(resp.Zone)
	if err != nil {
		zone = triage.ZoneLater
	}

	r := triage.Result{
		Zone:              zone,
		IntentLabel:       strings.ToUpper(strings.TrimSpace(resp.IntentLabel)),
		RiskScore:         clamp(resp.RiskScore),
		Confidence:        modelConfidence,
		Reason:            "model classification",
		Summary:           resp.Summary,
		RecommendedAction: resp.RecommendedAction,
		ActionType:        resp.ActionType,
		Context:           resp.Context,
		Fallback:          true,
	}

	if resp.DraftReply != nil {
		if reply := strings.TrimSpace(*resp.DraftReply); reply != "" && !strings.EqualFold(reply, "null") {
			r.DraftReply = reply
		}
	}

	return r
}

// modelConfidence is reported for model answers, which carry no calibrated confidence.
const modelConfidence = 0.75
