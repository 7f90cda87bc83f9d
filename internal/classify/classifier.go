package classify

import (
	"context"
	"log/slog"
	"maps"

	"github.com/JaimeStill/triage/internal/metrics"
	"github.com/JaimeStill/triage/internal/triage"
)

// DefaultThreshold is the heuristic confidence below which the fallback runs.
const DefaultThreshold = 0.6

// Classifier runs the heuristic and, when it is not confident, the model fallback.
type Classifier struct {
	heuristic *Heuristic
	fallback  *Fallback
	threshold float64
	logger    *slog.Logger
}

// New creates a Classifier.
func New(heuristic *Heuristic, fallback *Fallback, threshold float64, logger *slog.Logger) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{
		heuristic: heuristic,
		fallback:  fallback,
		threshold: threshold,
		logger:    logger.With("system", "classifier"),
	}
}

// Heuristic returns the heuristic stage, for pack reloads.
func (c *Classifier) Heuristic() *Heuristic {
	return c.heuristic
}

// Classify returns the final classification for a normalized message.
// It fails only when the override lookup fails.
func (c *Classifier) Classify(ctx context.Context, m *triage.Message) (triage.Result, error) {
	h, err := c.heuristic.Classify(ctx, m)
	if err != nil {
		return triage.Result{}, err
	}

	if h.Confidence >= c.threshold || c.fallback == nil {
		source := metrics.SourceHeuristic
		if h.Reason == ReasonRuleOverride {
			source = metrics.SourceRule
		}
		metrics.ObserveClassification(source, string(h.Zone))
		return h, nil
	}

	f := c.fallback.Classify(ctx, m, h.Reason)

	if f.Degraded {
		h.Fallback = true
		h.Degraded = true
		h.HeuristicReason = h.Reason
		h.Reason = ReasonFallbackUnavailable

		c.logger.Info("classification degraded",
			"source_message_id", m.SourceMessageID,
			"zone", h.Zone,
			"confidence", h.Confidence,
		)
		metrics.ObserveClassification(metrics.SourceDegraded, string(h.Zone))
		return h, nil
	}

	f.HeuristicReason = h.Reason
	f.Context = mergeContext(h.Context, f.Context)

	metrics.ObserveClassification(metrics.SourceFallback, string(f.Zone))
	return f, nil
}

func mergeContext(heuristic, model map[string]any) map[string]any {
	merged := make(map[string]any, len(heuristic)+len(model))
	maps.Copy(merged, heuristic)
	maps.Copy(merged, model)
	return merged
}
