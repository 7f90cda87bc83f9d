// Package model is the boundary to the external language model used for
// fallback classification.
package model

import (
	"context"
	"errors"
)

// Boundary errors. Callers degrade gracefully on any of them.
var (
	ErrTimeout     = errors.New("model timeout")
	ErrUnavailable = errors.New("model unavailable")
	ErrMalformed   = errors.New("malformed model response")
)

// Prompt carries the message context sent to the model.
type Prompt struct {
	Sender          string
	Subject         string
	Body            string
	HeuristicReason string
}

// Response is the structured output expected from the model.
type Response struct {
	Zone              string         `json:"zone"`
	IntentLabel       string         `json:"intent_label"`
	RiskScore         float64        `json:"risk_score"`
	Summary           string         `json:"summary"`
	RecommendedAction string         `json:"recommended_action"`
	ActionType        string         `json:"action_type"`
	DraftReply        *string        `json:"draft_reply"`
	Context           map[string]any `json:"context_blob"`
}

// Generator produces a classification from a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Response, error)
}

// Disabled is a Generator for deployments without a model provider.
type Disabled struct{}

// Generate always reports the model as unavailable.
func (Disabled) Generate(context.Context, Prompt) (Response, error) {
	return Response{}, ErrUnavailable
}
