package model_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/triage/internal/config"
	"github.com/JaimeStill/triage/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func reply(content string) model.ChatFunc {
	return func(context.Context, string) (string, error) {
		return content, nil
	}
}

func TestAgentGenerate(t *testing.T) {
	var sent string
	chat := func(_ context.Context, prompt string) (string, error) {
		sent = prompt
		return `{"zone":"THIS_WEEK","intent_label":"VENDOR","risk_score":0.3,"summary":"Renewal","draft_reply":null,"context_blob":{"vendor":"Acme"}}`, nil
	}

	g := model.NewChat(chat, model.Options{}, discard)
	resp, err := g.Generate(context.Background(), model.Prompt{Sender: "rep@acme.io", Subject: "Contract renewal"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !strings.Contains(sent, "Subject: Contract renewal") {
		t.Errorf("prompt missing subject: %q", sent)
	}
	if resp.Zone != "THIS_WEEK" {
		t.Errorf("zone = %q, want THIS_WEEK", resp.Zone)
	}
	if resp.DraftReply != nil {
		t.Errorf("draft reply = %q, want nil", *resp.DraftReply)
	}
	if resp.Context["vendor"] != "Acme" {
		t.Errorf("context = %v", resp.Context)
	}
}

func TestAgentFencedResponse(t *testing.T) {
	g := model.NewChat(
		reply("Here you go:\n```json\n{\"zone\":\"STAT\",\"intent_label\":\"CLINICAL\",\"risk_score\":0.9}\n```"),
		model.Options{},
		discard,
	)

	resp, err := g.Generate(context.Background(), model.Prompt{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Zone != "STAT" {
		t.Errorf("zone = %q, want STAT", resp.Zone)
	}
}

func TestAgentErrors(t *testing.T) {
	tests := []struct {
		name    string
		chat    model.ChatFunc
		timeout time.Duration
		want    error
	}{
		{
			name: "malformed output",
			chat: reply("I cannot classify this message."),
			want: model.ErrMalformed,
		},
		{
			name: "provider failure",
			chat: func(context.Context, string) (string, error) {
				return "", errors.New("status 500: model not loaded")
			},
			want: model.ErrUnavailable,
		},
		{
			name: "deadline exceeded",
			chat: func(ctx context.Context, _ string) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			timeout: 20 * time.Millisecond,
			want:    model.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			_, err := model.NewChat(tt.chat, model.Options{}, discard).Generate(ctx, model.Prompt{})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAgentRateLimit(t *testing.T) {
	calls := 0
	chat := func(context.Context, string) (string, error) {
		calls++
		return `{"zone":"LATER"}`, nil
	}
	g := model.NewChat(chat, model.Options{RateLimit: 0.01, Burst: 1}, discard)

	if _, err := g.Generate(context.Background(), model.Prompt{}); err != nil {
		t.Fatalf("first generate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, model.Prompt{})
	if !errors.Is(err, model.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNewAgent(t *testing.T) {
	cfg := gaconfig.AgentConfig{
		Name: "test-agent",
		Provider: &gaconfig.ProviderConfig{
			Name:    "ollama",
			BaseURL: "http://localhost:11434",
			Options: make(map[string]any),
		},
		Model: &gaconfig.ModelConfig{Name: "llama3.1:8b"},
	}
	if err := config.FinalizeAgent(&cfg); err != nil {
		t.Fatalf("finalize agent: %v", err)
	}

	g, err := model.NewAgent(&cfg, model.Options{}, discard)
	if err != nil {
		t.Fatalf("new agent: %v", err)
	}
	if g == nil {
		t.Fatal("generator is nil")
	}
}

func TestDisabled(t *testing.T) {
	_, err := model.Disabled{}.Generate(context.Background(), model.Prompt{})
	if !errors.Is(err, model.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestPromptRender(t *testing.T) {
	p := model.Prompt{
		Sender:          "a@b.com",
		Subject:         "Hi",
		Body:            strings.Repeat("x", 5000),
		HeuristicReason: "no pattern matched",
	}
	out := p.Render()

	if strings.Count(out, "x") > 2100 {
		t.Error("body should be truncated")
	}
	if !strings.Contains(out, "Rule engine note: no pattern matched") {
		t.Error("missing heuristic note")
	}
}
