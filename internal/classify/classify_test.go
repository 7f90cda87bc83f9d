package classify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/triage/internal/classify"
	"github.com/JaimeStill/triage/internal/model"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/lifecycle"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticRules map[triage.RuleKey]triage.Zone

func (s staticRules) Lookup(_ context.Context, key triage.RuleKey) (triage.Zone, bool, error) {
	z, ok := s[key]
	return z, ok, nil
}

type failingRules struct{}

func (failingRules) Lookup(context.Context, triage.RuleKey) (triage.Zone, bool, error) {
	return "", false, errors.New("store down")
}

type fakeGenerator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, p model.Prompt) (model.Response, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, p model.Prompt) (model.Response, error) {
	g.calls.Add(1)
	return g.fn(ctx, p)
}

func message(sender, subject, body string) *triage.Message {
	m := &triage.Message{
		GrantID:         "grant-1",
		SourceMessageID: "msg-1",
		Sender:          sender,
		Subject:         subject,
		Body:            body,
	}
	m.Normalize()
	return m
}

func newHeuristic(t *testing.T, rules classify.RuleLookup) *classify.Heuristic {
	t.Helper()
	pack, err := classify.DefaultPack()
	require.NoError(t, err)
	return classify.NewHeuristic(rules, pack)
}

func TestHeuristicBillingKeyword(t *testing.T) {
	h := newHeuristic(t, staticRules{})

	r, err := h.Classify(context.Background(), message("billing@clinic.com", "Invoice overdue", ""))
	require.NoError(t, err)

	assert.Equal(t, triage.ZoneToday, r.Zone)
	assert.Equal(t, "BILLING", r.IntentLabel)
	assert.GreaterOrEqual(t, r.Confidence, classify.DefaultThreshold)
	assert.False(t, r.Fallback)
	assert.Contains(t, r.Reason, "billing-escalation")
}

func TestHeuristicHigherTierWins(t *testing.T) {
	h := newHeuristic(t, staticRules{})

	r, err := h.Classify(context.Background(), message(
		"results@labcorp.com",
		"Critical potassium level",
		"Please review the attached invoice when convenient.",
	))
	require.NoError(t, err)

	assert.Equal(t, triage.ZoneStat, r.Zone)
	assert.Equal(t, "CLINICAL", r.IntentLabel)
	assert.InDelta(t, 0.9, r.RiskScore, 1e-9)
	assert.Greater(t, r.Confidence, 0.92, "corroborating same-tier rules raise confidence")
	assert.Less(t, r.Confidence, 1.0)
}

func TestHeuristicConflictLowersConfidence(t *testing.T) {
	h := newHeuristic(t, staticRules{})

	pack, err := classify.ParsePack([]byte(`
rules:
  - id: a
    tier: 2
    zone: TODAY
    intent: ADMIN
    confidence: 0.8
    match: {keywords: [renewal]}
  - id: b
    tier: 2
    zone: LATER
    intent: SPAM
    confidence: 0.8
    match: {keywords: [offer]}
`))
	require.NoError(t, err)
	h.SetPack(pack)

	r, err := h.Classify(context.Background(), message("a@b.com", "Renewal offer", ""))
	require.NoError(t, err)

	assert.Equal(t, triage.ZoneLater, r.Zone)
	assert.Equal(t, classify.ConflictConfidence, r.Confidence)
	assert.Less(t, r.Confidence, classify.DefaultThreshold)
	assert.Contains(t, r.Reason, "conflicting")
}

func TestHeuristicNoMatch(t *testing.T) {
	h := newHeuristic(t, staticRules{})

	r, err := h.Classify(context.Background(), message("someone@example.org", "Hello", "Just checking in."))
	require.NoError(t, err)

	assert.Equal(t, triage.ZoneLater, r.Zone)
	assert.Equal(t, classify.NoMatchConfidence, r.Confidence)
	assert.Zero(t, r.RiskScore)
	assert.NotNil(t, r.Context)
}

func TestHeuristicOverrideWins(t *testing.T) {
	rules := staticRules{
		{Namespace: "grant-1", Sender: "billing@clinic.com"}: triage.ZoneLater,
	}
	h := newHeuristic(t, rules)

	r, err := h.Classify(context.Background(), message("Billing <BILLING@clinic.com>", "Invoice overdue", ""))
	require.NoError(t, err)

	assert.Equal(t, triage.ZoneLater, r.Zone)
	assert.Equal(t, classify.OverrideConfidence, r.Confidence)
	assert.Equal(t, classify.ReasonRuleOverride, r.Reason)
	assert.Equal(t, "BILLING", r.IntentLabel, "override keeps heuristic intent")
}

func TestHeuristicOverrideIsNamespaced(t *testing.T) {
	rules := staticRules{
		{Namespace: "other-grant", Sender: "billing@clinic.com"}: triage.ZoneLater,
	}
	h := newHeuristic(t, rules)

	r, err := h.Classify(context.Background(), message("billing@clinic.com", "Invoice overdue", ""))
	require.NoError(t, err)
	assert.Equal(t, triage.ZoneToday, r.Zone)
}

func TestHeuristicLookupFailure(t *testing.T) {
	h := newHeuristic(t, failingRules{})

	_, err := h.Classify(context.Background(), message("billing@clinic.com", "Invoice overdue", ""))
	assert.Error(t, err)
}

func TestParsePackRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"empty":      "rules: []",
		"no id":      "rules: [{zone: STAT, match: {keywords: [x]}}]",
		"bad zone":   "rules: [{id: a, zone: SOON, match: {keywords: [x]}}]",
		"no matcher": "rules: [{id: a, zone: STAT}]",
		"not yaml":   "rules: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := classify.ParsePack([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestExtract(t *testing.T) {
	blob := classify.Extract("Balance of $1,250.00 for MRN: A12345 billed to Aetna.")

	assert.Equal(t, "$1,250.00", blob["dollar_amount"])
	assert.Equal(t, "A12345", blob["mrn"])
	assert.Equal(t, "aetna", blob["insurance_provider"])

	assert.Empty(t, classify.Extract("nothing to see here"))
}

func TestOwnerRole(t *testing.T) {
	tests := []struct {
		intent string
		risk   float64
		want   string
	}{
		{"CLINICAL", 0.5, classify.RoleMedicalAssistant},
		{"CLINICAL", 0.9, classify.RoleLeadDoctor},
		{"BILLING", 0.65, classify.RoleBillingSpecialist},
		{"billing", 0.85, classify.RolePracticeManager},
		{"SCHEDULING", 0.9, classify.RoleFrontDesk},
		{"SPAM", 0.0, classify.RoleSystemArchive},
		{"VENDOR", 0.2, classify.RoleOfficeManager},
		{"", 0.0, classify.RoleFrontDesk},
		{"UNKNOWN", 0.99, classify.RoleFrontDesk},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify.OwnerRole(tt.intent, tt.risk), "%s %.2f", tt.intent, tt.risk)
	}
}

func TestClassifierSkipsFallbackWhenConfident(t *testing.T) {
	gen := &fakeGenerator{fn: func(context.Context, model.Prompt) (model.Response, error) {
		t.Fatal("fallback should not run")
		return model.Response{}, nil
	}}
	c := classify.New(
		newHeuristic(t, staticRules{}),
		classify.NewFallback(gen, time.Second, discard),
		classify.DefaultThreshold,
		discard,
	)

	r, err := c.Classify(context.Background(), message("billing@clinic.com", "Invoice overdue", ""))
	require.NoError(t, err)

	assert.Equal(t, triage.ZoneToday, r.Zone)
	assert.False(t, r.Fallback)
	assert.Zero(t, gen.calls.Load())
}

func TestClassifierFallback(t *testing.T) {
	reply := "Thanks, we will follow up."
	var prompt model.Prompt
	gen := &fakeGenerator{fn: func(_ context.Context, p model.Prompt) (model.Response, error) {
		prompt = p
		return model.Response{
			Zone:        "this week",
			IntentLabel: "admin",
			RiskScore:   1.7,
			Summary:     "Vendor asks about a contract.",
			DraftReply:  &reply,
			Context:     map[string]any{"vendor": "Acme"},
		}, nil
	}}
	c := classify.New(
		newHeuristic(t, staticRules{}),
		classify.NewFallback(gen, time.Second, discard),
		classify.DefaultThreshold,
		discard,
	)

	r, err := c.Classify(context.Background(), message("rep@acme.io", "Quick question", "Owed $40.00 on our contract."))
	require.NoError(t, err)

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, triage.ZoneThisWeek, r.Zone)
	assert.Equal(t, "ADMIN", r.IntentLabel)
	assert.True(t, r.Fallback)
	assert.False(t, r.Degraded)
	assert.Equal(t, 1.0, r.RiskScore)
	assert.Equal(t, reply, r.DraftReply)
	assert.Equal(t, "no pattern matched", r.HeuristicReason)
	assert.Equal(t, "no pattern matched", prompt.HeuristicReason)
	assert.Equal(t, "Acme", r.Context["vendor"])
	assert.Equal(t, "$40.00", r.Context["dollar_amount"], "heuristic entities survive the merge")
}

func TestClassifierFallbackUnknownZone(t *testing.T) {
	null := "null"
	gen := &fakeGenerator{fn: func(context.Context, model.Prompt) (model.Response, error) {
		return model.Response{Zone: "whenever", DraftReply: &null}, nil
	}}
	c := classify.New(
		newHeuristic(t, staticRules{}),
		classify.NewFallback(gen, time.Second, discard),
		classify.DefaultThreshold,
		discard,
	)

	r, err := c.Classify(context.Background(), message("x@y.com", "hi", ""))
	require.NoError(t, err)
	assert.Equal(t, triage.ZoneLater, r.Zone)
	assert.Empty(t, r.DraftReply)
}

func TestClassifierDegradesOnTimeout(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, _ model.Prompt) (model.Response, error) {
		<-ctx.Done()
		return model.Response{}, model.ErrTimeout
	}}
	c := classify.New(
		newHeuristic(t, staticRules{}),
		classify.NewFallback(gen, 20*time.Millisecond, discard),
		classify.DefaultThreshold,
		discard,
	)

	r, err := c.Classify(context.Background(), message("x@y.com", "Hello", ""))
	require.NoError(t, err)

	assert.True(t, r.Fallback)
	assert.True(t, r.Degraded)
	assert.Equal(t, triage.ZoneLater, r.Zone)
	assert.Equal(t, classify.ReasonFallbackUnavailable, r.Reason)
	assert.Equal(t, "no pattern matched", r.HeuristicReason)
}

func TestClassifierDisabledModel(t *testing.T) {
	c := classify.New(
		newHeuristic(t, staticRules{}),
		classify.NewFallback(model.Disabled{}, time.Second, discard),
		classify.DefaultThreshold,
		discard,
	)

	r, err := c.Classify(context.Background(), message("x@y.com", "Hello", ""))
	require.NoError(t, err)
	assert.True(t, r.Degraded)
}

func TestDegraded(t *testing.T) {
	r := classify.Degraded()
	assert.Equal(t, triage.ZoneLater, r.Zone)
	assert.Zero(t, r.Confidence)
	assert.True(t, r.Fallback)
}

func TestWatchReloadsPack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	initial := "rules: [{id: first, tier: 1, zone: LATER, confidence: 0.9, match: {keywords: [ping]}}]"
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	pack, err := classify.LoadPack(path)
	require.NoError(t, err)
	h := classify.NewHeuristic(staticRules{}, pack)

	lc := lifecycle.New()
	require.NoError(t, classify.Watch(lc, h, path, discard))

	updated := "rules: [{id: second, tier: 1, zone: STAT, confidence: 0.9, match: {keywords: [ping]}}]"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	m := message("a@b.com", "ping", "")
	assert.Eventually(t, func() bool {
		r, err := h.Classify(context.Background(), m)
		return err == nil && r.Zone == triage.ZoneStat
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, lc.Shutdown(time.Second), "watch loop should exit on shutdown")

	stale := "rules: [{id: third, tier: 1, zone: THIS_WEEK, confidence: 0.9, match: {keywords: [ping]}}]"
	require.NoError(t, os.WriteFile(path, []byte(stale), 0o644))
	time.Sleep(100 * time.Millisecond)

	r, err := h.Classify(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, triage.ZoneStat, r.Zone, "no reload after shutdown")
}
