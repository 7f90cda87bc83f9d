package api

import (
	"fmt"

	"github.com/JaimeStill/triage/internal/classify"
	"github.com/JaimeStill/triage/internal/corrections"
	"github.com/JaimeStill/triage/internal/deadline"
	"github.com/JaimeStill/triage/internal/escalation"
	"github.com/JaimeStill/triage/internal/events"
	"github.com/JaimeStill/triage/internal/rules"
	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/store/postgres"
	"github.com/JaimeStill/triage/internal/vectors"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Store       store.Store
	Rules       rules.System
	Classifier  *classify.Classifier
	Vectors     vectors.System
	Events      events.System
	Corrections corrections.System
	Escalation  escalation.System
}

// NewDomain creates every domain system over the PostgreSQL store.
func NewDomain(runtime *Runtime) (*Domain, error) {
	st := postgres.New(runtime.Database.Connection(), runtime.Logger, runtime.Pagination)
	return NewDomainWithStore(runtime, st)
}

// NewDomainWithStore creates every domain system over st.
func NewDomainWithStore(runtime *Runtime, st store.Store) (*Domain, error) {
	pack, err := loadPack(runtime.Engine.RulesPath)
	if err != nil {
		return nil, err
	}

	policy := deadline.Policy{
		ShortUnit: runtime.Engine.ShortUnitDuration(),
		LongUnit:  runtime.Engine.LongUnitDuration(),
		HighRisk:  runtime.Engine.HighRisk,
	}

	rulesSystem := rules.New(
		st,
		runtime.Engine.RuleCacheTTLDuration(),
		runtime.Logger,
		runtime.Pagination,
	)

	classifier := classify.New(
		classify.NewHeuristic(rulesSystem, pack),
		classify.NewFallback(runtime.Generator, runtime.Model.TimeoutDuration(), runtime.Logger),
		runtime.Engine.Threshold,
		runtime.Logger,
	)

	return &Domain{
		Store:      st,
		Rules:      rulesSystem,
		Classifier: classifier,
		Vectors: vectors.New(
			st,
			classifier,
			policy,
			runtime.Logger,
			runtime.Pagination,
		),
		Events: events.New(st, runtime.Logger),
		Corrections: corrections.New(
			st,
			rulesSystem,
			runtime.Logger,
			runtime.Pagination,
		),
		Escalation: escalation.New(
			st,
			policy,
			escalation.Config{
				Interval: runtime.Scheduler.IntervalDuration(),
				Workers:  runtime.Scheduler.Workers,
			},
			runtime.Pagination,
			runtime.Logger,
		),
	}, nil
}

func loadPack(path string) (*classify.Pack, error) {
	if path == "" {
		return classify.DefaultPack()
	}
	pack, err := classify.LoadPack(path)
	if err != nil {
		return nil, fmt.Errorf("load pattern pack: %w", err)
	}
	return pack, nil
}
