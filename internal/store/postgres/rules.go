package postgres

import (
	"context"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/query"
	"github.com/JaimeStill/triage/pkg/repository"
)

var sortRules = []query.SortField{
	{Field: "Namespace"},
	{Field: "Sender"},
}

func (r *repo) LookupRule(ctx context.Context, key triage.RuleKey) (triage.RuleOverride, error) {
	q := `
		SELECT namespace, sender_key, zone, version, updated_at
		FROM rule_overrides
		WHERE namespace = $1 AND sender_key = $2`

	rule, err := repository.QueryOne(ctx, r.db, q, []any{key.Namespace, key.Sender}, scanRule)
	if err != nil {
		return rule, triage.StorageError("lookup rule", repository.MapError(err, triage.ErrNotFound, err))
	}
	return rule, nil
}

func (r *repo) ListRules(
	ctx context.Context,
	page pagination.PageRequest,
	namespace string,
) (*pagination.PageResult[triage.RuleOverride], error) {
	page.Normalize(r.pagination)

	var ns *string
	if namespace != "" {
		ns = &namespace
	}

	qb := query.
		NewBuilder(ruleProjection, sortRules...).
		WhereSearch(page.Search, "Sender").
		WhereEquals("Namespace", ns)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs...)
	if err != nil {
		return nil, triage.StorageError("count rules", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	rules, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRule)
	if err != nil {
		return nil, triage.StorageError("query rules", err)
	}

	result := pagination.NewPageResult(rules, total, page.Page, page.PageSize)
	return &result, nil
}
