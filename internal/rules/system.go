// Package rules fronts the learned sender overrides with a read-optimized
// cache. Overrides are written only by the correction loop; this package
// reads them and publishes committed writes to its cache.
package rules

import (
	"context"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// System is the rule store as seen by the classifier and the API.
type System interface {
	Handler() *Handler

	// Lookup returns the override zone for key, if any.
	Lookup(ctx context.Context, key triage.RuleKey) (triage.Zone, bool, error)

	// Observe publishes a committed override. A cached entry is replaced only
	// by a strictly newer version.
	Observe(rule triage.RuleOverride)

	List(ctx context.Context, page pagination.PageRequest, namespace string) (*pagination.PageResult[triage.RuleOverride], error)
}
