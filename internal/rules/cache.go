package rules

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JaimeStill/triage/internal/store"
	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/pagination"
)

// DefaultTTL bounds how long a cached lookup is trusted.
const DefaultTTL = 30 * time.Second

// entry caches one lookup. A miss is cached with found false and version 0.
type entry struct {
	zone    triage.Zone
	found   bool
	version int64
	expires time.Time
}

type cache struct {
	store      store.Store
	logger     *slog.Logger
	pagination pagination.Config
	ttl        time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[triage.RuleKey]entry
	loads   singleflight.Group
}

// New creates a cached rule System over st.
func New(st store.Store, ttl time.Duration, logger *slog.Logger, pagination pagination.Config) System {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &cache{
		store:      st,
		logger:     logger.With("system", "rules"),
		pagination: pagination,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[triage.RuleKey]entry),
	}
}

func (c *cache) Handler() *Handler {
	return NewHandler(c, c.logger, c.pagination)
}

func (c *cache) Lookup(ctx context.Context, key triage.RuleKey) (triage.Zone, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Before(e.expires) {
		return e.zone, e.found, nil
	}

	v, err, _ := c.loads.Do(key.String(), func() (any, error) {
		return c.load(ctx, key)
	})
	if err != nil {
		return "", false, err
	}

	loaded := v.(entry)
	return loaded.zone, loaded.found, nil
}

func (c *cache) Observe(rule triage.RuleOverride) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.entries[rule.RuleKey]; ok && current.found && current.version >= rule.Version {
		return
	}

	c.entries[rule.RuleKey] = entry{
		zone:    rule.Zone,
		found:   true,
		version: rule.Version,
		expires: c.now().Add(c.ttl),
	}
	c.logger.Debug("rule published", "key", rule.RuleKey.String(), "zone", rule.Zone, "version", rule.Version)
}

func (c *cache) List(
	ctx context.Context,
	page pagination.PageRequest,
	namespace string,
) (*pagination.PageResult[triage.RuleOverride], error) {
	return c.store.ListRules(ctx, page, namespace)
}

// load reads key from the store and caches the result unless a newer
// version was published while the read was in flight.
func (c *cache) load(ctx context.Context, key triage.RuleKey) (entry, error) {
	var loaded entry

	rule, err := c.store.LookupRule(ctx, key)
	switch {
	case errors.Is(err, triage.ErrNotFound):
	case err != nil:
		return entry{}, err
	default:
		loaded = entry{zone: rule.Zone, found: true, version: rule.Version}
	}
	loaded.expires = c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.entries[key]; ok && current.version > loaded.version {
		return current, nil
	}
	c.entries[key] = loaded
	return loaded, nil
}
