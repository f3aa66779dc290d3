package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
)

// Source attributes where a resolved value came from.
type Source string

const (
	SourceOverride    Source = "override"
	SourceEnvironment Source = "environment"
	SourceDefault     Source = "default"
)

// Resolved is one catalog entry with its effective value. Sensitive values
// are masked before they leave the bulk accessor.
type Resolved struct {
	Definition
	Value  string `json:"value"`
	Source Source `json:"source"`
	IsSet  bool   `json:"is_set"`
}

// KeyValue is one pair in a batch update.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// UpdateResult reports which keys a batch update actually touched.
// Unknown keys are skipped, so callers must inspect UpdatedKeys to detect
// no-ops.
type UpdateResult struct {
	UpdatedKeys     []string `json:"updated_keys"`
	RequiresRestart bool     `json:"requires_restart"`
}

// EnvFunc looks up the environment layer; swappable for tests.
type EnvFunc func(name string) (string, bool)

// Service resolves keys against the layering override > environment >
// fallback > empty. Resolution never fails: override-store outages trip a
// circuit breaker and resolution quietly degrades to the environment layer.
type Service struct {
	store   Store
	env     EnvFunc
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker

	// cache holds non-empty resolved values to spare the override store a
	// round-trip per Resolve call; entries are invalidated on Update.
	cache *expirable.LRU[string, string]
}

type Options struct {
	Env      EnvFunc
	CacheTTL time.Duration
}

func NewService(store Store, logger *slog.Logger, opts Options) *Service {
	env := opts.Env
	if env == nil {
		env = os.LookupEnv
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		store:  store,
		env:    env,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "setting-overrides",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		cache: expirable.NewLRU[string, string](256, nil, ttl),
	}
}

// Resolve returns the raw effective value for key. Absence at every layer
// yields the fallback, never an error.
func (s *Service) Resolve(ctx context.Context, key, fallback string) string {
	if v, ok := s.cache.Get(key); ok {
		return v
	}

	if v, ok := s.overrideValue(ctx, key); ok {
		s.cache.Add(key, v)
		return v
	}

	if v, ok := s.env(environmentName(key)); ok && v != "" {
		s.cache.Add(key, v)
		return v
	}

	return fallback
}

// GetAll returns the full catalog with effective values and source tags.
// Sensitive values are masked; the raw value is only reachable via Resolve.
func (s *Service) GetAll(ctx context.Context) []Resolved {
	overrides := s.allOverrides(ctx)

	out := make([]Resolved, 0, len(catalog))
	for _, def := range catalog {
		r := Resolved{Definition: def, Source: SourceDefault}
		if v, ok := overrides[def.Key]; ok && v != "" {
			r.Value, r.Source, r.IsSet = v, SourceOverride, true
		} else if v, ok := s.env(def.EnvironmentName); ok && v != "" {
			r.Value, r.Source, r.IsSet = v, SourceEnvironment, true
		}
		if def.Sensitive && r.IsSet {
			r.Value = Mask(r.Value)
		}
		out = append(out, r)
	}
	return out
}

// Update applies a batch of key/value pairs. An empty value deletes the
// override, reverting that key to its environment value. Unknown keys are
// skipped (logged, not errored).
func (s *Service) Update(ctx context.Context, pairs []KeyValue) (UpdateResult, error) {
	res := UpdateResult{}
	for _, kv := range pairs {
		key := strings.TrimSpace(kv.Key)
		if _, known := Lookup(key); !known {
			s.logger.Warn("skipping unknown setting key", "key", kv.Key)
			continue
		}

		var err error
		if kv.Value == "" {
			err = s.store.Delete(ctx, GlobalScope, key)
		} else {
			err = s.store.Set(ctx, GlobalScope, key, kv.Value)
		}
		if err != nil {
			return UpdateResult{}, fmt.Errorf("settings: update %s: %w", key, err)
		}

		s.cache.Remove(key)
		res.UpdatedKeys = append(res.UpdatedKeys, key)
		if RequiresRestart(key) {
			res.RequiresRestart = true
		}
	}
	return res, nil
}

func (s *Service) overrideValue(ctx context.Context, key string) (string, bool) {
	type result struct {
		value string
		ok    bool
	}
	v, err := s.breaker.Execute(func() (any, error) {
		value, ok, err := s.store.Get(ctx, GlobalScope, key)
		if err != nil {
			return nil, err
		}
		return result{value, ok}, nil
	})
	if err != nil {
		s.logger.Debug("override store unavailable, falling back to environment", "key", key, "err", err)
		return "", false
	}
	r := v.(result)
	if !r.ok || r.value == "" {
		return "", false
	}
	return r.value, true
}

func (s *Service) allOverrides(ctx context.Context) map[string]string {
	v, err := s.breaker.Execute(func() (any, error) {
		return s.store.All(ctx, GlobalScope)
	})
	if err != nil {
		s.logger.Warn("override store unavailable, serving environment values", "err", err)
		return nil
	}
	return v.(map[string]string)
}

// environmentName maps a catalog key to its environment variable; unknown
// keys fall back to the upper-cased key so Resolve stays total.
func environmentName(key string) string {
	if def, ok := Lookup(key); ok {
		return def.EnvironmentName
	}
	return strings.ToUpper(key)
}

// Mask hides all but the last four characters of a sensitive value.
func Mask(v string) string {
	const visible = 4
	if len(v) <= visible {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", 8) + v[len(v)-visible:]
}
