package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheSize    = 256
	defaultFetchTimeout = 5 * time.Second
)

// Resolver computes effective settings for (module, context) pairs and owns
// the resolution cache. Reads never mutate stored values; writes go through
// SaveSetting/SaveModuleSettings and invalidate the module's cache entries.
type Resolver struct {
	store   StoreAPI
	cache   *lru.Cache[string, EffectiveSettings]
	group   singleflight.Group
	timeout time.Duration

	cacheHits   uint64
	cacheMisses uint64
}

func NewResolver(store StoreAPI) *Resolver {
	cache, _ := lru.New[string, EffectiveSettings](defaultCacheSize)
	return &Resolver{
		store:   store,
		cache:   cache,
		timeout: defaultFetchTimeout,
	}
}

// SetFetchTimeout overrides the per-load store timeout. Expiry surfaces as a
// load failure to the caller, never as a fail-open default.
func (r *Resolver) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// ResizeCache adjusts the resolution cache capacity.
func (r *Resolver) ResizeCache(size int) {
	if size > 0 {
		r.cache.Resize(size)
	}
}

func cacheKey(module string, uc UserContext) string {
	return module + "#" + uc.CacheKey()
}

// Load resolves every active definition of a module for a context. Concurrent
// loads of the same (module, context) share one in-flight fetch. A load
// failure is returned to the caller so it can be distinguished from "no
// settings configured".
func (r *Resolver) Load(ctx context.Context, module string, uc UserContext) (EffectiveSettings, error) {
	if uc.UserID == "" {
		return nil, ErrNoContext
	}
	key := cacheKey(module, uc)
	if cached, ok := r.cache.Get(key); ok {
		atomic.AddUint64(&r.cacheHits, 1)
		return cached, nil
	}
	atomic.AddUint64(&r.cacheMisses, 1)

	result, err, _ := r.group.Do(key, func() (any, error) {
		resolved, err := r.resolve(ctx, module, uc)
		if err != nil {
			return nil, err
		}
		r.cache.Add(key, resolved)
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(EffectiveSettings), nil
}

func (r *Resolver) resolve(ctx context.Context, module string, uc UserContext) (EffectiveSettings, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defs, err := r.store.ListActiveDefinitions(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("list definitions for %s: %w", module, err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}

	chain := uc.ScopeChain()
	rows, err := r.store.ListValues(ctx, module, chain)
	if err != nil {
		return nil, fmt.Errorf("list values for %s: %w", module, err)
	}

	defByID := make(map[string]SettingDefinition, len(defs))
	for _, def := range defs {
		defByID[def.ID] = def
	}

	// Index rows per definition per scope. Rows whose value does not decode
	// to the definition's type are skipped rather than failing the module.
	values := make(map[string]map[ScopeRef]SettingValue)
	for _, row := range rows {
		def, ok := defByID[row.DefinitionID]
		if !ok {
			continue
		}
		if !matchesType(def.ValueType, row.Value) {
			slog.Warn("setting value skipped, type mismatch",
				"module", module, "key", def.Key, "scope", row.ScopeLevel, "entity", row.ScopeEntityID)
			continue
		}
		ref := ScopeRef{Level: row.ScopeLevel, EntityID: row.ScopeEntityID}
		if values[row.DefinitionID] == nil {
			values[row.DefinitionID] = map[ScopeRef]SettingValue{}
		}
		values[row.DefinitionID][ref] = row
	}

	resolved := make(EffectiveSettings, len(defs))
	for _, def := range defs {
		resolved[def.Key] = resolveDefinition(def, chain, values[def.ID])
	}
	return resolved, nil
}

// Loaded returns the cached resolution without triggering a fetch. The load
// and read phases are deliberately separate so callers can render a loading
// state first.
func (r *Resolver) Loaded(module string, uc UserContext) (EffectiveSettings, bool) {
	return r.cache.Get(cacheKey(module, uc))
}

// Value returns the resolved value for key, or fallback when the module was
// never loaded for this context or the key is unknown. Never fetches.
func (r *Resolver) Value(module, key string, uc UserContext, fallback any) any {
	resolved, ok := r.Loaded(module, uc)
	if !ok {
		return fallback
	}
	setting, ok := resolved[key]
	if !ok {
		return fallback
	}
	return setting.Value
}

// IsAllowed coerces an already-resolved setting to a permission boolean.
// Absence of information never grants access: an unloaded module or unknown
// key is false.
func (r *Resolver) IsAllowed(module, key string, uc UserContext) bool {
	resolved, ok := r.Loaded(module, uc)
	if !ok {
		return false
	}
	setting, ok := resolved[key]
	if !ok {
		return false
	}
	return Truthy(setting.Definition.ValueType, setting.Value)
}

// Truthy maps a typed setting value onto a permission signal.
func Truthy(t ValueType, v any) bool {
	switch t {
	case TypeBoolean:
		b, ok := v.(bool)
		return ok && b
	case TypeNumber:
		return asFloat(v) > 0
	case TypeString:
		s, _ := v.(string)
		return s != "" && s != "disabled" && s != "none"
	case TypeArray:
		arr, ok := v.([]any)
		return ok && len(arr) > 0
	default:
		switch val := v.(type) {
		case nil:
			return false
		case bool:
			return val
		case string:
			return val != ""
		case float64:
			return val != 0
		case int:
			return val != 0
		default:
			return true
		}
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

// CheckPermission resolves the module on demand and answers with a structured
// result. It never returns an error for a missing context; pre-login checks
// are an expected terminal state, not a fault.
func (r *Resolver) CheckPermission(ctx context.Context, module, key string, uc UserContext) PermissionCheckResult {
	if uc.UserID == "" {
		return PermissionCheckResult{Allowed: false, Reason: "no context", SettingKey: key}
	}
	resolved, err := r.Load(ctx, module, uc)
	if err != nil {
		return PermissionCheckResult{Allowed: false, Reason: "load failed: " + err.Error(), SettingKey: key}
	}
	setting, ok := resolved[key]
	if !ok {
		return PermissionCheckResult{Allowed: false, Reason: "unknown setting", SettingKey: key}
	}
	allowed := Truthy(setting.Definition.ValueType, setting.Value)
	reason := "denied by setting"
	if allowed {
		reason = "allowed by setting"
	}
	src := setting.Source
	return PermissionCheckResult{
		Allowed:      allowed,
		Reason:       reason,
		SettingKey:   key,
		SettingValue: setting.Value,
		Source:       &src,
	}
}

// SaveSetting writes one scoped override and invalidates the module's cached
// resolutions so the next read reflects it.
func (r *Resolver) SaveSetting(ctx context.Context, module string, write ValueWrite) error {
	return r.SaveModuleSettings(ctx, module, []ValueWrite{write})
}

// SaveModuleSettings writes several keys all-or-nothing. On failure the
// cached resolution is left untouched; on success every cache entry of the
// module is dropped, for any context.
func (r *Resolver) SaveModuleSettings(ctx context.Context, module string, writes []ValueWrite) error {
	if len(writes) == 0 {
		return nil
	}
	defs, err := r.store.ListActiveDefinitions(ctx, module)
	if err != nil {
		return fmt.Errorf("list definitions for %s: %w", module, err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	defByKey := make(map[string]SettingDefinition, len(defs))
	for _, def := range defs {
		defByKey[def.Key] = def
	}
	for i, write := range writes {
		if !write.ScopeLevel.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidScope, write.ScopeLevel)
		}
		if write.ScopeLevel != ScopeGlobal && write.ScopeEntityID == "" {
			return fmt.Errorf("%w: %s scope requires an entity id", ErrInvalidScope, write.ScopeLevel)
		}
		def, ok := defByKey[write.Key]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownKey, module, write.Key)
		}
		if !matchesType(def.ValueType, write.Value) {
			return fmt.Errorf("%w: %s.%s expects %s", ErrInvalidValue, module, write.Key, def.ValueType)
		}
		if write.InheritanceMode == "" {
			writes[i].InheritanceMode = ModeInherit
		} else if write.InheritanceMode != ModeInherit && write.InheritanceMode != ModeLocked {
			return fmt.Errorf("invalid inheritance mode %q", write.InheritanceMode)
		}
	}

	if err := r.store.UpsertValues(ctx, module, writes); err != nil {
		return fmt.Errorf("save settings for %s: %w", module, err)
	}
	r.Invalidate(module)
	return nil
}

// Refresh drops the cached resolution for (module, context) and re-resolves.
func (r *Resolver) Refresh(ctx context.Context, module string, uc UserContext) (EffectiveSettings, error) {
	r.cache.Remove(cacheKey(module, uc))
	return r.Load(ctx, module, uc)
}

// Invalidate drops every cached resolution of a module across all contexts.
func (r *Resolver) Invalidate(module string) {
	prefix := module + "#"
	for _, key := range r.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Remove(key)
		}
	}
}

// CacheStats reports cumulative hit/miss counts for the metrics endpoint.
func (r *Resolver) CacheStats() (hits, misses uint64) {
	return atomic.LoadUint64(&r.cacheHits), atomic.LoadUint64(&r.cacheMisses)
}
