// Package observability provides hooks for metrics, dashboards and tracing.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup
// to receive events about refresh cycles, reconfigurations, cache operations
// and wallpaper application.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This keeps the engine free of backend imports and lets the CLI dashboard
// observe the engine without the engine knowing about terminals.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEngineHooks(&dashboardHooks{})
//	    // ... run engine
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Engine().OnCycleStart(ctx, cycleID, candidates)
//	// ... refresh ...
//	observability.Engine().OnCycleComplete(ctx, cycleID, updated, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Engine Hooks
// =============================================================================

// EngineHooks receives events from the update orchestrator.
type EngineHooks interface {
	// Refresh cycle events
	OnCycleStart(ctx context.Context, cycleID string, candidates int)
	OnCycleComplete(ctx context.Context, cycleID string, updated int, duration time.Duration, err error)
	OnCycleSkipped(ctx context.Context, reason string)

	// Reconfiguration events
	OnReconfigure(ctx context.Context, reason string, canvases int, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from the image cache.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, path string)

	// OnCacheMiss records a cache miss that led to a decode.
	OnCacheMiss(ctx context.Context, path string)

	// OnCacheEvict records an eviction; policy is "lru" or "sweep".
	OnCacheEvict(ctx context.Context, policy string, size int)
}

// =============================================================================
// Apply Hooks
// =============================================================================

// ApplyHooks receives events from wallpaper application.
type ApplyHooks interface {
	// OnApply records one application attempt outcome for a target
	// ("desktop" or a device identity).
	OnApply(ctx context.Context, target, path string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEngineHooks is a no-op implementation of EngineHooks.
type NoopEngineHooks struct{}

func (NoopEngineHooks) OnCycleStart(context.Context, string, int) {}
func (NoopEngineHooks) OnCycleComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopEngineHooks) OnCycleSkipped(context.Context, string)            {}
func (NoopEngineHooks) OnReconfigure(context.Context, string, int, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)         {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)        {}
func (NoopCacheHooks) OnCacheEvict(context.Context, string, int) {}

// NoopApplyHooks is a no-op implementation of ApplyHooks.
type NoopApplyHooks struct{}

func (NoopApplyHooks) OnApply(context.Context, string, string, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	engineHooks EngineHooks = NoopEngineHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	applyHooks  ApplyHooks  = NoopApplyHooks{}
	hooksMu     sync.RWMutex
)

// SetEngineHooks registers custom engine hooks.
// This should be called once at application startup before the engine starts.
func SetEngineHooks(h EngineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		engineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetApplyHooks registers custom apply hooks.
func SetApplyHooks(h ApplyHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		applyHooks = h
	}
}

// Engine returns the registered engine hooks.
func Engine() EngineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return engineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Apply returns the registered apply hooks.
func Apply() ApplyHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return applyHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	engineHooks = NoopEngineHooks{}
	cacheHooks = NoopCacheHooks{}
	applyHooks = NoopApplyHooks{}
}
