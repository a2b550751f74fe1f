// Package gate answers SDK version checks: it authenticates the calling app,
// selects that app's rules from the in-memory catalog and runs the engine.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"version-gate/internal/auth"
	"version-gate/internal/cache"
	"version-gate/internal/engine"
	"version-gate/internal/storage"
)

type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (storage.Snapshot, error)
}

type KeyStore interface {
	LookupAPIKey(ctx context.Context, keyID string) (hash, appID string, err error)
}

// Observer receives evaluation and catalog events, typically for metrics.
type Observer interface {
	Evaluated(status engine.Status)
	CatalogLoaded(apps, rules int, loadedAt time.Time)
}

type nopObserver struct{}

func (nopObserver) Evaluated(engine.Status)           {}
func (nopObserver) CatalogLoaded(int, int, time.Time) {}

type Checker struct {
	engine   *engine.Engine
	loader   SnapshotLoader
	keys     KeyStore
	keyCache *storage.KeyCache
	catalog  cache.Snapshot[*Catalog]
	observer Observer

	// refreshMu orders refreshes so an older load never replaces a newer one.
	refreshMu sync.Mutex
}

type Option func(*Checker)

func WithKeyCache(c *storage.KeyCache) Option {
	return func(ch *Checker) { ch.keyCache = c }
}

func WithObserver(o Observer) Option {
	return func(ch *Checker) {
		if o != nil {
			ch.observer = o
		}
	}
}

func NewChecker(eng *engine.Engine, loader SnapshotLoader, keys KeyStore, opts ...Option) *Checker {
	c := &Checker{engine: eng, loader: loader, keys: keys, observer: nopObserver{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Refresh reloads the catalog. On failure the previous catalog stays in use.
func (c *Checker) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	snap, err := c.loader.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	cat := BuildCatalog(snap)
	c.catalog.Store(cat)
	// keys may have been revoked alongside the rule change
	c.keyCache.Purge()

	apps, rules := cat.Size()
	c.observer.CatalogLoaded(apps, rules, cat.LoadedAt)
	log.Info().Int("apps", apps).Int("rules", rules).Time("loaded_at", cat.LoadedAt).Msg("rule catalog refreshed")
	return nil
}

// Ready reports whether a catalog has been loaded at least once.
func (c *Checker) Ready() bool {
	_, ok := c.catalog.Load()
	return ok
}

// Authenticate resolves an x-api-key token to its app id.
func (c *Checker) Authenticate(ctx context.Context, token string) (string, error) {
	if appID, ok := c.keyCache.Get(token); ok {
		return appID, nil
	}
	id, secret, err := auth.Parse(token)
	if err != nil {
		return "", ErrInvalidAPIKey
	}
	hash, appID, err := c.keys.LookupAPIKey(ctx, id)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return "", ErrInvalidAPIKey
	}
	if err != nil {
		return "", err
	}
	if !auth.Matches(hash, secret) {
		return "", ErrInvalidAPIKey
	}
	c.keyCache.Put(token, appID)
	return appID, nil
}

// Check evaluates a request on behalf of the authenticated app.
func (c *Checker) Check(_ context.Context, appID string, req CheckRequest) (engine.EvaluationResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return engine.EvaluationResult{}, err
	}
	if req.AppID != "" && req.AppID != appID {
		return engine.EvaluationResult{}, ErrAppMismatch
	}
	cat, ok := c.catalog.Load()
	if !ok {
		return engine.EvaluationResult{}, ErrCatalogNotReady
	}

	sel := cat.Select(appID, req.Platform, req.Environment)
	res := c.evaluate(sel, req)
	c.observer.Evaluated(res.Status)

	log.Debug().
		Str("app_id", appID).
		Str("platform", req.Platform).
		Str("environment", req.Environment).
		Str("version", req.CurrentVersion).
		Int("rules", len(sel.Rules)).
		Str("status", string(res.Status)).
		Msg("version check")
	return res, nil
}

func (c *Checker) evaluate(sel Selection, req CheckRequest) engine.EvaluationResult {
	return Decide(c.engine, sel, engine.EvaluationContext{
		CurrentVersion: req.CurrentVersion,
		BuildNumber:    req.BuildNumber,
		DeviceID:       req.DeviceID,
	})
}

// Decide applies the platform minimum version and then the engine to one
// selection. A client below the platform minimum is forced to update before
// maintenance or any rule is considered.
func Decide(eng *engine.Engine, sel Selection, ctx engine.EvaluationContext) engine.EvaluationResult {
	if floor := sel.Platform.MinVersion; floor != "" && engine.CompareVersions(ctx.CurrentVersion, floor) < 0 {
		fc := engine.ForceDefaults()
		return engine.EvaluationResult{
			Status:        engine.StatusForceUpdate,
			Title:         fc.Title,
			Message:       fc.Message,
			ButtonText:    fc.ButtonText,
			LatestVersion: floor,
			BlockVersion:  true,
			StoreURL:      sel.Platform.StoreURL,
		}
	}
	return eng.EvaluateAll(sel.Rules, ctx, sel.Maintenance, sel.Platform.StoreURL)
}
