package gate

import (
	"time"

	"version-gate/internal/engine"
	"version-gate/internal/storage"
)

// Catalog is an immutable, indexed view of a storage snapshot.
type Catalog struct {
	apps     map[string]*appEntry
	rules    int
	LoadedAt time.Time
}

type appEntry struct {
	// rules by environment, in store order
	rules       map[string][]platformRule
	platforms   map[string]PlatformSettings
	maintenance *engine.MaintenanceMode
}

type platformRule struct {
	platform string
	rule     engine.VersionRule
}

// PlatformSettings are the per-platform values the caller layer owns.
type PlatformSettings struct {
	StoreURL   string
	MinVersion string
}

// Selection is what one version check hands to the engine.
type Selection struct {
	Rules       []engine.VersionRule
	Maintenance *engine.MaintenanceMode
	Platform    PlatformSettings
}

// BuildCatalog converts storage rows into engine types and indexes them by
// app and environment. Inactive rules are dropped here as well.
func BuildCatalog(snap storage.Snapshot) *Catalog {
	c := &Catalog{apps: make(map[string]*appEntry), LoadedAt: snap.LoadedAt}

	app := func(id string) *appEntry {
		a, ok := c.apps[id]
		if !ok {
			a = &appEntry{rules: make(map[string][]platformRule), platforms: make(map[string]PlatformSettings)}
			c.apps[id] = a
		}
		return a
	}

	for _, r := range snap.Rules {
		if !r.IsActive {
			continue
		}
		a := app(r.AppID)
		a.rules[r.Environment] = append(a.rules[r.Environment], platformRule{platform: r.Platform, rule: toRule(r)})
		c.rules++
	}
	for _, p := range snap.Platforms {
		app(p.AppID).platforms[p.Platform] = PlatformSettings{StoreURL: p.StoreURL, MinVersion: p.MinVersion}
	}
	for _, m := range snap.Maintenance {
		app(m.AppID).maintenance = &engine.MaintenanceMode{
			IsEnabled:    m.IsEnabled,
			Title:        m.Title,
			Message:      m.Message,
			EstimatedEnd: m.EstimatedEnd,
		}
	}
	return c
}

// Select returns the rules for app that target platform (or "all") in env,
// along with the app's maintenance state and platform settings.
func (c *Catalog) Select(appID, platform, env string) Selection {
	a, ok := c.apps[appID]
	if !ok {
		return Selection{}
	}
	sel := Selection{Maintenance: a.maintenance, Platform: a.platforms[platform]}
	for _, pr := range a.rules[env] {
		if pr.platform == platform || pr.platform == PlatformAll {
			sel.Rules = append(sel.Rules, pr.rule)
		}
	}
	return sel
}

// Size returns the number of apps and rules in the catalog.
func (c *Catalog) Size() (apps, rules int) {
	return len(c.apps), c.rules
}

func toRule(r storage.RuleRow) engine.VersionRule {
	rule := engine.VersionRule{
		ID:                r.ID,
		KillSwitch:        r.KillSwitch,
		BlockedVersions:   r.BlockedVersions,
		MinVersion:        r.MinVersion,
		LatestVersion:     r.LatestVersion,
		UpdateType:        engine.UpdateType(r.UpdateType),
		IsActive:          r.IsActive,
		Priority:          r.Priority,
		RolloutPercentage: r.RolloutPercentage,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
	}
	if len(r.MessageConfig) > 0 {
		rule.MessageConfig = &engine.MessageConfig{}
		rule.MessageConfig.FromMap(r.MessageConfig)
	}
	return rule
}
