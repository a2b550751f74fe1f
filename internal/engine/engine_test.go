package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return New(WithClock(func() time.Time { return testNow }), WithRandom(fixedRandom(0)))
}

func activeRule(r VersionRule) VersionRule {
	r.IsActive = true
	if r.RolloutPercentage == 0 {
		r.RolloutPercentage = 100
	}
	return r
}

func ptr[T any](v T) *T { return &v }

func TestPrecedence(t *testing.T) {
	assert.Equal(t, []string{
		"maintenance",
		"no-rule",
		"ineligible",
		"rule-maintenance",
		"kill-switch",
		"blocked-version",
		"below-minimum",
		"below-latest",
	}, Precedence())
}

func TestEvaluate(t *testing.T) {
	end := testNow.Add(2 * time.Hour)
	past := testNow.Add(-time.Hour)
	cfg := &MessageConfig{Title: "Heads up", SoftTitle: "New version", Extra: map[string]any{"imageUrl": "https://img"}}

	tests := []struct {
		name        string
		rule        *VersionRule
		version     string
		maintenance *MaintenanceMode
		want        EvaluationResult
	}{
		{
			name:        "global maintenance with nil rule",
			maintenance: &MaintenanceMode{IsEnabled: true, Title: "Down", Message: "Back soon", EstimatedEnd: &end},
			version:     "1.0.0",
			want:        EvaluationResult{Status: StatusMaintenance, Title: "Down", Message: "Back soon", BlockVersion: true, EstimatedEnd: &end},
		},
		{
			name:        "global maintenance beats kill switch",
			rule:        ptr(activeRule(VersionRule{KillSwitch: true})),
			maintenance: &MaintenanceMode{IsEnabled: true},
			version:     "1.0.0",
			want: EvaluationResult{
				Status:       StatusMaintenance,
				Title:        "Under Maintenance",
				Message:      "We are currently performing maintenance. Please try again later.",
				BlockVersion: true,
			},
		},
		{
			name:        "disabled maintenance is ignored",
			maintenance: &MaintenanceMode{IsEnabled: false, Title: "Down"},
			version:     "1.0.0",
			want:        None(),
		},
		{
			name:    "nil rule",
			version: "1.0.0",
			want:    None(),
		},
		{
			name:    "inactive rule",
			rule:    &VersionRule{KillSwitch: true, RolloutPercentage: 100},
			version: "1.0.0",
			want:    None(),
		},
		{
			name:    "rule outside window",
			rule:    ptr(activeRule(VersionRule{KillSwitch: true, EndDate: &past})),
			version: "1.0.0",
			want:    None(),
		},
		{
			name:    "rule maintenance",
			rule:    ptr(activeRule(VersionRule{UpdateType: UpdateMaintenance, KillSwitch: true, MessageConfig: &MessageConfig{MaintenanceTitle: "Upgrading"}})),
			version: "1.0.0",
			want: EvaluationResult{
				Status:        StatusMaintenance,
				Title:         "Upgrading",
				Message:       "We are currently performing maintenance. Please try again later.",
				CustomMessage: &MessageConfig{MaintenanceTitle: "Upgrading"},
				BlockVersion:  true,
				StoreURL:      "https://store",
			},
		},
		{
			name:    "kill switch defaults",
			rule:    ptr(activeRule(VersionRule{KillSwitch: true, BlockedVersions: []string{"1.0.0"}})),
			version: "1.0.0",
			want:    EvaluationResult{Status: StatusKillSwitch, Title: "App Disabled", Message: "This app is currently unavailable.", BlockVersion: true},
		},
		{
			name:    "blocked version",
			rule:    ptr(activeRule(VersionRule{BlockedVersions: []string{"0.9.0", "1.0.0"}, LatestVersion: "2.0.0", UpdateType: UpdateSoft})),
			version: "1.0.0",
			want: EvaluationResult{
				Status:       StatusBlocked,
				Title:        "Version Blocked",
				Message:      "This version is no longer supported. Please update.",
				ButtonText:   "Update Now",
				BlockVersion: true,
				StoreURL:     "https://store",
			},
		},
		{
			name:    "blocked is exact match",
			rule:    ptr(activeRule(VersionRule{BlockedVersions: []string{"1.0"}})),
			version: "1.0.0",
			want:    None(),
		},
		{
			name:    "below rule minimum forces",
			rule:    ptr(activeRule(VersionRule{MinVersion: "1.5.0", LatestVersion: "2.0.0", UpdateType: UpdateSoft})),
			version: "1.4.9",
			want: EvaluationResult{
				Status:        StatusForceUpdate,
				Title:         "Update Required",
				Message:       "Please update to continue using the app.",
				ButtonText:    "Update Now",
				LatestVersion: "2.0.0",
				BlockVersion:  true,
				StoreURL:      "https://store",
			},
		},
		{
			name:    "soft update",
			rule:    ptr(activeRule(VersionRule{LatestVersion: "2.0.0", UpdateType: UpdateSoft, MessageConfig: cfg})),
			version: "1.5.0",
			want: EvaluationResult{
				Status:        StatusSoftUpdate,
				Title:         "New version",
				Message:       "A new version is available.",
				ButtonText:    "Update",
				CustomMessage: cfg,
				LatestVersion: "2.0.0",
				BlockVersion:  false,
				StoreURL:      "https://store",
			},
		},
		{
			name:    "force update",
			rule:    ptr(activeRule(VersionRule{LatestVersion: "2.0.0", UpdateType: UpdateForce, MessageConfig: cfg})),
			version: "1.5.0",
			want: EvaluationResult{
				Status:        StatusForceUpdate,
				Title:         "Heads up",
				Message:       "Please update to continue using the app.",
				ButtonText:    "Update Now",
				CustomMessage: cfg,
				LatestVersion: "2.0.0",
				BlockVersion:  true,
				StoreURL:      "https://store",
			},
		},
		{
			name:    "update type none below latest",
			rule:    ptr(activeRule(VersionRule{LatestVersion: "2.0.0", UpdateType: UpdateNone})),
			version: "1.0.0",
			want:    None(),
		},
		{
			name:    "equal to latest",
			rule:    ptr(activeRule(VersionRule{LatestVersion: "2.0.0", UpdateType: UpdateForce})),
			version: "2.0",
			want:    None(),
		},
		{
			name:    "above latest",
			rule:    ptr(activeRule(VersionRule{LatestVersion: "2.0.0", UpdateType: UpdateForce})),
			version: "2.1.0",
			want:    None(),
		},
		{
			name:    "missing latest compares as satisfied",
			rule:    ptr(activeRule(VersionRule{UpdateType: UpdateForce})),
			version: "0.0.1",
			want:    None(),
		},
	}

	e := newTestEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.rule, EvaluationContext{CurrentVersion: tt.version, DeviceID: "abc"}, tt.maintenance, "https://store")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_DoesNotShareMessageConfig(t *testing.T) {
	cfg := &MessageConfig{Title: "t", Extra: map[string]any{"k": "v"}}
	rule := activeRule(VersionRule{KillSwitch: true, MessageConfig: cfg})

	got := newTestEngine().Evaluate(&rule, EvaluationContext{CurrentVersion: "1.0.0"}, nil, "")
	require.NotNil(t, got.CustomMessage)
	got.CustomMessage.Title = "changed"
	got.CustomMessage.Extra["k"] = "changed"

	assert.Equal(t, "t", cfg.Title)
	assert.Equal(t, "v", cfg.Extra["k"])
}

func TestEvaluateAll(t *testing.T) {
	e := newTestEngine()
	ctx := EvaluationContext{CurrentVersion: "1.0.0", DeviceID: "abc"}

	t.Run("higher priority wins", func(t *testing.T) {
		rules := []VersionRule{
			activeRule(VersionRule{ID: "force", Priority: 5, UpdateType: UpdateForce, LatestVersion: "2.0.0"}),
			activeRule(VersionRule{ID: "kill", Priority: 10, KillSwitch: true}),
		}
		got := e.EvaluateAll(rules, ctx, nil, "")
		assert.Equal(t, StatusKillSwitch, got.Status)
		assert.Equal(t, "force", rules[0].ID, "input order must be untouched")
	})

	t.Run("ties keep caller order", func(t *testing.T) {
		rules := []VersionRule{
			activeRule(VersionRule{Priority: 1, UpdateType: UpdateSoft, LatestVersion: "2.0.0"}),
			activeRule(VersionRule{Priority: 1, UpdateType: UpdateForce, LatestVersion: "2.0.0"}),
		}
		assert.Equal(t, StatusSoftUpdate, e.EvaluateAll(rules, ctx, nil, "").Status)

		rules[0], rules[1] = rules[1], rules[0]
		assert.Equal(t, StatusForceUpdate, e.EvaluateAll(rules, ctx, nil, "").Status)
	})

	t.Run("no-op rules are skipped", func(t *testing.T) {
		past := testNow.Add(-time.Minute)
		rules := []VersionRule{
			activeRule(VersionRule{Priority: 100, KillSwitch: true, EndDate: &past}),
			{Priority: 90, KillSwitch: true, RolloutPercentage: 100},
			activeRule(VersionRule{Priority: 80, KillSwitch: true, RolloutPercentage: 10}),
			activeRule(VersionRule{Priority: 70, LatestVersion: "1.0.0", UpdateType: UpdateForce}),
			activeRule(VersionRule{Priority: 1, BlockedVersions: []string{"1.0.0"}}),
		}
		assert.Equal(t, StatusBlocked, e.EvaluateAll(rules, ctx, nil, "").Status)
	})

	t.Run("nothing matches", func(t *testing.T) {
		rules := []VersionRule{activeRule(VersionRule{LatestVersion: "1.0.0", UpdateType: UpdateForce})}
		assert.Equal(t, None(), e.EvaluateAll(rules, ctx, nil, ""))
		assert.Equal(t, None(), e.EvaluateAll(nil, ctx, nil, ""))
	})

	t.Run("global maintenance regardless of rules", func(t *testing.T) {
		m := &MaintenanceMode{IsEnabled: true, Title: "Down"}
		rules := []VersionRule{activeRule(VersionRule{Priority: 10, KillSwitch: true})}
		assert.Equal(t, e.Evaluate(nil, ctx, m, ""), e.EvaluateAll(rules, ctx, m, ""))
		assert.Equal(t, e.Evaluate(nil, ctx, m, ""), e.EvaluateAll(nil, ctx, m, ""))
	})
}

func TestMessageConfig_JSON(t *testing.T) {
	raw := `{"title":"Hi","softButtonText":"Get it","imageUrl":"https://img","retries":3,"message":{"nested":true}}`

	var cfg MessageConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, "Hi", cfg.Title)
	assert.Equal(t, "Get it", cfg.SoftButtonText)
	assert.Equal(t, "", cfg.Message, "non-string known keys are kept as extra")
	assert.Equal(t, "https://img", cfg.Extra["imageUrl"])

	out, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestMessageConfig_Copy(t *testing.T) {
	var nilCfg *MessageConfig
	assert.Equal(t, "Update Available", nilCfg.SoftCopy().Title)
	assert.Equal(t, "App Disabled", nilCfg.KillSwitchCopy().Title)

	cfg := &MessageConfig{Title: "Generic", ButtonText: "Go", ForceMessage: "Now please"}
	assert.Equal(t, Copy{"Generic", "Now please", "Go"}, cfg.ForceCopy())
	assert.Equal(t, Copy{"Generic", "A new version is available.", "Go"}, cfg.SoftCopy())
}

func TestEvaluationResult_JSON(t *testing.T) {
	out, err := json.Marshal(None())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"NONE","blockVersion":false}`, string(out))
}
