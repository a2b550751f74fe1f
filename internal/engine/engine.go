package engine

import (
	"cmp"
	"slices"
	"time"
)

// Engine evaluates version rules. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	now  func() time.Time
	rand RandomSource
}

type Option func(*Engine)

// WithClock overrides the time source used for rule windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRandom overrides the randomness used for rollouts without a device id.
func WithRandom(r RandomSource) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = r
		}
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, rand: globalRand{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// input is what every precedence step sees for a single evaluation.
type input struct {
	rule        *VersionRule
	ctx         EvaluationContext
	maintenance *MaintenanceMode
	storeURL    string
}

// step is one row of the decision table. A step either decides the result
// (ok == true) or passes to the next row.
type step struct {
	name   string
	decide func(e *Engine, in input) (EvaluationResult, bool)
}

// precedence is the evaluation order; the first row that decides wins.
var precedence = []step{
	{"maintenance", (*Engine).globalMaintenance},
	{"no-rule", func(_ *Engine, in input) (EvaluationResult, bool) { return None(), in.rule == nil }},
	{"ineligible", func(e *Engine, in input) (EvaluationResult, bool) {
		return None(), !e.Eligible(in.rule, in.ctx.DeviceID)
	}},
	{"rule-maintenance", (*Engine).ruleMaintenance},
	{"kill-switch", (*Engine).killSwitch},
	{"blocked-version", (*Engine).blockedVersion},
	{"below-minimum", (*Engine).belowMinimum},
	{"below-latest", (*Engine).belowLatest},
}

// Precedence returns the names of the decision table rows in order.
func Precedence() []string {
	names := make([]string, len(precedence))
	for i, s := range precedence {
		names[i] = s.name
	}
	return names
}

// Evaluate applies one rule (which may be nil) to a client. Global
// maintenance pre-empts everything, including a missing rule.
func (e *Engine) Evaluate(rule *VersionRule, ctx EvaluationContext, maintenance *MaintenanceMode, storeURL string) EvaluationResult {
	in := input{rule: rule, ctx: ctx, maintenance: maintenance, storeURL: storeURL}
	for _, s := range precedence {
		if res, ok := s.decide(e, in); ok {
			return res
		}
	}
	return None()
}

// EvaluateAll evaluates rules by descending priority and returns the first
// directive that is not NONE. Rules with equal priority keep the caller's
// order. The rules slice is not modified.
func (e *Engine) EvaluateAll(rules []VersionRule, ctx EvaluationContext, maintenance *MaintenanceMode, storeURL string) EvaluationResult {
	if res, ok := e.globalMaintenance(input{maintenance: maintenance}); ok {
		return res
	}

	ordered := slices.Clone(rules)
	slices.SortStableFunc(ordered, func(a, b VersionRule) int { return cmp.Compare(b.Priority, a.Priority) })

	for i := range ordered {
		if res := e.Evaluate(&ordered[i], ctx, nil, storeURL); res.Status != StatusNone {
			return res
		}
	}
	return None()
}

func (e *Engine) globalMaintenance(in input) (EvaluationResult, bool) {
	m := in.maintenance
	if m == nil || !m.IsEnabled {
		return EvaluationResult{}, false
	}
	return EvaluationResult{
		Status:       StatusMaintenance,
		Title:        first(m.Title, maintenanceDefaults.Title),
		Message:      first(m.Message, maintenanceDefaults.Message),
		BlockVersion: true,
		EstimatedEnd: m.EstimatedEnd,
	}, true
}

func (e *Engine) ruleMaintenance(in input) (EvaluationResult, bool) {
	if in.rule.UpdateType != UpdateMaintenance {
		return EvaluationResult{}, false
	}
	return result(StatusMaintenance, in.rule.MessageConfig.MaintenanceCopy(), in, true), true
}

func (e *Engine) killSwitch(in input) (EvaluationResult, bool) {
	if !in.rule.KillSwitch {
		return EvaluationResult{}, false
	}
	res := result(StatusKillSwitch, in.rule.MessageConfig.KillSwitchCopy(), in, true)
	res.StoreURL = ""
	return res, true
}

func (e *Engine) blockedVersion(in input) (EvaluationResult, bool) {
	if !slices.Contains(in.rule.BlockedVersions, in.ctx.CurrentVersion) {
		return EvaluationResult{}, false
	}
	return result(StatusBlocked, in.rule.MessageConfig.BlockedCopy(), in, true), true
}

func (e *Engine) belowMinimum(in input) (EvaluationResult, bool) {
	if in.rule.MinVersion == "" || CompareVersions(in.ctx.CurrentVersion, in.rule.MinVersion) >= 0 {
		return EvaluationResult{}, false
	}
	res := result(StatusForceUpdate, in.rule.MessageConfig.ForceCopy(), in, true)
	res.LatestVersion = first(in.rule.LatestVersion, in.rule.MinVersion)
	return res, true
}

func (e *Engine) belowLatest(in input) (EvaluationResult, bool) {
	if CompareVersions(in.ctx.CurrentVersion, in.rule.LatestVersion) >= 0 {
		return EvaluationResult{}, false
	}
	var res EvaluationResult
	switch in.rule.UpdateType {
	case UpdateSoft:
		res = result(StatusSoftUpdate, in.rule.MessageConfig.SoftCopy(), in, false)
	case UpdateForce:
		res = result(StatusForceUpdate, in.rule.MessageConfig.ForceCopy(), in, true)
	default:
		return EvaluationResult{}, false
	}
	res.LatestVersion = in.rule.LatestVersion
	return res, true
}

func result(status Status, c Copy, in input, block bool) EvaluationResult {
	return EvaluationResult{
		Status:        status,
		Title:         c.Title,
		Message:       c.Message,
		ButtonText:    c.ButtonText,
		CustomMessage: in.rule.MessageConfig.Clone(),
		BlockVersion:  block,
		StoreURL:      in.storeURL,
	}
}
