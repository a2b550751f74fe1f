package engine

import "time"

// Eligible reports whether rule may apply right now to the given device:
// it must be active, inside its [StartDate, EndDate] window and admitted by
// its rollout percentage.
func (e *Engine) Eligible(rule *VersionRule, deviceID string) bool {
	if rule == nil || !rule.IsActive {
		return false
	}
	if !inWindow(e.now(), rule.StartDate, rule.EndDate) {
		return false
	}
	return e.Admits(rule.RolloutPercentage, deviceID)
}

func inWindow(now time.Time, start, end *time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}
