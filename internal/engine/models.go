package engine

import "time"

// Status is the directive returned to the client. Values are part of the
// wire contract and must not change.
type Status string

const (
	StatusNone        Status = "NONE"
	StatusSoftUpdate  Status = "SOFT_UPDATE"
	StatusForceUpdate Status = "FORCE_UPDATE"
	StatusKillSwitch  Status = "KILL_SWITCH"
	StatusBlocked     Status = "BLOCKED"
	StatusMaintenance Status = "MAINTENANCE"
)

// UpdateType is how a rule wants outdated clients to be treated.
type UpdateType string

const (
	UpdateSoft        UpdateType = "soft"
	UpdateForce       UpdateType = "force"
	UpdateMaintenance UpdateType = "maintenance"
	UpdateNone        UpdateType = "none"
)

// VersionRule is a snapshot of one stored rule. The engine never mutates it.
type VersionRule struct {
	ID                string         `json:"id,omitempty" yaml:"id"`
	KillSwitch        bool           `json:"killSwitch" yaml:"killSwitch"`
	BlockedVersions   []string       `json:"blockedVersions,omitempty" yaml:"blockedVersions"`
	MinVersion        string         `json:"minVersion,omitempty" yaml:"minVersion"`
	LatestVersion     string         `json:"latestVersion" yaml:"latestVersion"`
	UpdateType        UpdateType     `json:"updateType" yaml:"updateType"`
	MessageConfig     *MessageConfig `json:"messageConfig,omitempty" yaml:"messageConfig"`
	IsActive          bool           `json:"isActive" yaml:"isActive"`
	Priority          int            `json:"priority" yaml:"priority"`
	RolloutPercentage int            `json:"rolloutPercentage" yaml:"rolloutPercentage"`
	StartDate         *time.Time     `json:"startDate,omitempty" yaml:"startDate"`
	EndDate           *time.Time     `json:"endDate,omitempty" yaml:"endDate"`
}

// MaintenanceMode is the app-wide maintenance switch.
type MaintenanceMode struct {
	IsEnabled    bool       `json:"isEnabled" yaml:"isEnabled"`
	Title        string     `json:"title,omitempty" yaml:"title"`
	Message      string     `json:"message,omitempty" yaml:"message"`
	EstimatedEnd *time.Time `json:"estimatedEnd,omitempty" yaml:"estimatedEnd"`
}

// EvaluationContext describes the calling client. Empty strings mean absent.
type EvaluationContext struct {
	CurrentVersion string `json:"currentVersion" yaml:"currentVersion"`
	BuildNumber    string `json:"buildNumber,omitempty" yaml:"buildNumber"`
	DeviceID       string `json:"deviceId,omitempty" yaml:"deviceId"`
}

// EvaluationResult is the single directive produced per evaluation.
type EvaluationResult struct {
	Status        Status         `json:"status"`
	Title         string         `json:"title,omitempty"`
	Message       string         `json:"message,omitempty"`
	ButtonText    string         `json:"buttonText,omitempty"`
	CustomMessage *MessageConfig `json:"customMessage,omitempty"`
	LatestVersion string         `json:"latestVersion,omitempty"`
	BlockVersion  bool           `json:"blockVersion"`
	StoreURL      string         `json:"storeUrl,omitempty"`
	EstimatedEnd  *time.Time     `json:"estimatedEnd,omitempty"`
}

// None is the "no action" result.
func None() EvaluationResult { return EvaluationResult{Status: StatusNone} }
