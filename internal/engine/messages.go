package engine

import (
	"encoding/json"
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// MessageConfig is the user-facing copy attached to a rule. Family specific
// keys win over the generic title/message/buttonText; anything else a rule
// author stored is kept in Extra so it is echoed back untouched.
type MessageConfig struct {
	Title      string
	Message    string
	ButtonText string

	SoftTitle      string
	SoftMessage    string
	SoftButtonText string

	ForceTitle      string
	ForceMessage    string
	ForceButtonText string

	BlockedTitle   string
	BlockedMessage string

	KillSwitchTitle   string
	KillSwitchMessage string

	MaintenanceTitle   string
	MaintenanceMessage string

	Extra map[string]any
}

// Copy is the flattened title/message/button triple for one result.
type Copy struct {
	Title      string
	Message    string
	ButtonText string
}

var (
	softDefaults        = Copy{"Update Available", "A new version is available.", "Update"}
	forceDefaults       = Copy{"Update Required", "Please update to continue using the app.", "Update Now"}
	blockedDefaults     = Copy{"Version Blocked", "This version is no longer supported. Please update.", "Update Now"}
	killSwitchDefaults  = Copy{"App Disabled", "This app is currently unavailable.", ""}
	maintenanceDefaults = Copy{"Under Maintenance", "We are currently performing maintenance. Please try again later.", ""}
)

// fields maps wire keys to struct fields. Order is the marshal order.
func (m *MessageConfig) fields() []struct {
	key string
	ptr *string
} {
	return []struct {
		key string
		ptr *string
	}{
		{"title", &m.Title},
		{"message", &m.Message},
		{"buttonText", &m.ButtonText},
		{"softTitle", &m.SoftTitle},
		{"softMessage", &m.SoftMessage},
		{"softButtonText", &m.SoftButtonText},
		{"forceTitle", &m.ForceTitle},
		{"forceMessage", &m.ForceMessage},
		{"forceButtonText", &m.ForceButtonText},
		{"blockedTitle", &m.BlockedTitle},
		{"blockedMessage", &m.BlockedMessage},
		{"killSwitchTitle", &m.KillSwitchTitle},
		{"killSwitchMessage", &m.KillSwitchMessage},
		{"maintenanceTitle", &m.MaintenanceTitle},
		{"maintenanceMessage", &m.MaintenanceMessage},
	}
}

// SoftCopy resolves copy for SOFT_UPDATE.
func (m *MessageConfig) SoftCopy() Copy {
	if m == nil {
		return softDefaults
	}
	return Copy{
		Title:      first(m.SoftTitle, m.Title, softDefaults.Title),
		Message:    first(m.SoftMessage, m.Message, softDefaults.Message),
		ButtonText: first(m.SoftButtonText, m.ButtonText, softDefaults.ButtonText),
	}
}

// ForceCopy resolves copy for FORCE_UPDATE.
func (m *MessageConfig) ForceCopy() Copy {
	if m == nil {
		return forceDefaults
	}
	return Copy{
		Title:      first(m.ForceTitle, m.Title, forceDefaults.Title),
		Message:    first(m.ForceMessage, m.Message, forceDefaults.Message),
		ButtonText: first(m.ForceButtonText, m.ButtonText, forceDefaults.ButtonText),
	}
}

// BlockedCopy resolves copy for BLOCKED.
func (m *MessageConfig) BlockedCopy() Copy {
	if m == nil {
		return blockedDefaults
	}
	return Copy{
		Title:      first(m.BlockedTitle, m.Title, blockedDefaults.Title),
		Message:    first(m.BlockedMessage, m.Message, blockedDefaults.Message),
		ButtonText: first(m.ButtonText, blockedDefaults.ButtonText),
	}
}

// KillSwitchCopy resolves copy for KILL_SWITCH.
func (m *MessageConfig) KillSwitchCopy() Copy {
	if m == nil {
		return killSwitchDefaults
	}
	return Copy{
		Title:   first(m.KillSwitchTitle, m.Title, killSwitchDefaults.Title),
		Message: first(m.KillSwitchMessage, m.Message, killSwitchDefaults.Message),
	}
}

// MaintenanceCopy resolves copy for a rule-level MAINTENANCE.
func (m *MessageConfig) MaintenanceCopy() Copy {
	if m == nil {
		return maintenanceDefaults
	}
	return Copy{
		Title:   first(m.MaintenanceTitle, m.Title, maintenanceDefaults.Title),
		Message: first(m.MaintenanceMessage, m.Message, maintenanceDefaults.Message),
	}
}

// ForceDefaults is the copy used for FORCE_UPDATE results that have no rule,
// such as the platform minimum version check.
func ForceDefaults() Copy { return forceDefaults }

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy; nil stays nil.
func (m *MessageConfig) Clone() *MessageConfig {
	if m == nil {
		return nil
	}
	c := *m
	c.Extra = maps.Clone(m.Extra)
	return &c
}

// ToMap flattens the config back into its stored key/value form.
func (m *MessageConfig) ToMap() map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m.Extra)+4)
	for k, v := range m.Extra {
		out[k] = v
	}
	for _, f := range m.fields() {
		if *f.ptr != "" {
			out[f.key] = *f.ptr
		}
	}
	return out
}

// FromMap fills the config from a stored key/value form. Known keys must be
// strings; any other value type for a known key is kept in Extra.
func (m *MessageConfig) FromMap(in map[string]any) {
	*m = MessageConfig{}
	known := make(map[string]*string)
	for _, f := range m.fields() {
		known[f.key] = f.ptr
	}
	for k, v := range in {
		if ptr, ok := known[k]; ok {
			if s, ok := v.(string); ok {
				*ptr = s
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[k] = v
	}
}

func (m MessageConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToMap())
}

func (m *MessageConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode message config: %w", err)
	}
	m.FromMap(raw)
	return nil
}

func (m *MessageConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decode message config: %w", err)
	}
	m.FromMap(raw)
	return nil
}
