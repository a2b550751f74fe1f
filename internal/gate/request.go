package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Platforms a client may report. Rules may also target "all".
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
	PlatformWeb     = "web"
	PlatformWindows = "windows"
	PlatformMacOS   = "macos"
	PlatformLinux   = "linux"
	PlatformAll     = "all"
)

const (
	EnvProd    = "prod"
	EnvStaging = "staging"
	EnvDev     = "dev"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CheckRequest is the body of a version check.
type CheckRequest struct {
	AppID          string         `json:"appId,omitempty" validate:"omitempty,uuid"`
	Platform       string         `json:"platform" validate:"required,oneof=android ios web windows macos linux"`
	CurrentVersion string         `json:"currentVersion" validate:"required,max=64"`
	BuildNumber    string         `json:"buildNumber,omitempty" validate:"max=64"`
	Environment    string         `json:"environment" validate:"required,oneof=prod staging dev"`
	DeviceID       string         `json:"deviceId,omitempty" validate:"max=256"`
	OSVersion      string         `json:"osVersion,omitempty" validate:"max=64"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Normalize trims and lower-cases the enum fields in place.
func (r *CheckRequest) Normalize() {
	r.AppID = strings.TrimSpace(r.AppID)
	r.Platform = strings.ToLower(strings.TrimSpace(r.Platform))
	r.Environment = strings.ToLower(strings.TrimSpace(r.Environment))
	r.CurrentVersion = strings.TrimSpace(r.CurrentVersion)
	r.BuildNumber = strings.TrimSpace(r.BuildNumber)
	r.DeviceID = strings.TrimSpace(r.DeviceID)
}

// Validate returns an ErrInvalidRequest describing the first bad field.
func (r CheckRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %s", ErrInvalidRequest, jsonName(fe.StructField()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	switch field {
	case "AppID":
		return "appId"
	case "DeviceID":
		return "deviceId"
	case "OSVersion":
		return "osVersion"
	}
	return strings.ToLower(field[:1]) + field[1:]
}
