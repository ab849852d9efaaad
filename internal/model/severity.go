package model

import (
	"encoding/json"
	"fmt"
)

// Severity is the category of a notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityDanger
	severityCount
)

type severityInfo struct {
	name string
	icon string
}

// severities is indexed by Severity; every value below severityCount has an entry.
var severities = [severityCount]severityInfo{
	SeverityInfo:    {name: "info", icon: "info-circle"},
	SeveritySuccess: {name: "success", icon: "check-circle"},
	SeverityWarning: {name: "warning", icon: "alert-triangle"},
	SeverityDanger:  {name: "danger", icon: "alert-octagon"},
}

// ParseSeverity converts the wire name of a severity.
func ParseSeverity(s string) (Severity, error) {
	for i, info := range severities {
		if info.name == s {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	return s >= 0 && s < severityCount
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Severity(%d)", int(s))
	}
	return severities[s].name
}

// Icon is the presentation icon for s.
func (s Severity) Icon() string {
	if !s.Valid() {
		return ""
	}
	return severities[s].icon
}

func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return json.Marshal(severities[s].name)
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
