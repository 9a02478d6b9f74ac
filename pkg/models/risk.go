package models

import "fmt"

// RiskLevel is the discrete severity assigned to a crossing. The banding that
// maps scores to levels is policy, configured in [config.RiskBanding]; the
// ordering here is the fixed part: levels only ever rise with more distinct
// meanings and higher collapse.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskLow
	RiskMedium
	RiskElevated
	RiskHigh
)

func (r RiskLevel) String() string {
	switch r {
	case RiskNone:
		return "none"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskElevated:
		return "elevated"
	case RiskHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the risk level as its string form.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// ParseRiskLevel converts a risk level name to its enum value.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "none":
		return RiskNone, nil
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "elevated":
		return RiskElevated, nil
	case "high":
		return RiskHigh, nil
	default:
		return RiskNone, fmt.Errorf("unknown risk level %q", s)
	}
}
