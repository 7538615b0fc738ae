package model

import "fmt"

// ProviderID identifies one of the external telemetry providers.
type ProviderID string

const (
	ProviderActivity        ProviderID = "activity"
	ProviderReadiness       ProviderID = "readiness"
	ProviderBodyComposition ProviderID = "bodycomp"
	ProviderStrength        ProviderID = "strength"
)

// AllProviders lists every provider in refresh order. Body composition and
// strength are independent; readiness must precede activity.
var AllProviders = []ProviderID{
	ProviderBodyComposition,
	ProviderStrength,
	ProviderReadiness,
	ProviderActivity,
}

// ParseProviderID converts a string into a ProviderID, rejecting unknown values.
func ParseProviderID(s string) (ProviderID, error) {
	p := ProviderID(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// Valid reports whether p is one of the known providers.
func (p ProviderID) Valid() bool {
	switch p {
	case ProviderActivity, ProviderReadiness, ProviderBodyComposition, ProviderStrength:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable provider label.
func (p ProviderID) DisplayName() string {
	switch p {
	case ProviderActivity:
		return "Activity"
	case ProviderReadiness:
		return "Readiness"
	case ProviderBodyComposition:
		return "Body Composition"
	case ProviderStrength:
		return "Strength Log"
	default:
		return string(p)
	}
}

func (p ProviderID) String() string {
	return string(p)
}
