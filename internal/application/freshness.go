package application

import "time"

// Freshness classifies how far behind a provider's newest stored record is.
type Freshness int

const (
	// FreshnessNone means the provider has no stored data.
	FreshnessNone Freshness = iota
	// FreshnessCurrent means the newest record is under a day and a half old.
	FreshnessCurrent
	// FreshnessLagging means the newest record is under a week old.
	FreshnessLagging
	// FreshnessStale means nothing new for a week or more.
	FreshnessStale
)

const (
	currentWindow = 36 * time.Hour
	laggingWindow = 7 * 24 * time.Hour
)

// String returns a human-readable name for the freshness tier.
func (f Freshness) String() string {
	switch f {
	case FreshnessNone:
		return "none"
	case FreshnessCurrent:
		return "current"
	case FreshnessLagging:
		return "lagging"
	case FreshnessStale:
		return "stale"
	default:
		return "unknown"
	}
}

// MarshalText renders the tier by name in JSON responses.
func (f Freshness) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// classifyFreshness places newest relative to now. A zero time is FreshnessNone.
func classifyFreshness(newest, now time.Time) Freshness {
	if newest.IsZero() {
		return FreshnessNone
	}

	switch elapsed := now.Sub(newest); {
	case elapsed < currentWindow:
		return FreshnessCurrent
	case elapsed < laggingWindow:
		return FreshnessLagging
	default:
		return FreshnessStale
	}
}
