package model

import (
	"fmt"
	"time"
)

// RefreshMethod records who started a refresh run. Processing marks a run
// that is still in flight and doubles as the lock token.
type RefreshMethod string

const (
	RefreshMethodSystem     RefreshMethod = "system"
	RefreshMethodManual     RefreshMethod = "manual"
	RefreshMethodProcessing RefreshMethod = "processing"
)

// ParseRefreshMethod converts a string into a RefreshMethod.
func ParseRefreshMethod(s string) (RefreshMethod, error) {
	m := RefreshMethod(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown refresh method %q", s)
	}
	return m, nil
}

// Valid reports whether m is a known refresh method.
func (m RefreshMethod) Valid() bool {
	switch m {
	case RefreshMethodSystem, RefreshMethodManual, RefreshMethodProcessing:
		return true
	default:
		return false
	}
}

// Provider status strings recorded in the ledger.
const (
	StatusSuccessful       = "Successful"
	StatusNoCredentials    = "no credentials"
	StatusAwaitingUpstream = "awaiting upstream update"
)

// LedgerEntry is one refresh attempt. RunID is the UTC start time of the run.
type LedgerEntry struct {
	RunID     time.Time
	Method    RefreshMethod
	Truncate  bool
	Statuses  map[ProviderID]string
	CreatedAt time.Time
}

// Status returns the recorded status for p, or "" when none was recorded.
func (e LedgerEntry) Status(p ProviderID) string {
	if e.Statuses == nil {
		return ""
	}
	return e.Statuses[p]
}
