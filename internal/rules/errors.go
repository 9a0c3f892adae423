// Package rules implements the Rule Engine and Access Control: RC-1.01
// through RC-3.02, capability decisions, and per-tier rate quotas.
package rules

import "errors"

var (
	ErrUnauthenticated    = errors.New("rules: unauthenticated")
	ErrBanned             = errors.New("rules: agent is banned")
	ErrAccessViolation    = errors.New("rules: access violation")
	ErrCriticalTierLocked = errors.New("rules: critical tier locked")
	ErrRateLimited        = errors.New("rules: rate limited")
	ErrHeirClaimInvalid   = errors.New("rules: heir claim invalid")
	ErrNotEligible        = errors.New("rules: heir transfer not yet eligible")
)
