// Package auth implements the authentication and rate limiting pre-handler
// pipeline (§4.8.3): bearer token validation against §3's ApiKey table (or
// a local-mode synthesized key), a bounded LRU validation cache, and the
// store-backed rate counter.
package auth

import "time"

// Tier is the rate-limit class a key is assigned (§3, GLOSSARY).
type Tier string

const (
	TierFree Tier = "free"
	TierSolo Tier = "solo"
	TierTeam Tier = "team"
)

// Limits is the (hourly, daily) pair governing a tier (§4.8.3).
type Limits struct {
	Hourly int
	Daily  int
}

// DefaultLimits mirrors config.DefaultConfig's Auth.HourlyLimits/DailyLimits.
func DefaultLimits() map[Tier]Limits {
	return map[Tier]Limits{
		TierFree: {Hourly: 1000, Daily: 10000},
		TierSolo: {Hourly: 5000, Daily: 50000},
		TierTeam: {Hourly: 20000, Daily: 200000},
	}
}

// Context is what a successful Authenticate call attaches to the request
// (§4.8.3 step 3): the authenticated key's identity and tier.
type Context struct {
	KeyID         string
	Tier          Tier
	Authenticated bool
}

// RateLimitStatus is attached to the request alongside Context and drives
// the X-RateLimit-* response headers (§4.8.3).
type RateLimitStatus struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	RetryAfter time.Duration
}

// Error codes for authentication failures, surfaced as kotaerr.AuthDenied
// details.
const (
	ErrCodeMissingToken  = "missing_token"
	ErrCodeInvalidToken  = "invalid_token"
	ErrCodeRevokedToken  = "revoked_token"
	ErrCodeDisabledToken = "disabled_token"
)
