// Package auth implements §4.8.3's pre-handler pipeline: token parsing,
// store-backed key lookup, bcrypt secret verification, and tier rate
// limiting, wrapped in a small validation cache. The control-flow shape —
// a single Authenticate entry point walking disabled-bypass, missing-token
// fallback, static keys, then store-backed keys, then rate limiting — is
// kept from the teacher's internal/auth/manager.go; the key model
// underneath it is replaced with KotaDB's tier-based ApiKey rather than the
// teacher's scope/repo-pattern model.
package auth

import (
	"os"
	"strings"
	"sync"
	"time"

	"kotadb/internal/config"
	"kotadb/internal/kotaerr"
	"kotadb/internal/logging"
	"kotadb/internal/storage"
)

const (
	cacheCapacity = 1024
	cacheTTL      = 5 * time.Second
)

// Manager is the authentication + rate limiting pre-handler (§4.8.3).
type Manager struct {
	config      config.AuthConfig
	keys        *storage.ApiKeyRepo
	rateLimiter *RateLimiter
	logger      *logging.Logger
	cache       *validationCache
	staticKeys  map[string]string // keyID -> expanded token literal
	mu          sync.RWMutex
}

// NewManager builds a Manager from the loaded AuthConfig. A nil db is
// accepted for fully local/no-auth setups, in which case store-backed key
// lookups are skipped (only LegacyToken/StaticKeys/disabled-bypass apply).
func NewManager(cfg config.AuthConfig, db *storage.DB, logger *logging.Logger) *Manager {
	m := &Manager{
		config:     cfg,
		logger:     logger,
		cache:      newValidationCache(cacheCapacity, cacheTTL),
		staticKeys: expandStaticKeys(cfg.StaticKeys),
	}
	if db != nil {
		m.keys = storage.NewApiKeyRepo(db)
		m.rateLimiter = NewRateLimiter(db, limitsFromConfig(cfg))
	}
	return m
}

func limitsFromConfig(cfg config.AuthConfig) map[Tier]Limits {
	limits := DefaultLimits()
	for tier, hourly := range cfg.HourlyLimits {
		t := Tier(tier)
		l := limits[t]
		l.Hourly = hourly
		limits[t] = l
	}
	for tier, daily := range cfg.DailyLimits {
		t := Tier(tier)
		l := limits[t]
		l.Daily = daily
		limits[t] = l
	}
	return limits
}

// expandStaticKeys resolves "${ENV_VAR}" token literals against the
// process environment, mirroring the teacher's loadStaticKeys behavior.
func expandStaticKeys(raw map[string]string) map[string]string {
	expanded := make(map[string]string, len(raw))
	for keyID, literal := range raw {
		if strings.HasPrefix(literal, "${") && strings.HasSuffix(literal, "}") {
			envVar := strings.TrimSuffix(strings.TrimPrefix(literal, "${"), "}")
			literal = os.Getenv(envVar)
		}
		if literal != "" {
			expanded[keyID] = literal
		}
	}
	return expanded
}

// Authenticate runs the full §4.8.3 pipeline for one incoming bearer token
// (empty string if the request carried none) and returns a populated
// Context plus the RateLimitStatus to surface as X-RateLimit-* headers.
func (m *Manager) Authenticate(token string) (Context, RateLimitStatus, error) {
	now := time.Now()

	if !m.config.Enabled {
		return Context{Authenticated: true, Tier: TierTeam}, RateLimitStatus{Allowed: true}, nil
	}

	if token == "" {
		if !m.config.RequireAuth {
			return Context{Authenticated: true, Tier: TierFree}, RateLimitStatus{Allowed: true}, nil
		}
		return Context{}, RateLimitStatus{}, kotaerr.New(kotaerr.AuthDenied, "missing bearer token").
			WithDetails(map[string]interface{}{"code": ErrCodeMissingToken})
	}

	if m.config.LegacyToken != "" && token == m.config.LegacyToken {
		return Context{Authenticated: true, KeyID: "legacy", Tier: TierTeam}, RateLimitStatus{Allowed: true}, nil
	}

	for keyID, literal := range m.staticKeys {
		if token == literal {
			return m.finish(keyID, TierTeam, now)
		}
	}

	parsed, err := ParseToken(token)
	if err != nil {
		return Context{}, RateLimitStatus{}, err
	}

	if cached, fresh, ok := m.cache.Get(token, now); ok && fresh {
		return m.finish(cached.KeyID, cached.Tier, now)
	}

	if m.keys == nil {
		return Context{}, RateLimitStatus{}, kotaerr.New(kotaerr.AuthDenied, "unknown token").
			WithDetails(map[string]interface{}{"code": ErrCodeInvalidToken})
	}

	key, err := m.keys.GetByID(parsed.KeyID)
	if err != nil {
		return Context{}, RateLimitStatus{}, kotaerr.Wrap(kotaerr.StoreBusy, "looking up api key", err)
	}
	if key == nil || !VerifySecret(key.SecretHash, parsed.Secret) {
		return Context{}, RateLimitStatus{}, kotaerr.New(kotaerr.AuthDenied, "invalid token").
			WithDetails(map[string]interface{}{"code": ErrCodeInvalidToken})
	}
	if key.RevokedAt != nil {
		return Context{}, RateLimitStatus{}, kotaerr.New(kotaerr.AuthDenied, "token has been revoked").
			WithDetails(map[string]interface{}{"code": ErrCodeRevokedToken})
	}
	if !key.Enabled {
		return Context{}, RateLimitStatus{}, kotaerr.New(kotaerr.AuthDenied, "token is disabled").
			WithDetails(map[string]interface{}{"code": ErrCodeDisabledToken})
	}

	tier := Tier(key.Tier)
	m.cache.Put(token, Context{KeyID: key.KeyID, Tier: tier, Authenticated: true}, now)

	go m.touchLastUsed(key.KeyID, now)

	return m.finish(key.KeyID, tier, now)
}

// finish applies the rate limit check and assembles the final result, the
// common tail shared by every successful authentication path.
func (m *Manager) finish(keyID string, tier Tier, now time.Time) (Context, RateLimitStatus, error) {
	ctx := Context{KeyID: keyID, Tier: tier, Authenticated: true}
	if m.rateLimiter == nil {
		return ctx, RateLimitStatus{Allowed: true}, nil
	}

	status, err := m.rateLimiter.Allow(keyID, tier, now)
	if err != nil {
		// Fail closed on a rate limiter store error (§4.8.3): deny with a
		// concrete Retry-After rather than a zero-value status that leaves
		// the client with no retry guidance.
		return ctx, RateLimitStatus{Allowed: false, RetryAfter: time.Hour}, kotaerr.Wrap(kotaerr.StoreBusy, "checking rate limit", err)
	}
	if !status.Allowed {
		if m.logger != nil {
			m.logger.Warn("rate limit exceeded", map[string]interface{}{"key_id": keyID, "tier": string(tier)})
		}
		return ctx, status, kotaerr.New(kotaerr.RateLimited, "rate limit exceeded").
			WithDetails(map[string]interface{}{"retry_after_seconds": status.RetryAfter.Seconds()})
	}
	return ctx, status, nil
}

func (m *Manager) touchLastUsed(keyID string, at time.Time) {
	if err := m.keys.TouchLastUsed(keyID, at); err != nil && m.logger != nil {
		m.logger.Warn("updating api key last_used_at failed", map[string]interface{}{"key_id": keyID, "error": err.Error()})
	}
}

// CreateKey generates a new key id + secret, stores the bcrypt hash, and
// returns the full bearer token (displayed to the caller exactly once).
func (m *Manager) CreateKey(tier Tier) (token string, keyID string, err error) {
	if m.keys == nil {
		return "", "", kotaerr.New(kotaerr.InternalError, "auth manager has no store configured")
	}
	keyID, err = GenerateKeyID()
	if err != nil {
		return "", "", err
	}
	secret, err := GenerateSecret()
	if err != nil {
		return "", "", err
	}
	hash, err := HashSecret(secret)
	if err != nil {
		return "", "", err
	}
	if err := m.keys.Create(&storage.ApiKey{KeyID: keyID, Tier: string(tier), SecretHash: hash, Enabled: true}); err != nil {
		return "", "", kotaerr.Wrap(kotaerr.StoreWriteError, "creating api key", err)
	}
	return FormatToken(tier, keyID, secret), keyID, nil
}

// RevokeKey revokes a key in the store; it does not evict cached
// validations. The cache is keyed by full token, not key id, so revocation is "eventually
// consistent" within the cache TTL for a token already cached — acceptable
// per §4.8.3's soft-TTL design, since a revoked key still rejects as soon
// as the cache entry expires or the store's RevokedAt check runs.
func (m *Manager) RevokeKey(keyID string) error {
	if m.keys == nil {
		return kotaerr.New(kotaerr.InternalError, "auth manager has no store configured")
	}
	if err := m.keys.Revoke(keyID, time.Now()); err != nil {
		return kotaerr.Wrap(kotaerr.StoreWriteError, "revoking api key", err)
	}
	return nil
}

// ListKeys returns every stored key (secrets are never returned, only hashes).
func (m *Manager) ListKeys() ([]storage.ApiKey, error) {
	if m.keys == nil {
		return nil, nil
	}
	keys, err := m.keys.List()
	if err != nil {
		return nil, kotaerr.Wrap(kotaerr.StoreBusy, "listing api keys", err)
	}
	return keys, nil
}
