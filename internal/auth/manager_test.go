package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"kotadb/internal/config"
	"kotadb/internal/logging"
	"kotadb/internal/storage"
)

func newTestManager(t *testing.T, cfg config.AuthConfig) (*Manager, *storage.DB) {
	t.Helper()
	dir := t.TempDir()
	logger := logging.NewLogger(logging.Config{Output: os.Stderr, Level: logging.LevelError})
	db, err := storage.Open(filepath.Join(dir, "kotadb.db"), storage.Options{}, logger)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewManager(cfg, db, logger), db
}

func TestAuthenticate_DisabledBypassesEverything(t *testing.T) {
	m, _ := newTestManager(t, config.AuthConfig{Enabled: false})
	ctx, status, err := m.Authenticate("")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ctx.Authenticated || !status.Allowed {
		t.Fatalf("expected disabled auth to allow everything, got %+v %+v", ctx, status)
	}
}

func TestAuthenticate_MissingTokenDeniedWhenRequired(t *testing.T) {
	m, _ := newTestManager(t, config.AuthConfig{Enabled: true, RequireAuth: true})
	_, _, err := m.Authenticate("")
	if err == nil {
		t.Fatal("expected missing token to be denied when RequireAuth is set")
	}
}

func TestAuthenticate_MissingTokenAllowedWhenNotRequired(t *testing.T) {
	m, _ := newTestManager(t, config.AuthConfig{Enabled: true, RequireAuth: false})
	ctx, _, err := m.Authenticate("")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ctx.Authenticated || ctx.Tier != TierFree {
		t.Fatalf("expected an authenticated free-tier context, got %+v", ctx)
	}
}

func TestAuthenticate_ValidTokenRoundTrips(t *testing.T) {
	m, _ := newTestManager(t, config.AuthConfig{Enabled: true, RequireAuth: true})

	token, keyID, err := m.CreateKey(TierSolo)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	ctx, status, err := m.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ctx.Authenticated || ctx.KeyID != keyID || ctx.Tier != TierSolo {
		t.Fatalf("unexpected context: %+v", ctx)
	}
	if !status.Allowed {
		t.Fatalf("expected the first request to be within limits, got %+v", status)
	}
}

func TestAuthenticate_RevokedTokenDenied(t *testing.T) {
	m, _ := newTestManager(t, config.AuthConfig{Enabled: true, RequireAuth: true})

	token, keyID, err := m.CreateKey(TierFree)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if err := m.RevokeKey(keyID); err != nil {
		t.Fatalf("RevokeKey: %v", err)
	}

	if _, _, err := m.Authenticate(token); err == nil {
		t.Fatal("expected a revoked token to be denied")
	}
}

func TestAuthenticate_MalformedTokenDenied(t *testing.T) {
	m, _ := newTestManager(t, config.AuthConfig{Enabled: true, RequireAuth: true})
	if _, _, err := m.Authenticate("not-a-valid-token"); err == nil {
		t.Fatal("expected a malformed token to be denied")
	}
}

func TestAuthenticate_LegacyToken(t *testing.T) {
	m, _ := newTestManager(t, config.AuthConfig{Enabled: true, RequireAuth: true, LegacyToken: "shared-secret"})
	ctx, _, err := m.Authenticate("shared-secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !ctx.Authenticated || ctx.Tier != TierTeam {
		t.Fatalf("expected legacy token to authenticate as team tier, got %+v", ctx)
	}
}

func TestAuthenticate_RateLimitExceeded(t *testing.T) {
	cfg := config.AuthConfig{
		Enabled:      true,
		RequireAuth:  true,
		HourlyLimits: map[string]int{"free": 2},
		DailyLimits:  map[string]int{"free": 1000},
	}
	m, _ := newTestManager(t, cfg)
	token, _, err := m.CreateKey(TierFree)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, status, err := m.Authenticate(token); err != nil || !status.Allowed {
			t.Fatalf("request %d: expected to be allowed, got status=%+v err=%v", i, status, err)
		}
	}

	if _, status, err := m.Authenticate(token); err == nil || status.Allowed {
		t.Fatalf("expected the third request to be rate limited, got status=%+v err=%v", status, err)
	}
}

func TestAuthenticate_RateLimiterStoreErrorFailsClosed(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, RequireAuth: true}
	m, db := newTestManager(t, cfg)
	token, _, err := m.CreateKey(TierFree)
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if _, _, err := m.Authenticate(token); err != nil {
		t.Fatalf("warm-up Authenticate: %v", err)
	} // warms the validation cache so the next call skips the key lookup

	db.Close() // forces RateLimiter.Allow's counter increment to fail

	_, status, err := m.Authenticate(token)
	if err == nil {
		t.Fatal("expected a rate limiter store error to deny the request")
	}
	if status.Allowed {
		t.Fatalf("expected Allowed=false on a store error, got %+v", status)
	}
	if status.RetryAfter < time.Hour {
		t.Fatalf("expected a fail-closed RetryAfter of at least 1h, got %v", status.RetryAfter)
	}
}
