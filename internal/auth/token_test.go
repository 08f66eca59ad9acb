package auth

import "testing"

func TestFormatAndParseToken_RoundTrips(t *testing.T) {
	keyID, err := GenerateKeyID()
	if err != nil {
		t.Fatalf("GenerateKeyID: %v", err)
	}
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}

	token := FormatToken(TierSolo, keyID, secret)
	parsed, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed.Tier != TierSolo || parsed.KeyID != keyID || parsed.Secret != secret {
		t.Fatalf("round trip mismatch: got %+v", parsed)
	}
}

func TestParseToken_RejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"nope",
		"kota_bogus_tier_abc_def",
		"kota_free_short_short",
	}
	for _, c := range cases {
		if _, err := ParseToken(c); err == nil {
			t.Errorf("expected %q to be rejected", c)
		}
	}
}

func TestHashAndVerifySecret(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	hash, err := HashSecret(secret)
	if err != nil {
		t.Fatalf("HashSecret: %v", err)
	}
	if !VerifySecret(hash, secret) {
		t.Error("expected the correct secret to verify")
	}
	if VerifySecret(hash, "wrong-secret") {
		t.Error("expected an incorrect secret to fail verification")
	}
}
