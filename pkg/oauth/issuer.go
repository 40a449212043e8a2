// Package oauth emulates Azure AD's client-credentials OAuth 2.0
// authority: an Issuer signs RS256 access tokens and exposes a JWKS
// for a Validator (or any external relying party) to verify them
// against, plus OIDC discovery metadata.
package oauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/oladejiayo/localzure-sub003/pkg/log"
)

const (
	// SupportedGrantType is the only grant type the authority accepts.
	SupportedGrantType = "client_credentials"

	// DefaultIssuerURL is used when no issuer is configured.
	DefaultIssuerURL = "https://localzure.local"

	// DefaultTokenLifetime matches Azure AD's default access token TTL.
	DefaultTokenLifetime = time.Hour

	// DefaultScope/DefaultAudience are issued when a token request
	// carries no scope or resource.
	DefaultScope     = "https://storage.azure.com/.default"
	DefaultAudience  = "https://storage.azure.com"
	defaultSubject   = "local-user"
	defaultTenantID  = "localzure-tenant"
	claimsVersion    = "1.0"
)

// defaultScopeAudiences mirrors Azure AD's well-known resource scopes
// so common SDK default-credential flows resolve without the
// generic "/.default" stripping path.
var defaultScopeAudiences = map[string]string{
	"https://storage.azure.com/.default":    "https://storage.azure.com",
	"https://vault.azure.net/.default":      "https://vault.azure.net",
	"https://management.azure.com/.default": "https://management.azure.com",
	"https://graph.microsoft.com/.default":  "https://graph.microsoft.com",
}

// TokenRequest is a client_credentials grant request.
type TokenRequest struct {
	GrantType    string
	Scope        string
	ClientID     string
	ClientSecret string
	Resource     string
}

// TokenResponse is the RFC 6749 §5.1 access token response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// JWK is a single entry of a JSON Web Key Set.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// JWKSResponse is the JWKS endpoint body.
type JWKSResponse struct {
	Keys []JWK `json:"keys"`
}

// OpenIDConfiguration is the OIDC discovery document body.
type OpenIDConfiguration struct {
	Issuer                           string   `json:"issuer"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
}

// Issuer signs access tokens with an RSA-2048 key pair generated (or
// supplied) at construction time.
type Issuer struct {
	issuer        string
	tokenLifetime time.Duration
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	keyID         string
}

// IssuerOption customizes NewIssuer.
type IssuerOption func(*issuerConfig)

type issuerConfig struct {
	issuer        string
	tokenLifetime time.Duration
	privateKey    *rsa.PrivateKey
	keyID         string
}

// WithIssuerURL overrides DefaultIssuerURL.
func WithIssuerURL(issuer string) IssuerOption {
	return func(c *issuerConfig) { c.issuer = issuer }
}

// WithTokenLifetime overrides DefaultTokenLifetime.
func WithTokenLifetime(d time.Duration) IssuerOption {
	return func(c *issuerConfig) { c.tokenLifetime = d }
}

// WithPrivateKey supplies a fixed key pair instead of generating one,
// used by tests and by deployments that want a stable key across
// restarts.
func WithPrivateKey(key *rsa.PrivateKey) IssuerOption {
	return func(c *issuerConfig) { c.privateKey = key }
}

// NewIssuer generates (or accepts via WithPrivateKey) an RSA-2048 key
// pair and returns an Issuer ready to sign tokens.
func NewIssuer(opts ...IssuerOption) (*Issuer, error) {
	cfg := issuerConfig{issuer: DefaultIssuerURL, tokenLifetime: DefaultTokenLifetime}
	for _, opt := range opts {
		opt(&cfg)
	}

	key := cfg.privateKey
	if key == nil {
		log.Logger.Info().Msg("generating RSA-2048 key pair for oauth token signing")
		generated, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("oauth: generate rsa key: %w", err)
		}
		key = generated
	}

	pub := &key.PublicKey
	keyID := cfg.keyID
	if keyID == "" {
		id, err := thumbprint(pub)
		if err != nil {
			return nil, fmt.Errorf("oauth: compute key thumbprint: %w", err)
		}
		keyID = id
	}

	issuer := &Issuer{
		issuer:        cfg.issuer,
		tokenLifetime: cfg.tokenLifetime,
		privateKey:    key,
		publicKey:     pub,
		keyID:         keyID,
	}
	log.Logger.Info().Str("issuer", issuer.issuer).Str("key_id", keyID).Msg("oauth token issuer initialized")
	return issuer, nil
}

// thumbprint derives a JWKS key ID from the SHA-256 hash of the
// public key's SubjectPublicKeyInfo PEM encoding, truncated to 16 hex
// characters.
func thumbprint(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", err
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	sum := sha256.Sum256(pemBytes)
	return fmt.Sprintf("%x", sum)[:16], nil
}

// IssueToken signs and returns an access token for request.
func (i *Issuer) IssueToken(request TokenRequest) (*TokenResponse, error) {
	if request.GrantType != SupportedGrantType {
		return nil, InvalidGrantError(fmt.Sprintf(
			"unsupported grant type: %s. supported: %s", request.GrantType, SupportedGrantType))
	}

	scope := request.Scope
	if scope == "" {
		scope = request.Resource
	}

	var audience string
	if scope != "" {
		resolved, err := resolveAudience(scope)
		if err != nil {
			return nil, err
		}
		audience = resolved
	} else {
		audience = DefaultAudience
		scope = DefaultScope
	}

	subject := request.ClientID
	if subject == "" {
		subject = defaultSubject
	}

	now := time.Now().UTC()
	exp := now.Add(i.tokenLifetime)

	claims := jwt.MapClaims{
		"aud":   audience,
		"iss":   i.issuer,
		"sub":   subject,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
		"scope": scope,
		"ver":   claimsVersion,
		"tid":   defaultTenantID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = i.keyID

	signed, err := token.SignedString(i.privateKey)
	if err != nil {
		return nil, fmt.Errorf("oauth: sign token: %w", err)
	}

	log.Logger.Info().Str("scope", scope).Str("sub", subject).Time("exp", exp).Msg("issued oauth token")

	return &TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(i.tokenLifetime.Seconds()),
		Scope:       scope,
	}, nil
}

// resolveAudience derives the intended audience from a requested
// scope, mirroring the Azure AD convention that a default scope has
// the shape "<audience>/.default".
//
// The trailing-suffix strip below removes 10 characters even though
// "/.default" is 9 characters long, reproducing a one-off slicing bug
// that ships unchanged from the reference authority: any scope not in
// defaultScopeAudiences that ends in "/.default" yields an audience
// missing the last character before "/.default".
func resolveAudience(scope string) (string, error) {
	if audience, ok := defaultScopeAudiences[scope]; ok {
		return audience, nil
	}
	if strings.HasSuffix(scope, "/.default") {
		return scope[:len(scope)-10], nil
	}
	if strings.HasPrefix(scope, "https://") || strings.HasPrefix(scope, "http://") {
		return scope, nil
	}
	return "", InvalidScopeError(fmt.Sprintf("invalid or unsupported scope: %s", scope))
}

// GetJWKS returns the public half of the issuer's signing key as a
// JSON Web Key Set.
func (i *Issuer) GetJWKS() JWKSResponse {
	n := base64.RawURLEncoding.EncodeToString(i.publicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(bigEndianExponent(i.publicKey.E))

	return JWKSResponse{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: i.keyID,
		N:   n,
		E:   e,
		Alg: "RS256",
	}}}
}

func bigEndianExponent(e int) []byte {
	// RSA public exponents are tiny (65537 by default); 4 bytes is
	// always enough and the loop below trims leading zeros.
	buf := []byte{byte(e >> 24), byte(e >> 16), byte(e >> 8), byte(e)}
	i := 0
	for i < len(buf)-1 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

// GetOpenIDConfiguration returns the OIDC discovery document, with
// endpoint URLs rooted at baseURL.
func (i *Issuer) GetOpenIDConfiguration(baseURL string) OpenIDConfiguration {
	return OpenIDConfiguration{
		Issuer:                           i.issuer,
		TokenEndpoint:                    baseURL + "/.localzure/oauth/token",
		JWKSURI:                          baseURL + "/.localzure/oauth/keys",
		ResponseTypesSupported:           []string{"token"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
	}
}

// PublicKey exposes the issuer's public key for validators
// constructed in-process (bypassing the JWKS HTTP round trip).
func (i *Issuer) PublicKey() *rsa.PublicKey { return i.publicKey }

// KeyID returns the kid embedded in tokens this issuer signs.
func (i *Issuer) KeyID() string { return i.keyID }
