package oauth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/oladejiayo/localzure-sub003/pkg/log"
)

// TokenClaims is the decoded, validated set of claims from an access
// token issued by Issuer.
type TokenClaims struct {
	Audience string
	Issuer   string
	Subject  string
	Expiry   int64
	IssuedAt int64
	Scope    string
	TenantID string
}

// ValidationResult is what Validator.Validate always returns instead
// of an error: callers branch on Valid rather than unwrapping error
// chains, matching how a relying party would report "token rejected"
// to its own caller without ever panicking on a malformed token.
type ValidationResult struct {
	Valid  bool
	Claims *TokenClaims
	Error  string
}

// Validator verifies tokens issued by a LocalZure oauth Issuer: RS256
// signature, issuer, expiration and (if configured) audience.
type Validator struct {
	issuer     string
	audience   string
	publicKey  *rsa.PublicKey
	jwksURI    string
	httpClient *http.Client
}

// ValidatorOption customizes NewValidator.
type ValidatorOption func(*Validator)

// WithAudience requires tokens to carry this exact audience claim.
func WithAudience(audience string) ValidatorOption {
	return func(v *Validator) { v.audience = audience }
}

// WithJWKSURI fetches the signing key from a JWKS endpoint on every
// validation, rather than a fixed key supplied at construction.
func WithJWKSURI(uri string) ValidatorOption {
	return func(v *Validator) { v.jwksURI = uri }
}

// WithHTTPClient overrides the client used for JWKS fetches.
func WithHTTPClient(client *http.Client) ValidatorOption {
	return func(v *Validator) { v.httpClient = client }
}

// NewValidator builds a Validator for tokens from issuer. At least one
// of a fixed publicKey or WithJWKSURI must end up configured; passing
// neither is a configuration error since there would be no way to
// check a signature. When both are given, the fixed publicKey is used.
func NewValidator(issuer string, publicKey *rsa.PublicKey, opts ...ValidatorOption) (*Validator, error) {
	v := &Validator{issuer: issuer, publicKey: publicKey, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(v)
	}
	if v.publicKey == nil && v.jwksURI == "" {
		return nil, fmt.Errorf("oauth: validator needs either a public key or a jwks uri")
	}
	log.Logger.Info().Str("issuer", issuer).Msg("oauth token validator initialized")
	return v, nil
}

// Validate checks token's signature, issuer, expiry, and (if
// configured) audience. It never returns a Go error for a rejected
// token — callers get ValidationResult.Valid=false with a Description
// in Error instead, mirroring how the reference validator never lets
// a malformed-token exception escape its own boundary.
func (v *Validator) Validate(tokenString string) ValidationResult {
	claims, err := v.decode(tokenString)
	if err != nil {
		return ValidationResult{Valid: false, Error: err.Error()}
	}

	if claims.Issuer != v.issuer {
		err := InvalidTokenError(fmt.Sprintf("invalid issuer. expected: %s, got: %s", v.issuer, claims.Issuer))
		return ValidationResult{Valid: false, Error: err.Error()}
	}

	now := time.Now().UTC()
	expiry := time.Unix(claims.Expiry, 0).UTC()
	if !now.Before(expiry) {
		err := TokenExpiredError(fmt.Sprintf("token expired at %s. current time: %s",
			expiry.Format(time.RFC3339), now.Format(time.RFC3339)))
		return ValidationResult{Valid: false, Error: err.Error()}
	}

	if v.audience != "" && claims.Audience != v.audience {
		err := InvalidTokenError(fmt.Sprintf("invalid audience. expected: %s, got: %s", v.audience, claims.Audience))
		return ValidationResult{Valid: false, Error: err.Error()}
	}

	return ValidationResult{Valid: true, Claims: claims}
}

func (v *Validator) decode(tokenString string) (*TokenClaims, error) {
	key, err := v.signingKey(tokenString)
	if err != nil {
		return nil, InvalidSignatureError(err.Error())
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
			return nil, InvalidSignatureError(fmt.Sprintf("token signature verification failed: %v", err))
		}
		return nil, InvalidTokenError(fmt.Sprintf("token decode failed: %v", err))
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, InvalidTokenError("token claims have unexpected shape")
	}
	return claimsFromMap(mapClaims)
}

func claimsFromMap(m jwt.MapClaims) (*TokenClaims, error) {
	aud, ok := m["aud"].(string)
	if !ok {
		return nil, InvalidTokenError("missing aud claim")
	}
	iss, ok := m["iss"].(string)
	if !ok {
		return nil, InvalidTokenError("missing iss claim")
	}
	sub, ok := m["sub"].(string)
	if !ok {
		return nil, InvalidTokenError("missing sub claim")
	}
	exp, ok := m["exp"].(float64)
	if !ok {
		return nil, InvalidTokenError("missing exp claim")
	}
	iat, _ := m["iat"].(float64)
	scope, _ := m["scope"].(string)
	tid, _ := m["tid"].(string)

	return &TokenClaims{
		Audience: aud,
		Issuer:   iss,
		Subject:  sub,
		Expiry:   int64(exp),
		IssuedAt: int64(iat),
		Scope:    scope,
		TenantID: tid,
	}, nil
}

// signingKey returns the fixed public key if configured, otherwise
// fetches the JWKS document and picks the key whose kid matches the
// token's header.
func (v *Validator) signingKey(tokenString string) (*rsa.PublicKey, error) {
	if v.publicKey != nil {
		return v.publicKey, nil
	}

	kid, err := tokenKeyID(tokenString)
	if err != nil {
		return nil, err
	}

	resp, err := v.httpClient.Get(v.jwksURI)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	for _, key := range jwks.Keys {
		if key.Kid != kid {
			continue
		}
		return jwkToPublicKey(key)
	}
	return nil, fmt.Errorf("no jwks key matching kid %q", kid)
}

func tokenKeyID(tokenString string) (string, error) {
	parser := jwt.Parser{}
	token, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("parse token header: %w", err)
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return "", fmt.Errorf("token has no kid header")
	}
	return kid, nil
}

func jwkToPublicKey(key JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("decode jwk modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("decode jwk exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}
