package oauth

import "fmt"

// Error is an OAuth 2.0 error response (RFC 6749 §5.2): Code is the
// wire-format "error" field (e.g. "invalid_grant"), Description is a
// human-readable detail.
type Error struct {
	Code        string
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func newError(code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// Is lets callers write errors.Is(err, oauth.ErrInvalidGrant) without
// matching on Description text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func InvalidGrantError(description string) *Error {
	if description == "" {
		description = "invalid or unsupported grant type"
	}
	return newError("invalid_grant", description)
}

func InvalidClientError(description string) *Error {
	if description == "" {
		description = "client authentication failed"
	}
	return newError("invalid_client", description)
}

func InvalidScopeError(description string) *Error {
	if description == "" {
		description = "invalid scope"
	}
	return newError("invalid_scope", description)
}

func InvalidTokenError(description string) *Error {
	if description == "" {
		description = "invalid token"
	}
	return newError("invalid_token", description)
}

// TokenExpiredError and InvalidSignatureError share the invalid_token
// wire code (per RFC 6749) but carry a more specific Description.
// Because Is compares Code only, errors.Is matches both against
// ErrInvalidToken; only the Description tells them apart.
func TokenExpiredError(description string) *Error {
	if description == "" {
		description = "token has expired"
	}
	return newError("invalid_token", description)
}

func InvalidSignatureError(description string) *Error {
	if description == "" {
		description = "invalid token signature"
	}
	return newError("invalid_token", description)
}

// Sentinels for errors.Is comparisons against the error Code.
var (
	ErrInvalidGrant  = InvalidGrantError("")
	ErrInvalidClient = InvalidClientError("")
	ErrInvalidScope  = InvalidScopeError("")
	ErrInvalidToken  = InvalidTokenError("")
)
