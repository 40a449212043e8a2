package keyvault

import "fmt"

// Error is a Key Vault error, shaped to match Azure Key Vault's own
// {"error":{"code","message"}} response body: Code is a stable Azure
// error code, Message is a human-readable detail.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets callers write errors.Is(err, keyvault.ErrSecretNotFound)
// without matching on Message text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// SecretNotFoundError is raised when a secret or a specific version of
// it does not exist in the vault.
func SecretNotFoundError(secretName, version string) *Error {
	message := fmt.Sprintf("Secret %q not found", secretName)
	if version != "" {
		message = fmt.Sprintf("Secret %q version %q not found", secretName, version)
	}
	return newError("SecretNotFound", message)
}

// SecretDisabledError is raised when a secret exists but is disabled,
// or is outside its not-before/expires validity window.
func SecretDisabledError(secretName string) *Error {
	return newError("SecretDisabled", fmt.Sprintf("Secret %q is disabled", secretName))
}

// SecretAlreadyExistsError is raised when a caller tries to create a
// secret that already exists where creation (not update) was required.
func SecretAlreadyExistsError(secretName string) *Error {
	return newError("Conflict", fmt.Sprintf("Secret %q already exists", secretName))
}

// InvalidSecretNameError is raised when a secret name fails the Azure
// naming rules (see validateSecretName).
func InvalidSecretNameError(secretName, reason string) *Error {
	return newError("BadParameter", fmt.Sprintf("Invalid secret name %q: %s", secretName, reason))
}

// VaultNotFoundError is raised when the named vault has never been
// used (no secret has ever been set in it).
func VaultNotFoundError(vaultName string) *Error {
	return newError("VaultNotFound", fmt.Sprintf("Vault %q not found", vaultName))
}

// ForbiddenError is raised for access-control failures. LocalZure has
// no authorization model of its own, but the type exists so a facade
// can reject requests carrying a rejected OAuth token with the same
// error shape Azure Key Vault would use.
func ForbiddenError(message string) *Error {
	if message == "" {
		message = "Access forbidden"
	}
	return newError("Forbidden", message)
}

// Sentinels for errors.Is comparisons against the error Code, unbound
// to any particular secret/vault name.
var (
	ErrSecretNotFound      = SecretNotFoundError("", "")
	ErrSecretDisabled      = SecretDisabledError("")
	ErrSecretAlreadyExists = SecretAlreadyExistsError("")
	ErrInvalidSecretName   = InvalidSecretNameError("", "")
	ErrVaultNotFound       = VaultNotFoundError("")
	ErrForbidden           = ForbiddenError("")
)
