package keyvault

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// secretNameFull matches names of 2 or more characters: a leading
// letter, an optional run of alphanumerics/hyphens, and a trailing
// alphanumeric (never a hyphen).
var secretNameFull = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*[A-Za-z0-9]$`)

// secretNameSingle matches the one shape secretNameFull's trailing-char
// anchor can never accept on its own: a bare single letter.
var secretNameSingle = regexp.MustCompile(`^[A-Za-z]$`)

const (
	maxSecretNameLength = 127
	// defaultRecoveryLevel is what Azure Key Vault reports for a
	// vault with soft-delete and purge protection both available.
	defaultRecoveryLevel = "Recoverable+Purgeable"
)

// validateSecretName enforces Azure Key Vault's secret naming rules:
// 1-127 characters, starts with a letter, contains only letters,
// digits and hyphens, and never ends with a hyphen.
//
// A name of exactly one character cannot satisfy the general regex
// (which requires a separate leading and trailing character); this is
// relaxed here for single-letter names, diverging from the Python
// original this engine is grounded on, which rejects single-character
// names outright.
func validateSecretName(name string) error {
	if name == "" {
		return InvalidSecretNameError(name, "secret name cannot be empty")
	}
	if len(name) > maxSecretNameLength {
		return InvalidSecretNameError(name, "secret name must be 127 characters or less")
	}
	if len(name) == 1 {
		if secretNameSingle.MatchString(name) {
			return nil
		}
		return InvalidSecretNameError(name, "secret name must start with a letter")
	}
	if !secretNameFull.MatchString(name) {
		return InvalidSecretNameError(name,
			"secret name must start with a letter, contain only alphanumeric characters and hyphens, and not end with a hyphen")
	}
	return nil
}

// SecretAttributes mirrors Azure Key Vault's SecretAttributes: the
// metadata that governs a secret version's validity window and
// recovery behavior, independent of its value.
type SecretAttributes struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	NotBefore     *time.Time `json:"nbf,omitempty"`
	Expires       *time.Time `json:"exp,omitempty"`
	Created       *time.Time `json:"created,omitempty"`
	Updated       *time.Time `json:"updated,omitempty"`
	RecoveryLevel string     `json:"recoveryLevel,omitempty"`
}

// NewSecretAttributes returns attributes with Azure's defaults:
// enabled, Recoverable+Purgeable recovery level, no validity window.
func NewSecretAttributes() SecretAttributes {
	return SecretAttributes{Enabled: boolPtr(true), RecoveryLevel: defaultRecoveryLevel}
}

// boolPtr returns a pointer to a new bool holding b, for building
// attribute literals where the enabled field must distinguish
// "absent" (nil) from "explicitly false".
func boolPtr(b bool) *bool {
	return &b
}

// isEnabled reports whether attrs marks a secret enabled, treating an
// absent Enabled field as enabled (Azure's own default).
func isEnabled(attrs SecretAttributes) bool {
	return attrs.Enabled == nil || *attrs.Enabled
}

// SecretBundle is a complete secret version: value plus metadata,
// matching Azure Key Vault's SecretBundle wire shape.
type SecretBundle struct {
	ID          string            `json:"id"`
	Value       string            `json:"value"`
	ContentType string            `json:"contentType,omitempty"`
	Attributes  SecretAttributes  `json:"attributes"`
	Tags        map[string]string `json:"tags,omitempty"`
	Kid         string            `json:"kid,omitempty"`
	Managed     bool              `json:"managed"`
}

// SecretItem is a secret identifier without its value, used in list
// responses.
type SecretItem struct {
	ID          string            `json:"id"`
	ContentType string            `json:"contentType,omitempty"`
	Attributes  SecretAttributes  `json:"attributes"`
	Tags        map[string]string `json:"tags,omitempty"`
	Managed     bool              `json:"managed"`
}

// SecretListResult is a paginated list of secret items.
type SecretListResult struct {
	Value    []SecretItem `json:"value"`
	NextLink string       `json:"nextLink,omitempty"`
}

// SetSecretRequest is the body of a PUT .../secrets/{name} call.
type SetSecretRequest struct {
	Value       string            `json:"value"`
	ContentType string            `json:"contentType,omitempty"`
	Attributes  *SecretAttributes `json:"attributes,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// UpdateSecretRequest is the body of a PATCH .../secrets/{name}/{version}
// call: it updates properties without creating a new version or
// changing the value.
type UpdateSecretRequest struct {
	ContentType *string           `json:"contentType,omitempty"`
	Attributes  *SecretAttributes `json:"attributes,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// secret is the engine's internal record of a name: every version
// ever created for it, which one is current, and soft-delete state.
type secret struct {
	name           string
	versions       map[string]*SecretBundle
	currentVersion string
	deleted        bool
	deletedDate    *time.Time
	recoveryID     string
}

// DeletedSecretBundle is a soft-deleted secret with recovery
// information, returned by delete/get-deleted/recover.
type DeletedSecretBundle struct {
	ID                 string            `json:"id"`
	RecoveryID         string            `json:"recoveryId"`
	ScheduledPurgeDate *time.Time        `json:"scheduledPurgeDate,omitempty"`
	DeletedDate        *time.Time        `json:"deletedDate,omitempty"`
	Value              string            `json:"value,omitempty"`
	ContentType        string            `json:"contentType,omitempty"`
	Attributes         *SecretAttributes `json:"attributes,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
}

// DeletedSecretItem is a soft-deleted secret identifier without its
// value, used in list-deleted responses.
type DeletedSecretItem struct {
	ID                 string            `json:"id"`
	RecoveryID         string            `json:"recoveryId"`
	ScheduledPurgeDate *time.Time        `json:"scheduledPurgeDate,omitempty"`
	DeletedDate        *time.Time        `json:"deletedDate,omitempty"`
	ContentType        string            `json:"contentType,omitempty"`
	Attributes         *SecretAttributes `json:"attributes,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
}

// DeletedSecretListResult is a paginated list of deleted secret items.
type DeletedSecretListResult struct {
	Value    []DeletedSecretItem `json:"value"`
	NextLink string              `json:"nextLink,omitempty"`
}

// secretID builds the full Azure-style secret identifier URL,
// optionally pinned to a version.
func secretID(vaultHost, vaultName, secretName, version string) string {
	base := fmt.Sprintf("https://%s.%s/secrets/%s", vaultName, vaultHost, secretName)
	if version == "" {
		return base
	}
	return base + "/" + version
}

// deletedSecretID builds the identifier Azure Key Vault uses for a
// soft-deleted secret: a distinct "deletedsecrets" path rather than a
// suffix on the active secret's path.
func deletedSecretID(vaultHost, vaultName, secretName string) string {
	return fmt.Sprintf("https://%s.%s/deletedsecrets/%s", vaultName, vaultHost, secretName)
}

// generateVersionID derives a version identifier from the secret's
// name, value and the current instant, formatted as a UUID. The
// identifier is unique per call (it folds in a timestamp) but not
// meant to be reversible or secret-bearing.
func generateVersionID(secretName, value string, now time.Time) string {
	content := fmt.Sprintf("%s:%s:%s", secretName, value, now.UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(content))

	var id uuid.UUID
	copy(id[:], sum[:16])
	return id.String()
}
