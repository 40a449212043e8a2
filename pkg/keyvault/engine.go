// Package keyvault emulates the subset of Azure Key Vault's secrets
// API that LocalZure targets: versioned secrets with soft-delete,
// recovery and purge, matching the reference engine's single
// process-wide lock and in-memory authoritative storage.
package keyvault

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oladejiayo/localzure-sub003/pkg/log"
	"github.com/oladejiayo/localzure-sub003/pkg/security"
	"github.com/oladejiayo/localzure-sub003/pkg/state"
)

const (
	minRetentionDays     = 7
	maxRetentionDays     = 90
	defaultRetentionDays = 90

	// writeThroughNamespace is the state backend namespace the engine
	// optionally mirrors sealed secret values into.
	writeThroughNamespace = "keyvault"

	// defaultVaultHost is the DNS suffix Azure Key Vault itself uses.
	defaultVaultHost = "vault.azure.net"
)

// Engine is the Key Vault secret engine: one process-wide, mutex
// guarded map of vault name to secret name to secret, exactly like
// the reference backend's single asyncio.Lock-guarded dict of dicts.
type Engine struct {
	mu                sync.Mutex
	vaults            map[string]map[string]*secret
	deletedSecrets    map[string]map[string]*secret
	softDeleteEnabled bool
	retentionDays     int

	// writeThrough, when non-nil, seals and mirrors each SecretBundle
	// value into the state backend's keyvault namespace on every
	// set_secret call, for out-of-band inspection. The engine reads it
	// back only through InspectWriteThrough; every secret operation is
	// served from the in-memory maps above, which remain the only
	// source of truth.
	writeThrough *security.SecretsManager
	backend      state.Backend
	vaultHost    string
}

// Option customizes NewEngine.
type Option func(*Engine)

// WithSoftDelete toggles soft-delete (default true). When disabled,
// DeleteSecret removes the secret outright instead of moving it to
// the deleted-secrets namespace.
func WithSoftDelete(enabled bool) Option {
	return func(e *Engine) { e.softDeleteEnabled = enabled }
}

// WithRetentionDays overrides the default retention period (clamped
// to [7, 90] as Azure Key Vault requires).
func WithRetentionDays(days int) Option {
	return func(e *Engine) { e.retentionDays = clampRetention(days) }
}

// WithWriteThrough enables the optional at-rest encrypted mirror of
// secret values into backend's keyvault namespace.
func WithWriteThrough(backend state.Backend, sm *security.SecretsManager) Option {
	return func(e *Engine) {
		e.backend = backend
		e.writeThrough = sm
	}
}

// WithVaultHost overrides the DNS suffix used to build secret and
// deleted-secret identifier URLs (default "vault.azure.net").
func WithVaultHost(host string) Option {
	return func(e *Engine) { e.vaultHost = host }
}

func clampRetention(days int) int {
	if days < minRetentionDays {
		return minRetentionDays
	}
	if days > maxRetentionDays {
		return maxRetentionDays
	}
	return days
}

// NewEngine constructs an Engine with soft-delete enabled and the
// default 90-day retention period unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		vaults:            make(map[string]map[string]*secret),
		deletedSecrets:    make(map[string]map[string]*secret),
		softDeleteEnabled: true,
		retentionDays:     defaultRetentionDays,
		vaultHost:         defaultVaultHost,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ensureVault(vaultName string) {
	if _, ok := e.vaults[vaultName]; !ok {
		e.vaults[vaultName] = make(map[string]*secret)
	}
	if _, ok := e.deletedSecrets[vaultName]; !ok {
		e.deletedSecrets[vaultName] = make(map[string]*secret)
	}
}

// checkValidity returns SecretDisabledError if bundle is disabled, or
// outside its not-before/expires window.
func checkValidity(secretName string, bundle *SecretBundle, now time.Time) error {
	attrs := bundle.Attributes
	if !isEnabled(attrs) {
		return SecretDisabledError(secretName)
	}
	if attrs.NotBefore != nil && now.Before(*attrs.NotBefore) {
		return SecretDisabledError(secretName)
	}
	if attrs.Expires != nil && now.After(*attrs.Expires) {
		return SecretDisabledError(secretName)
	}
	return nil
}

// SetSecret creates a new version of secretName in vaultName,
// becoming its current version.
func (e *Engine) SetSecret(ctx context.Context, vaultName, secretName string, req SetSecretRequest) (*SecretBundle, error) {
	if err := validateSecretName(secretName); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ensureVault(vaultName)

	now := time.Now().UTC()
	versionID := generateVersionID(secretName, req.Value, now)

	attributes := NewSecretAttributes()
	if req.Attributes != nil {
		attributes = *req.Attributes
		if attributes.Enabled == nil {
			attributes.Enabled = boolPtr(true)
		}
	}
	attributes.Created = &now
	attributes.Updated = &now
	if attributes.RecoveryLevel == "" {
		attributes.RecoveryLevel = defaultRecoveryLevel
	}

	bundle := &SecretBundle{
		ID:          secretID(e.vaultHost, vaultName, secretName, versionID),
		Value:       req.Value,
		ContentType: req.ContentType,
		Attributes:  attributes,
		Tags:        req.Tags,
	}

	vault := e.vaults[vaultName]
	if existing, ok := vault[secretName]; ok {
		existing.versions[versionID] = bundle
		existing.currentVersion = versionID
	} else {
		vault[secretName] = &secret{
			name:           secretName,
			versions:       map[string]*SecretBundle{versionID: bundle},
			currentVersion: versionID,
		}
	}

	e.mirrorWriteThrough(ctx, vaultName, secretName, bundle.Value)

	log.WithVault(vaultName).Info().Str("secret", secretName).Str("version", versionID).Msg("secret version created")
	return bundle, nil
}

// mirrorWriteThrough best-effort seals and writes value into the
// state backend; a failure here is logged but never fails the caller's
// SetSecret, since the engine's in-memory map is already authoritative.
func (e *Engine) mirrorWriteThrough(ctx context.Context, vaultName, secretName, value string) {
	if e.writeThrough == nil || e.backend == nil {
		return
	}
	sealed, err := e.writeThrough.SealSecretValue(value)
	if err != nil {
		log.Logger.Warn().Err(err).Str("vault", vaultName).Str("secret", secretName).Msg("keyvault write-through seal failed")
		return
	}
	key := vaultName + "/" + secretName
	if err := e.backend.Set(ctx, writeThroughNamespace, key, sealed, 0); err != nil {
		log.Logger.Warn().Err(err).Str("vault", vaultName).Str("secret", secretName).Msg("keyvault write-through set failed")
	}
}

// InspectWriteThrough reads back and decrypts the sealed copy of
// secretName mirrored into the state backend, for out-of-band
// debugging of the write-through path independent of the engine's own
// in-memory maps. found is false if write-through is disabled or no
// mirrored value exists yet.
func (e *Engine) InspectWriteThrough(ctx context.Context, vaultName, secretName string) (value string, found bool, err error) {
	if e.writeThrough == nil || e.backend == nil {
		return "", false, nil
	}

	key := vaultName + "/" + secretName
	raw, found, err := e.backend.Get(ctx, writeThroughNamespace, key)
	if err != nil || !found {
		return "", false, err
	}
	sealed, ok := raw.([]byte)
	if !ok {
		return "", false, fmt.Errorf("write-through value for %s/%s has unexpected type %T", vaultName, secretName, raw)
	}
	value, err = e.writeThrough.OpenSecretValue(sealed)
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// GetSecret returns the named secret's current version, or a specific
// version if version is non-empty.
func (e *Engine) GetSecret(vaultName, secretName, version string) (*SecretBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vault, ok := e.vaults[vaultName]
	if !ok {
		return nil, VaultNotFoundError(vaultName)
	}
	s, ok := vault[secretName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}
	if s.deleted {
		return nil, SecretNotFoundError(secretName, "")
	}

	var bundle *SecretBundle
	if version != "" {
		bundle, ok = s.versions[version]
		if !ok {
			return nil, SecretNotFoundError(secretName, version)
		}
	} else {
		if s.currentVersion == "" {
			return nil, SecretNotFoundError(secretName, "")
		}
		bundle = s.versions[s.currentVersion]
	}

	if err := checkValidity(secretName, bundle, time.Now().UTC()); err != nil {
		return nil, err
	}
	return bundle, nil
}

// ListSecrets returns identifiers (no values) for every non-deleted
// secret in vaultName that has a current version, newest-unspecified
// order (the current version only, one item per name).
func (e *Engine) ListSecrets(vaultName string, maxResults int) (*SecretListResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vault, ok := e.vaults[vaultName]
	if !ok {
		return nil, VaultNotFoundError(vaultName)
	}

	names := make([]string, 0, len(vault))
	for name := range vault {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]SecretItem, 0, len(names))
	for _, name := range names {
		s := vault[name]
		if s.deleted || s.currentVersion == "" {
			continue
		}
		bundle := s.versions[s.currentVersion]
		items = append(items, SecretItem{
			ID:          secretID(e.vaultHost, vaultName, name, ""),
			ContentType: bundle.ContentType,
			Attributes:  bundle.Attributes,
			Tags:        bundle.Tags,
			Managed:     bundle.Managed,
		})
	}

	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	return &SecretListResult{Value: items}, nil
}

// ListSecretVersions returns every version of secretName, newest
// (by Attributes.Created) first.
func (e *Engine) ListSecretVersions(vaultName, secretName string, maxResults int) (*SecretListResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vault, ok := e.vaults[vaultName]
	if !ok {
		return nil, VaultNotFoundError(vaultName)
	}
	s, ok := vault[secretName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}

	type versioned struct {
		id     string
		bundle *SecretBundle
	}
	all := make([]versioned, 0, len(s.versions))
	for id, bundle := range s.versions {
		all = append(all, versioned{id, bundle})
	}
	sort.Slice(all, func(i, j int) bool {
		ti, tj := createdTime(all[i].bundle), createdTime(all[j].bundle)
		return ti.After(tj)
	})

	items := make([]SecretItem, 0, len(all))
	for _, v := range all {
		items = append(items, SecretItem{
			ID:          secretID(e.vaultHost, vaultName, secretName, v.id),
			ContentType: v.bundle.ContentType,
			Attributes:  v.bundle.Attributes,
			Tags:        v.bundle.Tags,
			Managed:     v.bundle.Managed,
		})
	}

	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	return &SecretListResult{Value: items}, nil
}

func createdTime(b *SecretBundle) time.Time {
	if b.Attributes.Created != nil {
		return *b.Attributes.Created
	}
	return time.Time{}
}

// DeleteSecret deletes secretName. With soft-delete enabled (the
// default) it moves the secret to the deleted-secrets namespace and
// returns recovery information; otherwise it removes the secret
// outright.
func (e *Engine) DeleteSecret(vaultName, secretName string) (*DeletedSecretBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vault, ok := e.vaults[vaultName]
	if !ok {
		return nil, VaultNotFoundError(vaultName)
	}
	s, ok := vault[secretName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}
	if s.deleted {
		return nil, SecretNotFoundError(secretName, "")
	}

	now := time.Now().UTC()
	bundle := s.versions[s.currentVersion]

	if !e.softDeleteEnabled {
		delete(vault, secretName)
		return &DeletedSecretBundle{
			ID:          secretID(e.vaultHost, vaultName, secretName, ""),
			RecoveryID:  "",
			DeletedDate: &now,
			Value:       bundle.Value,
			ContentType: bundle.ContentType,
			Attributes:  &bundle.Attributes,
			Tags:        bundle.Tags,
		}, nil
	}

	s.deleted = true
	s.deletedDate = &now
	s.recoveryID = deletedSecretID(e.vaultHost, vaultName, secretName)
	e.deletedSecrets[vaultName][secretName] = s
	delete(vault, secretName)

	purgeDate := now.AddDate(0, 0, e.retentionDays)
	log.WithVault(vaultName).Info().Str("secret", secretName).Msg("secret soft-deleted")

	return &DeletedSecretBundle{
		ID:                 deletedSecretID(e.vaultHost, vaultName, secretName),
		RecoveryID:         s.recoveryID,
		ScheduledPurgeDate: &purgeDate,
		DeletedDate:        &now,
		Value:              bundle.Value,
		ContentType:        bundle.ContentType,
		Attributes:         &bundle.Attributes,
		Tags:               bundle.Tags,
	}, nil
}

// UpdateSecretProperties updates content type, attributes and tags on
// a specific existing version without changing its value.
func (e *Engine) UpdateSecretProperties(vaultName, secretName, version string, req UpdateSecretRequest) (*SecretBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vault, ok := e.vaults[vaultName]
	if !ok {
		return nil, VaultNotFoundError(vaultName)
	}
	s, ok := vault[secretName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}
	bundle, ok := s.versions[version]
	if !ok {
		return nil, SecretNotFoundError(secretName, version)
	}

	if req.ContentType != nil {
		bundle.ContentType = *req.ContentType
	}
	if req.Attributes != nil {
		if req.Attributes.Enabled != nil {
			bundle.Attributes.Enabled = req.Attributes.Enabled
		}
		if req.Attributes.NotBefore != nil {
			bundle.Attributes.NotBefore = req.Attributes.NotBefore
		}
		if req.Attributes.Expires != nil {
			bundle.Attributes.Expires = req.Attributes.Expires
		}
	}
	if req.Tags != nil {
		bundle.Tags = req.Tags
	}

	now := time.Now().UTC()
	bundle.Attributes.Updated = &now
	return bundle, nil
}

// GetDeletedSecret returns recovery information for a soft-deleted
// secret.
func (e *Engine) GetDeletedSecret(vaultName, secretName string) (*DeletedSecretBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deletedVault, ok := e.deletedSecrets[vaultName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}
	s, ok := deletedVault[secretName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}

	bundle := s.versions[s.currentVersion]
	var purgeDate *time.Time
	if s.deletedDate != nil {
		t := s.deletedDate.AddDate(0, 0, e.retentionDays)
		purgeDate = &t
	}

	return &DeletedSecretBundle{
		ID:                 deletedSecretID(e.vaultHost, vaultName, secretName),
		RecoveryID:         s.recoveryID,
		ScheduledPurgeDate: purgeDate,
		DeletedDate:        s.deletedDate,
		Value:              bundle.Value,
		ContentType:        bundle.ContentType,
		Attributes:         &bundle.Attributes,
		Tags:               bundle.Tags,
	}, nil
}

// ListDeletedSecrets returns identifiers for every soft-deleted secret
// in vaultName.
func (e *Engine) ListDeletedSecrets(vaultName string, maxResults int) (*DeletedSecretListResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deletedVault, ok := e.deletedSecrets[vaultName]
	if !ok {
		return nil, VaultNotFoundError(vaultName)
	}

	names := make([]string, 0, len(deletedVault))
	for name := range deletedVault {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]DeletedSecretItem, 0, len(names))
	for _, name := range names {
		s := deletedVault[name]
		bundle := s.versions[s.currentVersion]

		var purgeDate *time.Time
		if s.deletedDate != nil {
			t := s.deletedDate.AddDate(0, 0, e.retentionDays)
			purgeDate = &t
		}

		items = append(items, DeletedSecretItem{
			ID:                 deletedSecretID(e.vaultHost, vaultName, name),
			RecoveryID:         s.recoveryID,
			ScheduledPurgeDate: purgeDate,
			DeletedDate:        s.deletedDate,
			ContentType:        bundle.ContentType,
			Attributes:         &bundle.Attributes,
			Tags:               bundle.Tags,
		})
	}

	if maxResults > 0 && len(items) > maxResults {
		items = items[:maxResults]
	}
	return &DeletedSecretListResult{Value: items}, nil
}

// RecoverDeletedSecret restores a soft-deleted secret to active use,
// returning its current version.
func (e *Engine) RecoverDeletedSecret(vaultName, secretName string) (*SecretBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	deletedVault, ok := e.deletedSecrets[vaultName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}
	s, ok := deletedVault[secretName]
	if !ok {
		return nil, SecretNotFoundError(secretName, "")
	}

	s.deleted = false
	s.deletedDate = nil
	s.recoveryID = ""

	e.ensureVault(vaultName)
	e.vaults[vaultName][secretName] = s
	delete(deletedVault, secretName)

	log.WithVault(vaultName).Info().Str("secret", secretName).Msg("secret recovered")
	return s.versions[s.currentVersion], nil
}

// PurgeDeletedSecret permanently removes a soft-deleted secret. The
// scheduled purge date is informational only and is not enforced
// here, matching the reference engine.
func (e *Engine) PurgeDeletedSecret(vaultName, secretName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deletedVault, ok := e.deletedSecrets[vaultName]
	if !ok {
		return SecretNotFoundError(secretName, "")
	}
	if _, ok := deletedVault[secretName]; !ok {
		return SecretNotFoundError(secretName, "")
	}

	delete(deletedVault, secretName)
	log.WithVault(vaultName).Info().Str("secret", secretName).Msg("secret purged")
	return nil
}

// Health reports engine-wide counters, mirroring the reference
// backend's health() coroutine.
type Health struct {
	Vaults            int  `json:"vaults"`
	Secrets           int  `json:"secrets"`
	DeletedSecrets    int  `json:"deleted_secrets"`
	SoftDeleteEnabled bool `json:"soft_delete_enabled"`
	RetentionDays     int  `json:"retention_days"`
}

// Health returns engine-wide secret/vault counters.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()

	secrets := 0
	for _, v := range e.vaults {
		secrets += len(v)
	}
	deleted := 0
	for _, v := range e.deletedSecrets {
		deleted += len(v)
	}

	return Health{
		Vaults:            len(e.vaults),
		Secrets:           secrets,
		DeletedSecrets:    deleted,
		SoftDeleteEnabled: e.softDeleteEnabled,
		RetentionDays:     e.retentionDays,
	}
}

// Reset clears all engine state; used by tests.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vaults = make(map[string]map[string]*secret)
	e.deletedSecrets = make(map[string]map[string]*secret)
}
