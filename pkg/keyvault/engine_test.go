package keyvault

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSetAndGetSecretRoundTrip(t *testing.T) {
	e := NewEngine()

	bundle, err := e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "hunter2"})
	if err != nil {
		t.Fatalf("SetSecret() error = %v", err)
	}
	if bundle.Value != "hunter2" {
		t.Errorf("SetSecret() Value = %q, want hunter2", bundle.Value)
	}
	if !isEnabled(bundle.Attributes) {
		t.Error("SetSecret() Attributes.Enabled = false, want true")
	}
	if bundle.Attributes.RecoveryLevel != defaultRecoveryLevel {
		t.Errorf("SetSecret() RecoveryLevel = %q, want %q", bundle.Attributes.RecoveryLevel, defaultRecoveryLevel)
	}

	got, err := e.GetSecret("my-vault", "db-password", "")
	if err != nil {
		t.Fatalf("GetSecret() error = %v", err)
	}
	if got.Value != "hunter2" {
		t.Errorf("GetSecret() Value = %q, want hunter2", got.Value)
	}
}

func TestSetSecretRejectsInvalidName(t *testing.T) {
	e := NewEngine()

	_, err := e.SetSecret(context.Background(), "my-vault", "-bad-name", SetSecretRequest{Value: "x"})
	if err == nil {
		t.Fatal("SetSecret() error = nil, want invalid name error")
	}
	var kvErr *Error
	if !errors.As(err, &kvErr) || kvErr.Code != "BadParameter" {
		t.Errorf("SetSecret() error = %v, want BadParameter", err)
	}
}

func TestSetSecretAcceptsSingleCharacterName(t *testing.T) {
	e := NewEngine()

	if _, err := e.SetSecret(context.Background(), "my-vault", "a", SetSecretRequest{Value: "x"}); err != nil {
		t.Fatalf("SetSecret() error = %v, want single-letter name accepted", err)
	}
}

func TestGetSecretUnknownVaultReturnsVaultNotFound(t *testing.T) {
	e := NewEngine()

	_, err := e.GetSecret("nonexistent", "db-password", "")
	if !errors.Is(err, ErrVaultNotFound) {
		t.Errorf("GetSecret() error = %v, want VaultNotFound", err)
	}
}

func TestGetSecretUnknownNameReturnsSecretNotFound(t *testing.T) {
	e := NewEngine()
	_, _ = e.SetSecret(context.Background(), "my-vault", "known", SetSecretRequest{Value: "x"})

	_, err := e.GetSecret("my-vault", "unknown", "")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("GetSecret() error = %v, want SecretNotFound", err)
	}
}

func TestSetSecretCreatesNewVersionOnUpdate(t *testing.T) {
	e := NewEngine()

	first, _ := e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "v1"})
	time.Sleep(time.Millisecond)
	second, _ := e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "v2"})

	if first.ID == second.ID {
		t.Error("SetSecret() second call produced the same version ID as the first")
	}

	result, err := e.ListSecretVersions("my-vault", "db-password", 0)
	if err != nil {
		t.Fatalf("ListSecretVersions() error = %v", err)
	}
	if len(result.Value) != 2 {
		t.Fatalf("ListSecretVersions() = %d items, want 2", len(result.Value))
	}

	current, _ := e.GetSecret("my-vault", "db-password", "")
	if current.Value != "v2" {
		t.Errorf("GetSecret() current value = %q, want v2", current.Value)
	}
}

func TestGetSecretDisabledReturnsSecretDisabled(t *testing.T) {
	e := NewEngine()
	attrs := NewSecretAttributes()
	attrs.Enabled = boolPtr(false)

	_, err := e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "x", Attributes: &attrs})
	if err != nil {
		t.Fatalf("SetSecret() error = %v", err)
	}

	_, err = e.GetSecret("my-vault", "db-password", "")
	if !errors.Is(err, ErrSecretDisabled) {
		t.Errorf("GetSecret() error = %v, want SecretDisabled", err)
	}
}

func TestGetSecretExpiredReturnsSecretDisabled(t *testing.T) {
	e := NewEngine()
	past := time.Now().UTC().Add(-time.Hour)
	attrs := NewSecretAttributes()
	attrs.Expires = &past

	_, _ = e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "x", Attributes: &attrs})

	_, err := e.GetSecret("my-vault", "db-password", "")
	if !errors.Is(err, ErrSecretDisabled) {
		t.Errorf("GetSecret() error = %v, want SecretDisabled", err)
	}
}

func TestListSecretsSkipsDeleted(t *testing.T) {
	e := NewEngine()
	_, _ = e.SetSecret(context.Background(), "my-vault", "keep-me", SetSecretRequest{Value: "x"})
	_, _ = e.SetSecret(context.Background(), "my-vault", "delete-me", SetSecretRequest{Value: "y"})

	if _, err := e.DeleteSecret("my-vault", "delete-me"); err != nil {
		t.Fatalf("DeleteSecret() error = %v", err)
	}

	result, err := e.ListSecrets("my-vault", 0)
	if err != nil {
		t.Fatalf("ListSecrets() error = %v", err)
	}
	if len(result.Value) != 1 {
		t.Fatalf("ListSecrets() = %d items, want 1", len(result.Value))
	}
}

func TestSoftDeleteRecoverPurgeLifecycle(t *testing.T) {
	e := NewEngine()
	_, _ = e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "hunter2"})

	deleted, err := e.DeleteSecret("my-vault", "db-password")
	if err != nil {
		t.Fatalf("DeleteSecret() error = %v", err)
	}
	if deleted.RecoveryID == "" {
		t.Error("DeleteSecret() RecoveryID is empty, want populated for soft-delete")
	}
	wantRecoveryID := "https://my-vault.vault.azure.net/deletedsecrets/db-password"
	if deleted.RecoveryID != wantRecoveryID {
		t.Errorf("DeleteSecret() RecoveryID = %q, want %q", deleted.RecoveryID, wantRecoveryID)
	}
	if deleted.ID != wantRecoveryID {
		t.Errorf("DeleteSecret() ID = %q, want %q", deleted.ID, wantRecoveryID)
	}

	// Active get now fails.
	if _, err := e.GetSecret("my-vault", "db-password", ""); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("GetSecret() after delete = %v, want SecretNotFound", err)
	}

	got, err := e.GetDeletedSecret("my-vault", "db-password")
	if err != nil {
		t.Fatalf("GetDeletedSecret() error = %v", err)
	}
	if got.Value != "hunter2" {
		t.Errorf("GetDeletedSecret() Value = %q, want hunter2", got.Value)
	}

	recovered, err := e.RecoverDeletedSecret("my-vault", "db-password")
	if err != nil {
		t.Fatalf("RecoverDeletedSecret() error = %v", err)
	}
	if recovered.Value != "hunter2" {
		t.Errorf("RecoverDeletedSecret() Value = %q, want hunter2", recovered.Value)
	}

	if _, err := e.GetSecret("my-vault", "db-password", ""); err != nil {
		t.Errorf("GetSecret() after recover error = %v, want nil", err)
	}

	if _, err := e.DeleteSecret("my-vault", "db-password"); err != nil {
		t.Fatalf("DeleteSecret() (second) error = %v", err)
	}
	if err := e.PurgeDeletedSecret("my-vault", "db-password"); err != nil {
		t.Fatalf("PurgeDeletedSecret() error = %v", err)
	}
	if _, err := e.GetDeletedSecret("my-vault", "db-password"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("GetDeletedSecret() after purge = %v, want SecretNotFound", err)
	}
}

func TestHardDeleteWhenSoftDeleteDisabled(t *testing.T) {
	e := NewEngine(WithSoftDelete(false))
	_, _ = e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "hunter2"})

	deleted, err := e.DeleteSecret("my-vault", "db-password")
	if err != nil {
		t.Fatalf("DeleteSecret() error = %v", err)
	}
	if deleted.RecoveryID != "" {
		t.Errorf("DeleteSecret() RecoveryID = %q, want empty for hard delete", deleted.RecoveryID)
	}

	if _, err := e.GetDeletedSecret("my-vault", "db-password"); !errors.Is(err, ErrSecretNotFound) {
		t.Errorf("GetDeletedSecret() after hard delete = %v, want SecretNotFound", err)
	}
}

func TestUpdateSecretPropertiesDoesNotChangeValue(t *testing.T) {
	e := NewEngine()
	bundle, _ := e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "hunter2"})

	versionID := bundle.ID[len(bundle.ID)-36:]
	newContentType := "text/plain"
	updated, err := e.UpdateSecretProperties("my-vault", "db-password", versionID, UpdateSecretRequest{
		ContentType: &newContentType,
	})
	if err != nil {
		t.Fatalf("UpdateSecretProperties() error = %v", err)
	}
	if updated.Value != "hunter2" {
		t.Errorf("UpdateSecretProperties() Value = %q, want unchanged hunter2", updated.Value)
	}
	if updated.ContentType != "text/plain" {
		t.Errorf("UpdateSecretProperties() ContentType = %q, want text/plain", updated.ContentType)
	}
}

func TestUpdateSecretPropertiesOmittedEnabledLeavesItUnchanged(t *testing.T) {
	e := NewEngine()
	bundle, _ := e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{Value: "hunter2"})
	versionID := bundle.ID[len(bundle.ID)-36:]

	expires := time.Now().Add(time.Hour)
	updated, err := e.UpdateSecretProperties("my-vault", "db-password", versionID, UpdateSecretRequest{
		Attributes: &SecretAttributes{Expires: &expires},
	})
	if err != nil {
		t.Fatalf("UpdateSecretProperties() error = %v", err)
	}
	if !isEnabled(updated.Attributes) {
		t.Error("UpdateSecretProperties() with attributes but no enabled field disabled the secret, want unchanged (enabled)")
	}
}

func TestSetSecretAttributesWithoutEnabledDefaultsTrue(t *testing.T) {
	e := NewEngine()
	expires := time.Now().Add(time.Hour)
	bundle, err := e.SetSecret(context.Background(), "my-vault", "db-password", SetSecretRequest{
		Value:      "hunter2",
		Attributes: &SecretAttributes{Expires: &expires},
	})
	if err != nil {
		t.Fatalf("SetSecret() error = %v", err)
	}
	if !isEnabled(bundle.Attributes) {
		t.Error("SetSecret() with attributes omitting enabled disabled the secret, want default true")
	}
}

func TestRetentionDaysClampedToRange(t *testing.T) {
	e := NewEngine(WithRetentionDays(1))
	if e.Health().RetentionDays != minRetentionDays {
		t.Errorf("RetentionDays = %d, want clamped to %d", e.Health().RetentionDays, minRetentionDays)
	}

	e2 := NewEngine(WithRetentionDays(365))
	if e2.Health().RetentionDays != maxRetentionDays {
		t.Errorf("RetentionDays = %d, want clamped to %d", e2.Health().RetentionDays, maxRetentionDays)
	}
}

func TestHealthCounters(t *testing.T) {
	e := NewEngine()
	_, _ = e.SetSecret(context.Background(), "vault-a", "s1", SetSecretRequest{Value: "x"})
	_, _ = e.SetSecret(context.Background(), "vault-a", "s2", SetSecretRequest{Value: "y"})
	_, _ = e.SetSecret(context.Background(), "vault-b", "s3", SetSecretRequest{Value: "z"})
	_, _ = e.DeleteSecret("vault-a", "s1")

	h := e.Health()
	if h.Vaults != 2 {
		t.Errorf("Health().Vaults = %d, want 2", h.Vaults)
	}
	// A soft-deleted secret leaves the active vault map and is counted
	// only under deletedSecrets.
	if h.Secrets != 2 {
		t.Errorf("Health().Secrets = %d, want 2", h.Secrets)
	}
	if h.DeletedSecrets != 1 {
		t.Errorf("Health().DeletedSecrets = %d, want 1", h.DeletedSecrets)
	}
}
