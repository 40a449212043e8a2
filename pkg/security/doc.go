/*
Package security provides cryptographic services for LocalZure's Key Vault emulation.

This package implements AES-256-GCM authenticated encryption for the optional
at-rest write-through the Key Vault engine performs when it persists a secret's
value into the shared state backend. The engine's authoritative copy always
stays in an in-process, mutex-guarded map (see pkg/keyvault); this package
only shapes bytes for the secondary, inspectable copy in the state backend's
keyvault namespace.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                    Secrets Encryption                        │
	└─────────────────────────┬─────────────────────────────────── ┘
	                          │
	                          ▼
	                  ┌───────────────┐
	                  │ SecretsManager │
	                  └───────┬───────┘
	                          │
	                          ▼
	                    AES-256-GCM
	              Key Vault secret values

## Encryption Key

A SecretsManager is constructed one of three ways:

	NewSecretsManager(key)              // caller-supplied 32-byte key
	NewSecretsManagerFromPassword(pass) // SHA-256(pass), for a configured passphrase
	NewRandomSecretsManager()           // random key; what `localzure serve` uses

A process started with NewRandomSecretsManager loses the ability to decrypt
its write-through copies across a restart. The engine's authoritative
plaintext values live only in memory; a snapshot exports the state backend's
contents, so it carries the sealed write-through bytes, not the engine's
plaintext secrets.

# Secrets Encryption

## SecretsManager

The SecretsManager seals and opens secret values using AES-256 in
Galois/Counter Mode (GCM), providing authenticated encryption:

	Plaintext → AES-256-GCM → Ciphertext + Authentication Tag
	                ↑
	            32-byte key

Key features:
  - Authenticated encryption (integrity + confidentiality)
  - Random nonce per encryption (no nonce reuse)
  - Fast performance (~100MB/s on modern CPUs)

## Sealing Process

 1. Generate random 12-byte nonce
 2. Encrypt plaintext with AES-256-GCM
 3. Prepend nonce to ciphertext
 4. Store combined bytes: [nonce || ciphertext || tag]

This ensures each sealed value has a unique nonce, preventing cryptographic
attacks across repeated writes of the same secret name.

## Sealed Value Format

Values written through to the state backend's keyvault namespace look like:

	namespace "keyvault", key "my-vault/db-password" → [nonce || ciphertext || tag]

Opening reverses the process:

 1. Extract nonce (first 12 bytes)
 2. Extract ciphertext + tag (remaining bytes)
 3. Decrypt and verify authentication tag
 4. Return plaintext or error if tampered

# Usage Examples

## Creating a Secrets Manager

	import "github.com/oladejiayo/localzure-sub003/pkg/security"

	// Method 1: From raw key (32 bytes)
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	sm, err := security.NewSecretsManager(key)

	// Method 2: From a configured passphrase (key derived via SHA-256)
	sm, err = security.NewSecretsManagerFromPassword("my-vault-passphrase")

	// Method 3: Random key, process-lifetime only
	sm, err = security.NewRandomSecretsManager()

## Sealing and Opening Secret Values

	sealed, err := sm.SealSecretValue("super-secret-password")
	if err != nil {
		panic(err)
	}

	// Write sealed into the state backend's keyvault namespace...

	// Later, open it back up
	value, err := sm.OpenSecretValue(sealed)
	if err != nil {
		panic(err) // tampering detected, or wrong key
	}

# Design Patterns

## Authenticated Encryption

GCM mode provides both confidentiality and integrity:

	Sealing:  plaintext + key + nonce → ciphertext + tag
	Opening:  ciphertext + tag + key + nonce → plaintext (or error)

The authentication tag prevents tampering:
  - Modified ciphertext → opening fails
  - Wrong key → opening fails
  - Wrong nonce → opening fails

This matters for secrets: corruption or tampering in the write-through copy
must be detectable rather than silently returning garbage.

# Security Considerations

## Key Lifetime

  - A passphrase-derived key is stable across restarts of the same
    configuration; a random key is not.
  - The write-through copy is a convenience for inspection via the state
    backend's own Get/List paths, not the source of truth — losing the
    random key only affects that secondary copy.

## Threat Model

This package protects the write-through copy against:

	✓ Tampering (authenticated encryption detects modification)
	✓ Casual inspection of the raw state backend bytes

It does not protect against:

	✗ Compromise of the process's own memory (authoritative plaintext lives there)
	✗ Compromise of a configured passphrase

# See Also

  - pkg/keyvault for the engine that owns secret lifecycle and calls into
    this package for the optional write-through
  - pkg/state for the namespaced backend the sealed bytes are written into
*/
package security
