/*
Package log provides structured logging for LocalZure using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

LocalZure's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("httpapi")                 │          │
	│  │  - WithVault("my-vault")                    │          │
	│  │  - WithNamespace("keyvault")                │          │
	│  │  - WithClientID("client-1")                 │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "keyvault",                 │          │
	│  │    "time": "2026-07-29T10:30:00Z",          │          │
	│  │    "message": "secret version created"      │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-29T10:30:00Z INF secret version created component=keyvault │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all LocalZure packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information (e.g. individual state backend gets)
  - Info: General informational messages (token issued, secret set, snapshot created)
  - Warn: Warning messages (soft-delete retention clamped, snapshot backup failed)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Logger Helpers:
  - WithComponent: Add component name to all logs
  - WithVault: Add vault name context, for Key Vault engine operations
  - WithNamespace: Add state backend namespace context
  - WithClientID: Add OAuth client_id context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "state get: namespace=keyvault key=db-password found=true"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "secret version created: vault=my-vault name=db-password"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "snapshot restore: pre-restore backup failed, continuing anyway"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed backend writes, signature verification failures
  - Performance: Should be rare in steady state
  - Example: "redis state backend: connection refused after 3 retries"

Fatal Level:
  - Purpose: Unrecoverable startup failures
  - Usage: Config load failure, listener bind failure
  - Effect: Calls os.Exit(1) after logging

# Usage

Basic Logging:

	log.Logger.Info().
		Str("vault", "my-vault").
		Str("secret", "db-password").
		Msg("secret version created")

	log.Logger.Error().
		Err(err).
		Str("namespace", "keyvault").
		Msg("state backend write failed")

Component Loggers:

	// Create component-specific logger
	kvLog := log.WithComponent("keyvault")
	kvLog.Info().Msg("engine initialized")
	kvLog.Debug().Str("secret", "db-password").Msg("checking secret validity")

	// Multiple context fields
	opLog := log.WithComponent("httpapi").
		With().Str("vault", "my-vault").
		Str("method", "PUT").Logger()
	opLog.Info().Msg("handling request")
	opLog.Error().Err(err).Msg("request failed")

Context Logger Helpers:

	// Vault-scoped logs
	vaultLog := log.WithVault("my-vault")
	vaultLog.Info().Msg("secret soft-deleted")

	// Namespace-scoped logs
	nsLog := log.WithNamespace("oauth")
	nsLog.Debug().Msg("listing keys")

	// Client-scoped logs
	clientLog := log.WithClientID("client-1")
	clientLog.Info().Msg("token issued")

Complete Example:

	package main

	import (
		"errors"
		"os"

		"github.com/oladejiayo/localzure-sub003/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("localzure starting")

		// Component-specific logging
		kvLog := log.WithComponent("keyvault")
		kvLog.Info().
			Str("vault", "my-vault").
			Int("version_count", 3).
			Msg("secret listed")

		// Error logging
		err := errors.New("connection refused")
		log.Logger.Error().
			Err(err).
			Str("component", "state").
			Msg("failed to connect to redis backend")

		log.Info("localzure stopped")
	}

# Integration Points

This package integrates with:

  - pkg/state: Logs Redis connection setup and retry warnings
  - pkg/snapshot: Logs create/restore progress and backup-before-restore warnings
  - pkg/oauth: Logs token issuance and key generation
  - pkg/keyvault: Logs secret lifecycle events (set/delete/recover/purge)
  - pkg/httpapi: Logs the listen address when the facade starts
  - cmd/localzure: Initializes the global logger from Config at startup

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"keyvault","vault":"my-vault","time":"2026-07-29T10:30:00Z","message":"secret version created"}
	{"level":"info","component":"oauth","client_id":"client-1","time":"2026-07-29T10:30:01Z","message":"issued oauth token"}
	{"level":"warn","component":"snapshot","time":"2026-07-29T10:30:02Z","message":"pre-restore backup failed, continuing anyway"}

Console Format (Development):

	2026-07-29T10:30:00Z INF secret version created component=keyvault vault=my-vault
	2026-07-29T10:30:01Z INF issued oauth token component=oauth client_id=client-1
	2026-07-29T10:30:02Z WRN pre-restore backup failed, continuing anyway component=snapshot

# Design Patterns

Component Prefixing:
  - Every package gets its own WithComponent logger at construction
  - Makes filtering by component trivial with any JSON log tool
  - Avoids scattering raw fmt.Println calls across the codebase

Structured Fields Over String Formatting:
  - Prefer .Str("vault", name) over fmt.Sprintf("vault=%s", name)
  - Keeps fields queryable in log aggregation tools
  - Avoids accidental secret-value leakage from naive string interpolation

Never Logging Secret Values:
  - Key Vault operations log secret names and vault names, never the
    secret value itself, matching Azure Key Vault's own audit log
    behavior (values never appear in diagnostic logs)

# See Also

  - pkg/state for the namespaced backend whose operations this package logs
  - pkg/keyvault for the secret engine whose lifecycle events this package logs
  - zerolog documentation: https://github.com/rs/zerolog
*/
package log
