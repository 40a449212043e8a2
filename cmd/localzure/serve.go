package main

import (
	"context"
	"fmt"
	"time"

	"github.com/oladejiayo/localzure-sub003/pkg/config"
	"github.com/oladejiayo/localzure-sub003/pkg/httpapi"
	"github.com/oladejiayo/localzure-sub003/pkg/keyvault"
	"github.com/oladejiayo/localzure-sub003/pkg/log"
	"github.com/oladejiayo/localzure-sub003/pkg/metrics"
	"github.com/oladejiayo/localzure-sub003/pkg/oauth"
	"github.com/oladejiayo/localzure-sub003/pkg/security"
	"github.com/oladejiayo/localzure-sub003/pkg/state"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LocalZure HTTP facade",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address, overrides config server.addr")
	serveCmd.Flags().String("base-url", "", "Base URL that roots the token and JWKS endpoint URLs in OIDC discovery (defaults to oauth.issuer)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	baseURL, _ := cmd.Flags().GetString("base-url")
	if baseURL == "" {
		baseURL = cfg.OAuth.Issuer
	}

	backend, err := newBackend(cmd.Context(), cfg.Backend)
	if err != nil {
		return fmt.Errorf("build state backend: %w", err)
	}

	sm, err := security.NewRandomSecretsManager()
	if err != nil {
		return fmt.Errorf("build secrets manager: %w", err)
	}

	engine := keyvault.NewEngine(
		keyvault.WithSoftDelete(cfg.KeyVault.SoftDeleteEnabled),
		keyvault.WithRetentionDays(cfg.KeyVault.RetentionDays),
		keyvault.WithVaultHost(cfg.KeyVault.VaultHost),
		keyvault.WithWriteThrough(state.Instrument(backend), sm),
	)

	issuer, err := oauth.NewIssuer(
		oauth.WithIssuerURL(cfg.OAuth.Issuer),
		oauth.WithTokenLifetime(time.Duration(cfg.OAuth.TokenLifetimeSeconds)*time.Second),
	)
	if err != nil {
		return fmt.Errorf("build oauth issuer: %w", err)
	}

	collector := metrics.NewCollector(func() metrics.HealthSnapshot {
		h := engine.Health()
		return metrics.HealthSnapshot{Vaults: h.Vaults, Secrets: h.Secrets, DeletedSecrets: h.DeletedSecrets}
	})
	collector.Start()
	defer collector.Stop()

	server := httpapi.NewServer(engine, issuer, baseURL)

	log.WithComponent("serve").Info().
		Str("addr", cfg.Server.Addr).
		Str("backend", cfg.Backend.Type).
		Msg("starting localzure")

	return server.Start(cfg.Server.Addr)
}

func newBackend(ctx context.Context, cfg config.BackendConfig) (state.Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return state.NewMemory(), nil
	case "redis":
		timeout := time.Duration(cfg.Redis.SocketTimeoutSeconds) * time.Second
		rcfg := state.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			PoolSize:    cfg.Redis.MaxConnections,
			DialTimeout: timeout,
			ReadTimeout: timeout,
			MaxRetries:  cfg.Redis.MaxRetries,
		}
		return state.NewRedis(ctx, rcfg)
	case "bolt":
		return state.NewBolt(cfg.Bolt.Path)
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}
