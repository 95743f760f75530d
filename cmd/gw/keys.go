package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/formloom/gateway/internal/config"
	"github.com/formloom/gateway/internal/db"
	"github.com/formloom/gateway/internal/models"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "API key management commands",
	}

	cmd.AddCommand(newKeysCreateCmd())
	cmd.AddCommand(newKeysListCmd())
	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	var configPath, tenant, scope, domains string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a new API key for a tenant",
		Long:  "Generates a prefixed random key. Publishable keys should carry --domains; secret keys are backend-only and skip the origin check.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysCreate(cmd, configPath, tenant, scope, domains)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "path to gateway config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id the key belongs to (required)")
	cmd.Flags().StringVar(&scope, "scope", models.ScopePublishable, "key scope: publishable or secret")
	cmd.Flags().StringVar(&domains, "domains", "", "comma-separated allowed domains for publishable keys")
	cmd.MarkFlagRequired("tenant")
	return cmd
}

func runKeysCreate(cmd *cobra.Command, configPath, tenant, scope, domains string) error {
	out := cmd.OutOrStdout()

	if scope != models.ScopePublishable && scope != models.ScopeSecret {
		return fmt.Errorf("scope must be publishable or secret, got %q", scope)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	raw, err := generateKey(scope)
	if err != nil {
		return err
	}

	var allowed []string
	if domains != "" {
		for _, d := range strings.Split(domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				allowed = append(allowed, d)
			}
		}
	}
	encoded, err := models.EncodeDomains(allowed)
	if err != nil {
		return err
	}

	key := models.ApiKey{
		ID:             uuid.NewString(),
		Key:            raw,
		TenantID:       tenant,
		Scope:          scope,
		AllowedDomains: encoded,
		IsActive:       true,
	}
	if err := conn.Create(&key).Error; err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	// The full key is shown exactly once, at mint time.
	fmt.Fprintf(out, "Created %s key for tenant %s:\n%s\n", scope, tenant, raw)
	return nil
}

// generateKey mints a prefixed random credential: sk_live_... or pk_live_...
func generateKey(scope string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	prefix := "pk_live_"
	if scope == models.ScopeSecret {
		prefix = "sk_live_"
	}
	return prefix + hex.EncodeToString(buf), nil
}

func newKeysListCmd() *cobra.Command {
	var configPath, tenant string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys and their usage counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeysList(cmd, configPath, tenant)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "gateway.yaml", "path to gateway config file")
	cmd.Flags().StringVar(&tenant, "tenant", "", "filter to one tenant")
	return cmd
}

func runKeysList(cmd *cobra.Command, configPath, tenant string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	q := conn.Order("created_at ASC")
	if tenant != "" {
		q = q.Where("tenant_id = ?", tenant)
	}
	var keys []models.ApiKey
	if err := q.Find(&keys).Error; err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Fprintln(out, "No keys found")
		return nil
	}
	fmt.Fprintf(out, "%-14s %-12s %-12s %-8s %10s %10s\n", "KEY", "TENANT", "SCOPE", "ACTIVE", "REQUESTS", "MONTHLY")
	for _, k := range keys {
		fmt.Fprintf(out, "%-14s %-12s %-12s %-8t %10d %10d\n", redactKey(k.Key), k.TenantID, k.Scope, k.IsActive, k.RequestCount, k.MonthlyRequests)
	}
	return nil
}

// redactKey keeps the prefix and tail so a key can be identified but not used.
func redactKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:8] + "..." + key[len(key)-4:]
}
