// Package main implements cultivatorctl, the operator CLI for the
// cultivation bot: schema migration, database health and content validation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cultivation-bot/internal/catalog"
	"cultivation-bot/internal/config"
	"cultivation-bot/internal/pkg/db"
	"cultivation-bot/internal/pkg/logging"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:           "cultivatorctl",
	Short:         "Operator tools for the cultivation bot",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ping the database and report pool stats",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Game content tools",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check <dir>",
	Short: "Load and validate the YAML content in dir",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "config", "directory holding config.yaml")
	catalogCmd.AddCommand(catalogCheckCmd)
	rootCmd.AddCommand(migrateCmd, healthCmd, catalogCmd)
}

// withPool loads config, connects and runs fn against the pool.
func withPool(cmd *cobra.Command, fn func(ctx context.Context, pool *db.Pool) error) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	closer := logging.Setup(cfg.Log)
	defer closer.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, pool)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	return withPool(cmd, func(ctx context.Context, pool *db.Pool) error {
		if err := db.Migrate(ctx, pool.Pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ schema up to date")
		return nil
	})
}

func runHealth(cmd *cobra.Command, _ []string) error {
	return withPool(cmd, func(ctx context.Context, pool *db.Pool) error {
		if err := pool.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
		stat := pool.Stat()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ database ok (%d/%d connections in use)\n", stat.AcquiredConns(), stat.TotalConns())
		return nil
	})
}

func runCatalogCheck(cmd *cobra.Command, args []string) error {
	c, err := catalog.Load(args[0])
	if err != nil {
		return err
	}
	items, monsters, bosses := c.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d items, %d monsters, %d bosses\n", args[0], items, monsters, bosses)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
