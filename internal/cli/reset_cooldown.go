package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/reqtrack/internal/infra/redis"
)

var resetCooldownCmd = &cobra.Command{
	Use:   "reset-cooldown",
	Short: "Clear the shared secondary rate limit cooldown in Redis",
	Args:  cobra.NoArgs,
	Run:   runResetCooldown,
}

func init() {
	rootCmd.AddCommand(resetCooldownCmd)
}

func runResetCooldown(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if !cfg.Redis.Enabled() {
		slog.Error("Redis is not configured, cooldowns are per process")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	store := redisclient.NewCooldownStore(client)
	remaining, err := store.Remaining(ctx)
	if err != nil {
		slog.Error("Failed to read cooldown", "error", err)
		os.Exit(1)
	}
	if err := store.Reset(ctx); err != nil {
		slog.Error("Failed to reset cooldown", "error", err)
		os.Exit(1)
	}

	slog.Info("Cooldown cleared", "remaining", remaining)
}
