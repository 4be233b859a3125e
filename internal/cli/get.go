package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/reqtrack/internal/control"
	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote"
	"github.com/vietddude/reqtrack/internal/infra/remote/github"
)

var (
	getKind      string
	getCacheKey  string
	getPriority  string
	getAttempts  int
	getQueueable bool
	getWait      time.Duration
)

var getCmd = &cobra.Command{
	Use:   "get [path]",
	Short: "Fetch a GitHub API path through the access layer",
	Args:  cobra.ExactArgs(1),
	Run:   runGet,
}

func init() {
	getCmd.Flags().StringVar(&getKind, "kind", "get", "operation kind, selects cache duration and queue age")
	getCmd.Flags().StringVar(&getCacheKey, "cache-key", "", "cache key (defaults to the path)")
	getCmd.Flags().StringVar(&getPriority, "priority", "medium", "low, medium or high")
	getCmd.Flags().IntVar(&getAttempts, "attempts", 0, "max attempts (0 uses config)")
	getCmd.Flags().BoolVar(&getQueueable, "queueable", false, "queue the call while offline")
	getCmd.Flags().DurationVar(&getWait, "wait", time.Minute, "how long to wait for a queued call")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	path := args[0]

	priority, err := domain.ParsePriority(getPriority)
	if err != nil {
		slog.Error("Invalid priority", "error", err)
		os.Exit(1)
	}
	cacheKey := getCacheKey
	if cacheKey == "" {
		cacheKey = path
	}

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize reqtrack", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), getWait+cfg.GitHub.Timeout)
	defer cancel()

	deferred := make(chan any, 1)
	res, err := app.Fetch(ctx, getKind, path, remote.Options{
		CacheKey:    cacheKey,
		Priority:    priority,
		MaxAttempts: getAttempts,
		Queueable:   getQueueable,
		OnDeferred:  func(v any) { deferred <- v },
	})
	if err != nil {
		var rerr *remote.Error
		if errors.As(err, &rerr) {
			slog.Error(rerr.UserMessage, "type", rerr.Type, "category", rerr.Category)
		} else {
			slog.Error("Request failed", "error", err)
		}
		os.Exit(1)
	}

	value := res.Value
	if res.Kind == remote.ResultQueued {
		slog.Info("Offline, request queued", "id", res.QueueID)
		app.WatchConnectivity(ctx)
		select {
		case value = <-deferred:
		case <-ctx.Done():
			slog.Error("Gave up waiting for connectivity", "id", res.QueueID)
			os.Exit(1)
		}
	} else if res.Stale {
		slog.Warn("Serving stale response", "stored_at", res.StoredAt)
	}

	resp, ok := value.(*github.Response)
	if !ok {
		slog.Error("Unexpected response", "type", fmt.Sprintf("%T", value))
		os.Exit(1)
	}
	_, _ = os.Stdout.Write(resp.Body)
	_, _ = fmt.Fprintln(os.Stdout)
}
