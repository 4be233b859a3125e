package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/reqtrack/internal/status"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health report of a running reqtrack instance",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:9090", "health server address")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(statusAddr, "/")+"/health/detailed", nil)
	if err != nil {
		slog.Error("Invalid address", "error", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Error("Failed to reach reqtrack", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var report status.Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode report", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	_, _ = fmt.Fprintf(w, "status\t%s\n", report.Status)
	_, _ = fmt.Fprintf(w, "online\t%t\n", report.Stats.Connectivity.Online)
	_, _ = fmt.Fprintf(w, "queue\t%d\n", report.Stats.QueueLength)
	_, _ = fmt.Fprintf(w, "cache\t%d\n", report.Stats.CacheEntries)
	if rl := report.Stats.RateLimit; rl != nil {
		_, _ = fmt.Fprintf(w, "rate limit\t%d/%d (resets %s)\n", rl.Remaining, rl.Limit, rl.ResetAt.Local().Format(time.TimeOnly))
	}
	if report.Stats.Cooldown > 0 {
		_, _ = fmt.Fprintf(w, "cooldown\t%dms\n", report.Stats.Cooldown)
	}
	for _, r := range report.Reasons {
		_, _ = fmt.Fprintf(w, "reason\t%s\n", r)
	}
	_ = w.Flush()
}
