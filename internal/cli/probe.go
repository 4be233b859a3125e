package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/reqtrack/internal/control"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check connectivity to the configured endpoints once",
	Run:   runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.NewApp(cfg)
	if err != nil {
		slog.Error("Failed to initialize reqtrack", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Connectivity.Timeout+5*time.Second)
	defer cancel()

	report, err := app.Probe(ctx)
	if err != nil {
		slog.Error("Probe failed", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ENDPOINT\tSTATE\tLATENCY\tERROR")
	for _, ep := range report.Stats.Connectivity.Endpoints {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", ep.Name, ep.State, ep.LatencyMs(), ep.Error)
	}
	_ = w.Flush()

	if !report.Stats.Connectivity.Online {
		os.Exit(2)
	}
}
