package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/redpotato/backend/internal/app"
	"github.com/redpotato/backend/internal/config"
	"github.com/redpotato/backend/internal/logger"
)

var (
	outputFmt string
	verbose   bool
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "itpctl",
	Short: "ITP reminder operator CLI",
	Long: `itpctl runs the ITP reminder service operations directly against the
configured database: manual reminder runs, retries, test sends, retention
cleanup, logins and demo data. Configuration is read from the environment and .env,
the same way the API server reads it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "text", "output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(addUserCmd)
	rootCmd.AddCommand(tokenCmd)
}

// withApp connects to the stores, runs fn and releases the connections.
// SIGINT/SIGTERM cancel the context passed to fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	if !verbose {
		log = log.Level(zerolog.WarnLevel)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
