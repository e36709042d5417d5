package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tenx/certdash/config"
)

var rootCmd = &cobra.Command{
	Use:   "certdash",
	Short: "certdash manages blockchain-backed training certificates",
	Long: `A client for the certificate API: sign in, list and issue certificates,
request or approve their on-chain transfer, and serve a live dashboard.`,
	SilenceUsage: true,
}

var configFlags *config.Flags

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	configFlags = config.RegisterFlags(rootCmd.PersistentFlags())
}
