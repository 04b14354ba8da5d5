package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cargamasiva",
		Short:         "Carga masiva de usuarios desde CSV o Excel",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newProcessCmd(), newValidateCmd(), newTemplateCmd(), newPurgeCmd(), newStatsCmd())
	return root
}
