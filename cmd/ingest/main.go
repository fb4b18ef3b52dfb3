// Command ingest analyzes and imports bank statements from the terminal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel   string
	categories string
	dateOrder  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Import bank statement spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `ingest reads CSV and XLSX bank exports, detects the header row and
columns, parses European or American amounts and categorizes every row.`,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.categories, "categories", "", "category seed CSV (name,type,keywords)")
	cmd.PersistentFlags().StringVar(&opts.dateOrder, "date-order", "day_first", "reading of ambiguous dates (day_first, month_first)")

	cmd.AddCommand(analyzeCmd(opts))
	cmd.AddCommand(importCmd(opts))
	cmd.AddCommand(categoriesCmd(opts))
	return cmd
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(o.logLevel)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
}
