package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
)

func analyzeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Show the detected header row, columns and number format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGrid(args[0])
			if err != nil {
				return err
			}

			svc := service.NewImportService(repository.NewMemoryStore(""), repository.NewMemoryStore(""), root.logger(cmd))
			res, err := svc.Analyze(g)
			if err != nil {
				return err
			}
			return printAnalysis(cmd, res)
		},
	}
}

func readGrid(path string) (grid.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	g, err := grid.ReadFile(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return g, nil
}

func printAnalysis(cmd *cobra.Command, res *service.AnalyzeResult) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "Header row:\t%d\n", res.HeaderRow+1)
	fmt.Fprintf(w, "Headers:\t%s\n", strings.Join(res.Headers, " | "))
	fmt.Fprintf(w, "Date column:\t%s\n", columnLabel(res.Headers, res.Suggestions.Date))
	fmt.Fprintf(w, "Description column:\t%s\n", columnLabel(res.Headers, res.Suggestions.Description))
	fmt.Fprintf(w, "Amount column:\t%s\n", columnLabel(res.Headers, res.Suggestions.Amount))
	fmt.Fprintf(w, "Locale:\t%s (%.0f%% confident)\n", res.Locale.Locale, res.Locale.Confidence*100)
	if res.Locale.CurrencyHint != "" {
		fmt.Fprintf(w, "Currency:\t%s\n", res.Locale.CurrencyHint)
	}
	fmt.Fprintf(w, "Data rows:\t%d\n", res.DataRows)
	fmt.Fprintf(w, "Fingerprint:\t%s\n", res.Fingerprint)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(res.SampleRows) == 0 {
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nSample rows:")
	w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, row := range res.SampleRows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func columnLabel(headers []string, col int) string {
	if col < 0 || col >= len(headers) {
		return "not found"
	}
	return fmt.Sprintf("%d (%s)", col+1, headers[col])
}
