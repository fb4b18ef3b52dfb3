package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-ingest/pkg/config"
	"github.com/FACorreiaa/echo-ingest/pkg/db"
	"github.com/FACorreiaa/echo-ingest/pkg/money"
)

type importOptions struct {
	headerRow int
	dateCol   int
	descCol   int
	amountCol int
	locale    string
	currency  string
	format    string
	commit    bool
}

func importCmd(root *rootOptions) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Parse and categorize a statement",
		Long: `Parse every row of a statement with the detected (or given) layout and
print the categorized transactions. Nothing is stored unless --commit is set,
in which case the batch is written to the Postgres database from the
environment configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, root, opts, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.headerRow, "header-row", 0, "1-based header row (0 = detect)")
	cmd.Flags().IntVar(&opts.dateCol, "date-col", 0, "1-based date column (0 = detect)")
	cmd.Flags().IntVar(&opts.descCol, "desc-col", 0, "1-based description column (0 = detect)")
	cmd.Flags().IntVar(&opts.amountCol, "amount-col", 0, "1-based amount column (0 = detect)")
	cmd.Flags().StringVar(&opts.locale, "locale", "auto", "number format: eu, us or auto")
	cmd.Flags().StringVar(&opts.currency, "currency", money.EUR, "currency for totals and storage")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "output format: table or csv")
	cmd.Flags().BoolVar(&opts.commit, "commit", false, "store the batch in the database")

	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *importOptions, path string) error {
	logger := root.logger(cmd)

	if !money.ValidCurrency(opts.currency) {
		return fmt.Errorf("unknown currency %q", opts.currency)
	}
	dateOrder, err := normalizer.ParseDateOrder(root.dateOrder)
	if err != nil {
		return err
	}

	g, err := readGrid(path)
	if err != nil {
		return err
	}

	categories := repository.NewMemoryStore(opts.currency)
	catSvc := categorization.NewService(categories, logger)
	if root.categories != "" {
		if err := seedFromFile(ctx, catSvc, root.categories); err != nil {
			return err
		}
	}

	var store service.TransactionStore = categories
	if opts.commit {
		pgStore, closeDB, err := openTransactionStore(ctx, opts.currency, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		store = pgStore
	}

	svc := service.NewImportService(catSvc, store, logger).WithDateOrder(dateOrder)

	analysis, err := svc.Analyze(g)
	if err != nil {
		return err
	}
	req, err := opts.request(g, analysis)
	if err != nil {
		return err
	}

	res, err := svc.Process(ctx, g, req)
	if errors.Is(err, service.ErrNoValidRows) && res != nil {
		printCounts(cmd.ErrOrStderr(), res)
	}
	if err != nil {
		return err
	}

	if err := printTransactions(cmd.OutOrStdout(), opts.format, opts.currency, res.Transactions); err != nil {
		return err
	}
	printCounts(cmd.ErrOrStderr(), res)
	printTotals(cmd.ErrOrStderr(), res, opts.currency)

	if !opts.commit {
		return nil
	}
	final, err := svc.Finalize(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Committed batch %s (%d transactions)\n", final.BatchID, final.Saved)
	return nil
}

// request merges explicit flags over the detected layout. A header row given
// by flag brings its own column suggestions, and the number format is detected
// again when the header or amount column moved.
func (o *importOptions) request(g grid.Grid, a *service.AnalyzeResult) (service.ProcessRequest, error) {
	req := service.ProcessRequest{
		HeaderRow: a.HeaderRow,
		Mapping:   service.MappingFromSuggestions(a.Suggestions),
		Locale:    a.Locale.Locale,
	}
	if o.headerRow > 0 {
		if o.headerRow > len(g) {
			return req, fmt.Errorf("%w: --header-row %d, file has %d rows", service.ErrHeaderOutOfRange, o.headerRow, len(g))
		}
		req.HeaderRow = o.headerRow - 1
		req.Mapping = service.MappingFromSuggestions(sniffer.SuggestColumns(grid.Strings(g[req.HeaderRow])))
	}
	if o.dateCol > 0 {
		req.Mapping.Date = o.dateCol - 1
	}
	if o.descCol > 0 {
		req.Mapping.Description = o.descCol - 1
	}
	if o.amountCol > 0 {
		req.Mapping.Amount = o.amountCol - 1
	}
	switch {
	case o.locale != "auto":
		locale, err := normalizer.ParseLocale(o.locale)
		if err != nil {
			return req, err
		}
		req.Locale = locale
	case o.headerRow > 0 || o.amountCol > 0:
		req.Locale = sniffer.ProbeLocale(g[req.HeaderRow+1:], req.Mapping.Amount).Locale
	}
	if !req.Mapping.Complete() {
		return req, fmt.Errorf("%w: use --date-col, --desc-col and --amount-col", service.ErrMappingIncomplete)
	}
	return req, nil
}

func seedFromFile(ctx context.Context, svc *categorization.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open categories: %w", err)
	}
	defer f.Close()

	_, err = svc.Seed(ctx, f)
	return err
}

func openTransactionStore(ctx context.Context, currency string, logger *slog.Logger) (service.TransactionStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repository.NewTransactionRepository(pool, currency), pool.Close, nil
}

// exportRecord is one line of --format csv.
type exportRecord struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Merchant    string `csv:"merchant"`
	Amount      string `csv:"amount"`
	Category    string `csv:"category"`
	MatchedBy   string `csv:"matched_by"`
	Suggestion  string `csv:"suggestion"`
}

// printTransactions writes amounts rounded to the currency's minor unit.
func printTransactions(w io.Writer, format, currency string, txs []service.StagedTransaction) error {
	switch format {
	case "csv":
		records := make([]exportRecord, len(txs))
		for i, tx := range txs {
			records[i] = exportRecord{
				Date:        tx.Date.Format("2006-01-02"),
				Description: tx.Description,
				Merchant:    tx.Merchant,
				Amount:      money.NewFromDecimal(tx.Amount, currency).String(),
				Category:    tx.Category,
				MatchedBy:   tx.MatchedBy,
			}
			if len(tx.Suggestions) > 0 {
				records[i].Suggestion = tx.Suggestions[0].Category
			}
		}
		return gocsv.Marshal(&records, w)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tDESCRIPTION\tAMOUNT\tCATEGORY")
		for _, tx := range txs {
			category := tx.Category
			if category == "" && len(tx.Suggestions) > 0 {
				category = "? " + tx.Suggestions[0].Category
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tx.Date.Format("2006-01-02"), tx.Description, money.NewFromDecimal(tx.Amount, currency).String(), category)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func printCounts(w io.Writer, res *service.ProcessResult) {
	fmt.Fprintf(w, "Rows: %d imported, %d categorized, %d blank, %d invalid date, %d empty description, %d zero amount\n",
		res.Imported, res.Categorized, res.BlankRows,
		res.Skipped.InvalidDate, res.Skipped.EmptyDescription, res.Skipped.ZeroAmount)
}

func printTotals(w io.Writer, res *service.ProcessResult, currency string) {
	s := res.Summary
	fmt.Fprintf(w, "Income: %s  Expenses: %s  Net: %s\n",
		money.NewFromDecimal(s.Income, currency).Display(),
		money.NewFromDecimal(s.Expenses, currency).Display(),
		money.NewFromDecimal(s.Net, currency).Display(),
	)
}
