// Package e2etest provides end-to-end integration tests for import flows.
package e2etest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ingest/internal/testutil"
	"github.com/FACorreiaa/echo-ingest/pkg/money"
	"github.com/FACorreiaa/echo-ingest/pkg/storage"
)

// statementsDirEnv points at a folder of real bank exports.
const statementsDirEnv = "ECHO_STATEMENTS_DIR"

type pipeline struct {
	store   *repository.MemoryStore
	archive *storage.LocalStorage
	svc     *service.ImportService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := repository.NewMemoryStore(money.EUR)
	categories := categorization.NewService(store, logger)
	_, err := categories.Seed(context.Background(), strings.NewReader(testutil.DefaultCategories))
	require.NoError(t, err)

	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := service.NewImportService(categories, store, logger).WithArchive(archive)
	return &pipeline{store: store, archive: archive, svc: svc}
}

// run drives a file through read, analyze, process and finalize.
func (p *pipeline) run(t *testing.T, name string, data []byte) (*service.ProcessResult, *service.FinalizeResult) {
	t.Helper()
	ctx := context.Background()

	g, err := grid.ReadFile(name, data)
	require.NoError(t, err, "Failed to read %s", name)

	analysis, err := p.svc.Analyze(g)
	require.NoError(t, err, "Failed to analyze %s", name)
	require.True(t, analysis.Suggestions.Complete(), "Expected all columns to be detected: %v", analysis.Headers)

	res, err := p.svc.Process(ctx, g, service.ProcessRequest{
		HeaderRow: analysis.HeaderRow,
		Mapping:   service.MappingFromSuggestions(analysis.Suggestions),
		Locale:    analysis.Locale.Locale,
		FileName:  name,
		FileData:  data,
	})
	require.NoError(t, err, "Failed to process %s", name)

	final, err := p.svc.Finalize(ctx)
	require.NoError(t, err, "Failed to finalize %s", name)
	return res, final
}

func assertMatchesRows(t *testing.T, rows []testutil.Row, txs []service.StagedTransaction) {
	t.Helper()
	require.Len(t, txs, len(rows))
	for i, tx := range txs {
		assert.Equal(t, rows[i].Date, tx.Date, "row %d date", i)
		assert.InDelta(t, rows[i].Amount, tx.Amount.InexactFloat64(), 0.001, "row %d amount", i)
		assert.Equal(t, rows[i].Category, tx.Category, "row %d: %s", i, tx.Description)
	}
}

// TestEuropeanCSVImport covers a semicolon export with 1.234,56 amounts and
// a two-line preamble above the header.
func TestEuropeanCSVImport(t *testing.T) {
	gen := testutil.NewStatementGenerator(11, normalizer.LocaleEuropean)
	rows := gen.Rows(80)
	data, err := gen.CSV(rows)
	require.NoError(t, err)

	p := newPipeline(t)
	res, final := p.run(t, "movimientos.csv", data)

	assertMatchesRows(t, rows, res.Transactions)
	assert.Equal(t, len(rows), res.Categorized)
	assert.Equal(t, len(rows), final.Saved)

	t.Run("Persisted", func(t *testing.T) {
		ctx := context.Background()
		stored, err := p.store.ListTransactions(ctx, final.BatchID)
		require.NoError(t, err)
		require.Len(t, stored, len(rows))

		net := decimal.Zero
		for _, tx := range stored {
			net = net.Add(tx.Amount)
		}
		assert.True(t, net.Equal(final.Summary.Net), "net %s != %s", net, final.Summary.Net)

		batch, err := p.store.GetBatch(ctx, final.BatchID)
		require.NoError(t, err)
		assert.Equal(t, len(rows), batch.RowCount)
	})

	t.Run("SourceArchived", func(t *testing.T) {
		require.NotNil(t, final.SourceFileID)
		r, info, err := p.archive.Download(context.Background(), final.BatchID, *final.SourceFileID)
		require.NoError(t, err)
		defer r.Close()

		archived, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, data, archived)
		assert.Equal(t, "movimientos.csv", info.Name)
	})

	t.Run("NothingLeftStaged", func(t *testing.T) {
		_, err := p.svc.Staged()
		assert.ErrorIs(t, err, service.ErrNothingStaged)
	})
}

// TestAmericanXLSXImport covers a workbook with real date and number cells.
func TestAmericanXLSXImport(t *testing.T) {
	gen := testutil.NewStatementGenerator(12, normalizer.LocaleAmerican)
	rows := gen.Rows(40)
	data, err := gen.XLSX(rows)
	require.NoError(t, err)

	p := newPipeline(t)
	res, final := p.run(t, "statement.xlsx", data)

	assertMatchesRows(t, rows, res.Transactions)
	assert.Equal(t, len(rows), final.Saved)
	assert.Zero(t, res.BlankRows)
	assert.Zero(t, res.Skipped.Total())
}

// TestSubCentAmountKeepsBatchStaged checks that an amount the store cannot
// represent in minor units fails Finalize and leaves the batch for review.
func TestSubCentAmountKeepsBatchStaged(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	g := grid.FromStrings([][]string{
		{"Fecha", "Concepto", "Importe"},
		{"15/01/2024", "COMISION", "-0,004"},
		{"16/01/2024", "MERCADONA", "-12,30"},
	})
	res, err := p.svc.Process(ctx, g, service.ProcessRequest{
		HeaderRow: 0,
		Mapping:   service.ColumnMapping{Date: 0, Description: 1, Amount: 2},
		Locale:    normalizer.LocaleEuropean,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Imported)

	_, err = p.svc.Finalize(ctx)
	require.ErrorIs(t, err, repository.ErrBelowMinorUnit)

	staged, err := p.svc.Staged()
	require.NoError(t, err, "batch stays staged")
	_, err = p.store.GetBatch(ctx, staged.ID)
	assert.ErrorIs(t, err, repository.ErrBatchNotFound)

	fixed := decimal.RequireFromString("-0.01")
	_, err = p.svc.UpdateStaged(res.Transactions[0].ID, transaction.Patch{Amount: &fixed})
	require.NoError(t, err)

	final, err := p.svc.Finalize(ctx)
	require.NoError(t, err)
	batch, err := p.store.GetBatch(ctx, final.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "-12.31", batch.Net.String())
}

// TestCategorySearchAfterImport checks the picker finds categories by a
// keyword prefix once the seed is loaded.
func TestCategorySearchAfterImport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore(money.EUR)
	categories := categorization.NewService(store, logger)
	_, err := categories.Seed(context.Background(), strings.NewReader(testutil.DefaultCategories))
	require.NoError(t, err)

	hits, err := categories.Search(context.Background(), "merca", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Supermercado", hits[0].Name)
}

// TestRealStatements imports every CSV/XLSX under $ECHO_STATEMENTS_DIR. Real
// exports are not committed; the test skips without them.
func TestRealStatements(t *testing.T) {
	dir := os.Getenv(statementsDirEnv)
	if dir == "" {
		t.Skipf("%s not set (point it at a folder of bank exports to run this test)", statementsDirEnv)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".csv" && ext != ".xlsx") {
			continue
		}
		t.Run(e.Name(), func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)

			p := newPipeline(t)
			res, final := p.run(t, e.Name(), data)

			assert.Positive(t, res.Imported)
			assert.Equal(t, res.Imported, final.Saved)
			t.Logf("%s: %d imported, %d categorized, %d blank, skipped %+v, net %s",
				e.Name(), res.Imported, res.Categorized, res.BlankRows, res.Skipped, final.Summary.Net)
		})
	}
}
