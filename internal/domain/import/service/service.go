// Package service provides the import orchestration logic: it turns a
// confirmed column mapping over a raw grid into a staged batch of
// categorized transactions, and commits or discards that batch.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ingest/pkg/storage"
)

var (
	ErrMappingIncomplete   = errors.New("date, description and amount columns must all be mapped")
	ErrColumnOutOfRange    = errors.New("mapped column is outside the header row")
	ErrHeaderOutOfRange    = errors.New("header row is outside the grid")
	ErrInvalidLocale       = errors.New("locale must be eu or us")
	ErrNoDataRows          = errors.New("no data rows below the header")
	ErrNoValidRows         = errors.New("no row had a valid date, description and amount")
	ErrNothingStaged       = errors.New("no staged import")
	ErrTransactionNotFound = errors.New("staged transaction not found")
)

const (
	// UnsetColumn marks a field with no column assigned.
	UnsetColumn = -1

	sampleRowCount  = 5
	suggestionLimit = 3

	tracerName = "github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
)

// CategoryStore is the source of categories for matching.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]categorization.Category, error)
}

// TransactionStore persists a finalized batch. It must store all of txs or
// none of them.
type TransactionStore interface {
	SaveTransactions(ctx context.Context, batchID uuid.UUID, txs []transaction.Transaction) error
}

// SourceArchive keeps the uploaded statement next to its batch.
type SourceArchive interface {
	Upload(ctx context.Context, batchID uuid.UUID, filename string, r io.Reader) (*storage.FileInfo, error)
	Delete(ctx context.Context, batchID, fileID uuid.UUID) error
}

// ColumnMapping assigns grid columns to transaction fields.
type ColumnMapping struct {
	Date        int `json:"date"`
	Description int `json:"description"`
	Amount      int `json:"amount"`
}

// UnsetMapping returns a mapping with no column assigned.
func UnsetMapping() ColumnMapping {
	return ColumnMapping{Date: UnsetColumn, Description: UnsetColumn, Amount: UnsetColumn}
}

// MappingFromSuggestions adopts the detector's guesses.
func MappingFromSuggestions(s sniffer.ColumnSuggestions) ColumnMapping {
	return ColumnMapping{Date: s.Date, Description: s.Description, Amount: s.Amount}
}

// Complete reports whether every field has a column.
func (m ColumnMapping) Complete() bool {
	return m.Date >= 0 && m.Description >= 0 && m.Amount >= 0
}

// Validate checks the mapping against a header row of width columns.
func (m ColumnMapping) Validate(width int) error {
	if !m.Complete() {
		return ErrMappingIncomplete
	}
	for _, col := range []int{m.Date, m.Description, m.Amount} {
		if col >= width {
			return fmt.Errorf("%w: column %d, header has %d", ErrColumnOutOfRange, col, width)
		}
	}
	return nil
}

// AnalyzeResult is what the confirmation UI needs to propose a mapping.
type AnalyzeResult struct {
	HeaderRow   int                       `json:"header_row"`
	Headers     []string                  `json:"headers"`
	Suggestions sniffer.ColumnSuggestions `json:"suggestions"`
	Locale      sniffer.LocaleGuess       `json:"locale"`
	SampleRows  [][]string                `json:"sample_rows"`
	DataRows    int                       `json:"data_rows"`
	Fingerprint string                    `json:"fingerprint"`
}

// ProcessRequest is the user-confirmed layout of a grid.
type ProcessRequest struct {
	HeaderRow int
	Mapping   ColumnMapping
	Locale    normalizer.Locale

	// Optional original file, archived on Finalize.
	FileName string
	FileData []byte
}

// SkipCounts tallies rows dropped by Process, by the first check they failed.
type SkipCounts struct {
	InvalidDate      int `json:"invalid_date"`
	EmptyDescription int `json:"empty_description"`
	ZeroAmount       int `json:"zero_amount"`
}

// Total is the number of skipped rows.
func (s SkipCounts) Total() int {
	return s.InvalidDate + s.EmptyDescription + s.ZeroAmount
}

// StagedTransaction is a parsed row awaiting review.
type StagedTransaction struct {
	transaction.Transaction
	Row         int                         `json:"row"` // 0-based grid row
	MatchedBy   string                      `json:"matched_by,omitempty"`
	Suggestions []categorization.Suggestion `json:"suggestions,omitempty"`
}

// ProcessResult reports what Process staged and what it skipped.
type ProcessResult struct {
	BatchID      uuid.UUID           `json:"batch_id"`
	DataRows     int                 `json:"data_rows"`
	Imported     int                 `json:"imported"`
	Categorized  int                 `json:"categorized"`
	BlankRows    int                 `json:"blank_rows"`
	Skipped      SkipCounts          `json:"skipped"`
	Summary      transaction.Summary `json:"summary"`
	Transactions []StagedTransaction `json:"transactions"`
}

// Batch is the staged import as seen by the review screen.
type Batch struct {
	ID           uuid.UUID           `json:"id"`
	FileName     string              `json:"file_name,omitempty"`
	Locale       normalizer.Locale   `json:"locale"`
	CreatedAt    time.Time           `json:"created_at"`
	Summary      transaction.Summary `json:"summary"`
	Transactions []StagedTransaction `json:"transactions"`
}

// FinalizeResult describes a committed batch.
type FinalizeResult struct {
	BatchID      uuid.UUID           `json:"batch_id"`
	Saved        int                 `json:"saved"`
	Ignored      int                 `json:"ignored"`
	SourceFileID *uuid.UUID          `json:"source_file_id,omitempty"`
	Summary      transaction.Summary `json:"summary"`
}

type stagedBatch struct {
	id        uuid.UUID
	fileName  string
	fileData  []byte
	locale    normalizer.Locale
	createdAt time.Time
	rows      []StagedTransaction
}

// ImportService orchestrates analysis, processing and staging of imports.
// It holds at most one staged batch; every staging mutation, Finalize
// included, runs under a single lock.
type ImportService struct {
	categories CategoryStore
	store      TransactionStore
	archive    SourceArchive // optional
	metrics    *Metrics      // optional
	tracer     trace.Tracer
	dates      normalizer.DateParser
	logger     *slog.Logger

	mu     sync.Mutex
	staged *stagedBatch
	now    func() time.Time
}

// NewImportService creates a new import service
func NewImportService(categories CategoryStore, store TransactionStore, logger *slog.Logger) *ImportService {
	return &ImportService{
		categories: categories,
		store:      store,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
	}
}

// WithDateOrder sets how ambiguous D/M/Y dates are read.
func (s *ImportService) WithDateOrder(order normalizer.DateOrder) *ImportService {
	s.dates = normalizer.DateParser{Ambiguous: order}
	return s
}

// WithArchive stores source files on Finalize.
func (s *ImportService) WithArchive(archive SourceArchive) *ImportService {
	s.archive = archive
	return s
}

// WithMetrics adds pipeline metrics to the import service
func (s *ImportService) WithMetrics(m *Metrics) *ImportService {
	s.metrics = m
	return s
}

// Analyze detects the header row, guesses the column mapping and votes on the
// locale. It never stages anything.
func (s *ImportService) Analyze(g grid.Grid) (*AnalyzeResult, error) {
	structure, err := sniffer.DetectStructure(g)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze grid: %w", err)
	}

	suggestions := sniffer.SuggestColumns(structure.Headers)
	data := g[structure.HeaderRow+1:]

	samples := make([][]string, 0, sampleRowCount)
	for _, row := range data {
		if len(samples) == sampleRowCount {
			break
		}
		if grid.BlankRow(row) {
			continue
		}
		samples = append(samples, grid.Strings(row))
	}

	result := &AnalyzeResult{
		HeaderRow:   structure.HeaderRow,
		Headers:     structure.Headers,
		Suggestions: suggestions,
		Locale:      sniffer.ProbeLocale(data, suggestions.Amount),
		SampleRows:  samples,
		DataRows:    len(data),
		Fingerprint: sniffer.Fingerprint(structure.Headers),
	}

	s.logger.Debug("grid analyzed",
		"header_row", result.HeaderRow,
		"header_score", structure.Score,
		"data_rows", result.DataRows,
		"mapping_complete", suggestions.Complete(),
		"locale", result.Locale.Locale,
	)
	return result, nil
}

// Process parses every row below the header with the given mapping and
// locale, categorizes the valid ones and stages them, replacing any batch
// already staged. Rows are skipped, not failed: a blank row is counted as
// blank, any other row is dropped for the first of invalid date, empty
// description or zero amount. When no row survives, ErrNoValidRows is
// returned together with the counts and nothing is staged.
func (s *ImportService) Process(ctx context.Context, g grid.Grid, req ProcessRequest) (*ProcessResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.Process")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := s.validate(g, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.batch(stateRejected)
		return nil, err
	}

	result := &ProcessResult{BatchID: uuid.New(), DataRows: len(rows)}
	staged := make([]StagedTransaction, 0, len(rows))
	for i := range rows {
		tx, ok := s.parseRow(rows, i, req.Mapping, req.Locale, result)
		if !ok {
			continue
		}
		staged = append(staged, StagedTransaction{Transaction: tx, Row: req.HeaderRow + 1 + i})
	}
	result.Imported = len(staged)

	span.SetAttributes(
		attribute.Int("import.data_rows", result.DataRows),
		attribute.Int("import.imported", result.Imported),
		attribute.Int("import.skipped", result.Skipped.Total()),
	)

	if len(staged) == 0 {
		s.metrics.observeProcess(result, time.Since(start))
		s.metrics.batch(stateRejected)
		span.SetStatus(codes.Error, ErrNoValidRows.Error())
		s.logger.Warn("import produced no valid rows",
			"data_rows", result.DataRows,
			"blank_rows", result.BlankRows,
			"invalid_date", result.Skipped.InvalidDate,
			"empty_description", result.Skipped.EmptyDescription,
			"zero_amount", result.Skipped.ZeroAmount,
		)
		return result, ErrNoValidRows
	}

	result.Categorized = s.categorize(ctx, staged)
	result.Summary = summarize(staged)
	result.Transactions = slices.Clone(staged)

	s.mu.Lock()
	replaced := s.staged != nil
	s.staged = &stagedBatch{
		id:        result.BatchID,
		fileName:  req.FileName,
		fileData:  req.FileData,
		locale:    req.Locale,
		createdAt: s.now(),
		rows:      staged,
	}
	s.mu.Unlock()

	s.metrics.observeProcess(result, time.Since(start))
	s.metrics.batch(stateStaged)
	s.metrics.setStaged(len(staged))

	s.logger.Info("import staged",
		"batch_id", result.BatchID,
		"imported", result.Imported,
		"categorized", result.Categorized,
		"blank_rows", result.BlankRows,
		"skipped", result.Skipped.Total(),
		"replaced_previous", replaced,
		"duration", time.Since(start),
	)
	return result, nil
}

// validate checks the request and returns the data rows.
func (s *ImportService) validate(g grid.Grid, req ProcessRequest) (grid.Grid, error) {
	if !req.Mapping.Complete() {
		return nil, ErrMappingIncomplete
	}
	if !req.Locale.Valid() {
		return nil, ErrInvalidLocale
	}
	if len(g) == 0 {
		return nil, ErrNoDataRows
	}
	if req.HeaderRow < 0 || req.HeaderRow >= len(g) {
		return nil, fmt.Errorf("%w: row %d, grid has %d", ErrHeaderOutOfRange, req.HeaderRow, len(g))
	}
	if err := req.Mapping.Validate(len(g[req.HeaderRow])); err != nil {
		return nil, err
	}
	rows := g[req.HeaderRow+1:]
	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}
	return rows, nil
}

// parseRow converts one data row, recording why it was skipped when it is.
func (s *ImportService) parseRow(rows grid.Grid, i int, m ColumnMapping, locale normalizer.Locale, res *ProcessResult) (transaction.Transaction, bool) {
	if grid.BlankRow(rows[i]) {
		res.BlankRows++
		return transaction.Transaction{}, false
	}

	date := s.dates.Parse(rows.Cell(i, m.Date))
	if !date.Valid() {
		res.Skipped.InvalidDate++
		return transaction.Transaction{}, false
	}

	description := normalizer.CleanDescription(rows.Cell(i, m.Description).String())
	if description == "" {
		res.Skipped.EmptyDescription++
		return transaction.Transaction{}, false
	}

	amount := normalizer.ParseAmountDecimal(rows.Cell(i, m.Amount), locale)
	if amount.IsZero() {
		res.Skipped.ZeroAmount++
		return transaction.Transaction{}, false
	}

	return transaction.Transaction{
		ID:          uuid.New(),
		Date:        date.Time(),
		Description: description,
		Merchant:    normalizer.MerchantName(description),
		Amount:      amount,
		Source:      transaction.SourceImport,
	}, true
}

// categorize assigns categories in place and returns how many matched.
// A failing category store leaves every row uncategorized.
func (s *ImportService) categorize(ctx context.Context, rows []StagedTransaction) int {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		s.logger.Warn("categories unavailable, staging uncategorized", slog.Any("error", err))
		return 0
	}

	matcher := categorization.NewMatcher(categories)
	matched := 0
	for i := range rows {
		m := matcher.MatchDetail(rows[i].Description)
		if m.Pass == categorization.PassNone {
			rows[i].Suggestions = matcher.Suggest(rows[i].Description, suggestionLimit)
			continue
		}
		rows[i].Category = m.Category
		rows[i].MatchedBy = m.Pass.String()
		matched++
	}
	return matched
}

// Staged returns a copy of the staged batch.
func (s *ImportService) Staged() (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil {
		return nil, ErrNothingStaged
	}
	return &Batch{
		ID:           s.staged.id,
		FileName:     s.staged.fileName,
		Locale:       s.staged.locale,
		CreatedAt:    s.staged.createdAt,
		Summary:      summarize(s.staged.rows),
		Transactions: slices.Clone(s.staged.rows),
	}, nil
}

// UpdateStaged applies a review edit to one staged transaction. An edit that
// would make the row invalid is rejected and leaves the row unchanged.
func (s *ImportService) UpdateStaged(id uuid.UUID, p transaction.Patch) (*StagedTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil {
		return nil, ErrNothingStaged
	}
	i := slices.IndexFunc(s.staged.rows, func(r StagedTransaction) bool { return r.ID == id })
	if i < 0 {
		return nil, ErrTransactionNotFound
	}

	row := s.staged.rows[i]
	updated, err := row.Apply(p)
	if err != nil {
		return nil, err
	}
	row.Transaction = updated
	if p.Category != nil {
		row.MatchedBy = "manual"
		if row.Category != "" {
			row.Suggestions = nil
		}
	}
	s.staged.rows[i] = row
	return &row, nil
}

// Cancel discards the staged batch. It reports whether one existed.
func (s *ImportService) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil {
		return false
	}
	s.logger.Info("import cancelled", "batch_id", s.staged.id, "rows", len(s.staged.rows))
	s.staged = nil
	s.metrics.batch(stateCancelled)
	s.metrics.setStaged(0)
	return true
}

// ExpireStaged discards the staged batch when it was staged more than maxAge
// ago. It reports whether a batch was dropped.
func (s *ImportService) ExpireStaged(maxAge time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil || s.now().Sub(s.staged.createdAt) <= maxAge {
		return false
	}
	s.logger.Info("staged import expired",
		"batch_id", s.staged.id,
		"rows", len(s.staged.rows),
		"staged_at", s.staged.createdAt,
	)
	s.staged = nil
	s.metrics.batch(stateExpired)
	s.metrics.setStaged(0)
	return true
}

// Finalize commits the staged batch in one call to the transaction store.
// The batch is cleared only when the store succeeds; on failure it stays
// staged and can be retried or cancelled.
func (s *ImportService) Finalize(ctx context.Context) (*FinalizeResult, error) {
	ctx, span := s.tracer.Start(ctx, "import.Finalize")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil {
		return nil, ErrNothingStaged
	}
	batch := s.staged
	span.SetAttributes(attribute.String("import.batch_id", batch.id.String()))

	var sourceFile *storage.FileInfo
	if s.archive != nil && len(batch.fileData) > 0 {
		info, err := s.archive.Upload(ctx, batch.id, batch.fileName, bytes.NewReader(batch.fileData))
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.metrics.batch(stateFailed)
			return nil, fmt.Errorf("failed to archive source file: %w", err)
		}
		sourceFile = info
	}

	txs := make([]transaction.Transaction, len(batch.rows))
	for i, r := range batch.rows {
		txs[i] = r.Transaction
	}

	if err := s.store.SaveTransactions(ctx, batch.id, txs); err != nil {
		if sourceFile != nil {
			if derr := s.archive.Delete(ctx, batch.id, sourceFile.ID); derr != nil {
				s.logger.Warn("failed to remove archived source file", "batch_id", batch.id, slog.Any("error", derr))
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		s.metrics.batch(stateFailed)
		s.logger.Error("import finalize failed", "batch_id", batch.id, slog.Any("error", err))
		return nil, fmt.Errorf("failed to save batch %s: %w", batch.id, err)
	}

	summary := transaction.Summarize(txs)
	result := &FinalizeResult{
		BatchID: batch.id,
		Saved:   len(txs),
		Ignored: summary.Ignored,
		Summary: summary,
	}
	if sourceFile != nil {
		result.SourceFileID = &sourceFile.ID
	}

	s.staged = nil
	s.metrics.batch(stateFinalized)
	s.metrics.setStaged(0)
	s.logger.Info("import finalized", "batch_id", batch.id, "saved", result.Saved, "ignored", result.Ignored)
	return result, nil
}

func summarize(rows []StagedTransaction) transaction.Summary {
	txs := make([]transaction.Transaction, len(rows))
	for i, r := range rows {
		txs[i] = r.Transaction
	}
	return transaction.Summarize(txs)
}
