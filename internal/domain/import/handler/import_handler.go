// Package handler exposes the import service over Connect with JSON bodies.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/grid"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/sniffer"
	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ingest/pkg/storage"
)

// CategoryManager finds and edits the user's categories.
type CategoryManager interface {
	Search(ctx context.Context, q string, limit int) ([]categorization.SearchHit, error)
	ListCategories(ctx context.Context) ([]categorization.Category, error)
	CreateCategory(ctx context.Context, name string, typ categorization.CategoryType, keywords ...string) (*categorization.Category, error)
	AddKeyword(ctx context.Context, id uuid.UUID, keyword string) (*categorization.Category, error)
	RemoveKeyword(ctx context.Context, id uuid.UUID, keyword string) (*categorization.Category, error)
	RenameCategory(ctx context.Context, id uuid.UUID, name string) (*categorization.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// BatchReader reads finalized batches back.
type BatchReader interface {
	ListTransactions(ctx context.Context, batchID uuid.UUID) ([]transaction.Transaction, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*repository.BatchInfo, error)
}

// SourceArchive reads back the statement files kept for finalized batches.
type SourceArchive interface {
	List(ctx context.Context, batchID uuid.UUID) ([]*storage.FileInfo, error)
	Download(ctx context.Context, batchID, fileID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error)
}

// ImportHandler handles Import service RPCs
type ImportHandler struct {
	importSvc  *service.ImportService
	categories CategoryManager
	batches    BatchReader
	sources    SourceArchive
	logger     *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *service.ImportService, categories CategoryManager, batches BatchReader, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc:  importSvc,
		categories: categories,
		batches:    batches,
		logger:     logger,
	}
}

// WithSources serves the archived statement files of finalized batches.
func (h *ImportHandler) WithSources(a SourceArchive) *ImportHandler {
	h.sources = a
	return h
}

// Handler returns the path prefix and handler serving every procedure.
func (h *ImportHandler) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{CodecOption()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AnalyzeProcedure, connect.NewUnaryHandler(AnalyzeProcedure, h.Analyze, opts...))
	mux.Handle(ProcessProcedure, connect.NewUnaryHandler(ProcessProcedure, h.Process, opts...))
	mux.Handle(GetStagedProcedure, connect.NewUnaryHandler(GetStagedProcedure, h.GetStaged, opts...))
	mux.Handle(UpdateStagedProcedure, connect.NewUnaryHandler(UpdateStagedProcedure, h.UpdateStaged, opts...))
	mux.Handle(FinalizeProcedure, connect.NewUnaryHandler(FinalizeProcedure, h.Finalize, opts...))
	mux.Handle(CancelProcedure, connect.NewUnaryHandler(CancelProcedure, h.Cancel, opts...))
	mux.Handle(SearchCategoriesProcedure, connect.NewUnaryHandler(SearchCategoriesProcedure, h.SearchCategories, opts...))
	mux.Handle(ListBatchProcedure, connect.NewUnaryHandler(ListBatchProcedure, h.ListBatch, opts...))
	mux.Handle(DownloadSourceProcedure, connect.NewUnaryHandler(DownloadSourceProcedure, h.DownloadSource, opts...))

	mux.Handle(ListCategoriesProcedure, connect.NewUnaryHandler(ListCategoriesProcedure, h.ListCategories, opts...))
	mux.Handle(CreateCategoryProcedure, connect.NewUnaryHandler(CreateCategoryProcedure, h.CreateCategory, opts...))
	mux.Handle(AddKeywordProcedure, connect.NewUnaryHandler(AddKeywordProcedure, h.AddKeyword, opts...))
	mux.Handle(RemoveKeywordProcedure, connect.NewUnaryHandler(RemoveKeywordProcedure, h.RemoveKeyword, opts...))
	mux.Handle(RenameCategoryProcedure, connect.NewUnaryHandler(RenameCategoryProcedure, h.RenameCategory, opts...))
	mux.Handle(DeleteCategoryProcedure, connect.NewUnaryHandler(DeleteCategoryProcedure, h.DeleteCategory, opts...))
	return "/" + ServiceName + "/", mux
}

// Analyze reads an uploaded statement and proposes a mapping.
func (h *ImportHandler) Analyze(ctx context.Context, req *connect.Request[AnalyzeRequest]) (*connect.Response[AnalyzeResponse], error) {
	g, err := grid.ReadFile(req.Msg.File.Name, req.Msg.File.Data)
	if err != nil {
		return nil, toConnectError(err)
	}

	result, err := h.importSvc.Analyze(g)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AnalyzeResponse{AnalyzeResult: result}), nil
}

// Process stages the statement with the confirmed mapping.
func (h *ImportHandler) Process(ctx context.Context, req *connect.Request[ProcessRequest]) (*connect.Response[ProcessResponse], error) {
	locale, err := normalizer.ParseLocale(req.Msg.Locale)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, service.ErrInvalidLocale)
	}

	g, err := grid.ReadFile(req.Msg.File.Name, req.Msg.File.Data)
	if err != nil {
		return nil, toConnectError(err)
	}

	result, err := h.importSvc.Process(ctx, g, service.ProcessRequest{
		HeaderRow: req.Msg.HeaderRow,
		Mapping:   req.Msg.Mapping,
		Locale:    locale,
		FileName:  req.Msg.File.Name,
		FileData:  req.Msg.File.Data,
	})
	if errors.Is(err, service.ErrNoValidRows) && result != nil {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("%w (%s)", err, describeSkips(result)))
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ProcessResponse{ProcessResult: result}), nil
}

func (h *ImportHandler) GetStaged(ctx context.Context, _ *connect.Request[GetStagedRequest]) (*connect.Response[GetStagedResponse], error) {
	batch, err := h.importSvc.Staged()
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetStagedResponse{Batch: batch}), nil
}

func (h *ImportHandler) UpdateStaged(ctx context.Context, req *connect.Request[UpdateStagedRequest]) (*connect.Response[UpdateStagedResponse], error) {
	tx, err := h.importSvc.UpdateStaged(req.Msg.ID, req.Msg.Patch)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&UpdateStagedResponse{Transaction: tx}), nil
}

func (h *ImportHandler) Finalize(ctx context.Context, _ *connect.Request[FinalizeRequest]) (*connect.Response[FinalizeResponse], error) {
	result, err := h.importSvc.Finalize(ctx)
	if err != nil {
		if !errors.Is(err, service.ErrNothingStaged) {
			h.logger.Error("failed to finalize import", slog.Any("error", err))
		}
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&FinalizeResponse{FinalizeResult: result}), nil
}

func (h *ImportHandler) Cancel(ctx context.Context, _ *connect.Request[CancelRequest]) (*connect.Response[CancelResponse], error) {
	return connect.NewResponse(&CancelResponse{Discarded: h.importSvc.Cancel()}), nil
}

// SearchCategories powers the category picker of the review screen.
func (h *ImportHandler) SearchCategories(ctx context.Context, req *connect.Request[SearchCategoriesRequest]) (*connect.Response[SearchCategoriesResponse], error) {
	if h.categories == nil {
		return nil, categoriesOff()
	}
	hits, err := h.categories.Search(ctx, req.Msg.Query, req.Msg.Limit)
	if err != nil {
		h.logger.Error("category search failed", slog.Any("error", err))
		return nil, toConnectError(err)
	}
	if hits == nil {
		hits = []categorization.SearchHit{}
	}
	return connect.NewResponse(&SearchCategoriesResponse{Hits: hits}), nil
}

// ListBatch returns a finalized batch.
func (h *ImportHandler) ListBatch(ctx context.Context, req *connect.Request[ListBatchRequest]) (*connect.Response[ListBatchResponse], error) {
	if h.batches == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("batch history is not configured"))
	}
	if _, err := h.batches.GetBatch(ctx, req.Msg.BatchID); err != nil {
		return nil, toConnectError(err)
	}
	txs, err := h.batches.ListTransactions(ctx, req.Msg.BatchID)
	if err != nil {
		return nil, toConnectError(err)
	}
	if txs == nil {
		txs = []transaction.Transaction{}
	}

	sources := []*storage.FileInfo{}
	if h.sources != nil {
		if sources, err = h.sources.List(ctx, req.Msg.BatchID); err != nil {
			return nil, toConnectError(err)
		}
	}
	return connect.NewResponse(&ListBatchResponse{Transactions: txs, Summary: transaction.Summarize(txs), Sources: sources}), nil
}

// DownloadSource returns an archived statement file.
func (h *ImportHandler) DownloadSource(ctx context.Context, req *connect.Request[DownloadSourceRequest]) (*connect.Response[DownloadSourceResponse], error) {
	if h.sources == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("source archive is not configured"))
	}
	rc, info, err := h.sources.Download(ctx, req.Msg.BatchID, req.Msg.FileID)
	if err != nil {
		return nil, toConnectError(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, toConnectError(fmt.Errorf("failed to read source: %w", err))
	}
	return connect.NewResponse(&DownloadSourceResponse{File: File{Name: info.Name, Data: data}}), nil
}

// ============================================================================
// Categories
// ============================================================================

func categoriesOff() error {
	return connect.NewError(connect.CodeUnimplemented, errors.New("categories are not configured"))
}

func (h *ImportHandler) ListCategories(ctx context.Context, _ *connect.Request[ListCategoriesRequest]) (*connect.Response[ListCategoriesResponse], error) {
	if h.categories == nil {
		return nil, categoriesOff()
	}
	categories, err := h.categories.ListCategories(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if categories == nil {
		categories = []categorization.Category{}
	}
	return connect.NewResponse(&ListCategoriesResponse{Categories: categories}), nil
}

func (h *ImportHandler) CreateCategory(ctx context.Context, req *connect.Request[CreateCategoryRequest]) (*connect.Response[CategoryResponse], error) {
	if h.categories == nil {
		return nil, categoriesOff()
	}
	typ, err := categorization.ParseCategoryType(req.Msg.Type)
	if err != nil {
		return nil, toConnectError(err)
	}
	return h.categoryResponse(h.categories.CreateCategory(ctx, req.Msg.Name, typ, req.Msg.Keywords...))
}

func (h *ImportHandler) AddKeyword(ctx context.Context, req *connect.Request[KeywordRequest]) (*connect.Response[CategoryResponse], error) {
	if h.categories == nil {
		return nil, categoriesOff()
	}
	return h.categoryResponse(h.categories.AddKeyword(ctx, req.Msg.CategoryID, req.Msg.Keyword))
}

func (h *ImportHandler) RemoveKeyword(ctx context.Context, req *connect.Request[KeywordRequest]) (*connect.Response[CategoryResponse], error) {
	if h.categories == nil {
		return nil, categoriesOff()
	}
	return h.categoryResponse(h.categories.RemoveKeyword(ctx, req.Msg.CategoryID, req.Msg.Keyword))
}

func (h *ImportHandler) RenameCategory(ctx context.Context, req *connect.Request[RenameCategoryRequest]) (*connect.Response[CategoryResponse], error) {
	if h.categories == nil {
		return nil, categoriesOff()
	}
	return h.categoryResponse(h.categories.RenameCategory(ctx, req.Msg.CategoryID, req.Msg.Name))
}

func (h *ImportHandler) DeleteCategory(ctx context.Context, req *connect.Request[DeleteCategoryRequest]) (*connect.Response[DeleteCategoryResponse], error) {
	if h.categories == nil {
		return nil, categoriesOff()
	}
	if err := h.categories.DeleteCategory(ctx, req.Msg.CategoryID); err != nil {
		return nil, toConnectError(err)
	}
	h.logger.Info("category deleted", "category_id", req.Msg.CategoryID)
	return connect.NewResponse(&DeleteCategoryResponse{}), nil
}

func (h *ImportHandler) categoryResponse(c *categorization.Category, err error) (*connect.Response[CategoryResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CategoryResponse{Category: c}), nil
}

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, service.ErrMappingIncomplete),
		errors.Is(err, service.ErrColumnOutOfRange),
		errors.Is(err, service.ErrHeaderOutOfRange),
		errors.Is(err, service.ErrInvalidLocale),
		errors.Is(err, service.ErrNoDataRows),
		errors.Is(err, sniffer.ErrEmptyGrid),
		errors.Is(err, grid.ErrEmptyFile),
		errors.Is(err, grid.ErrUnsupportedFormat),
		errors.Is(err, grid.ErrNoSheet),
		errors.Is(err, transaction.ErrEmptyDescription),
		errors.Is(err, transaction.ErrZeroAmount),
		errors.Is(err, transaction.ErrInvalidDate),
		errors.Is(err, categorization.ErrEmptyName),
		errors.Is(err, categorization.ErrInvalidType),
		errors.Is(err, categorization.ErrEmptyKeyword):
		code = connect.CodeInvalidArgument
	case errors.Is(err, categorization.ErrKeywordExists):
		code = connect.CodeAlreadyExists
	case errors.Is(err, service.ErrNoValidRows),
		errors.Is(err, service.ErrNothingStaged),
		errors.Is(err, repository.ErrBelowMinorUnit):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, service.ErrTransactionNotFound),
		errors.Is(err, repository.ErrBatchNotFound),
		errors.Is(err, categorization.ErrCategoryNotFound),
		errors.Is(err, categorization.ErrKeywordNotFound),
		errors.Is(err, storage.ErrFileNotFound):
		code = connect.CodeNotFound
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}

func describeSkips(r *service.ProcessResult) string {
	parts := []string{fmt.Sprintf("%d data rows", r.DataRows)}
	add := func(n int, label string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, label))
		}
	}
	add(r.BlankRows, "blank")
	add(r.Skipped.InvalidDate, "invalid date")
	add(r.Skipped.EmptyDescription, "empty description")
	add(r.Skipped.ZeroAmount, "zero amount")
	return strings.Join(parts, ", ")
}
