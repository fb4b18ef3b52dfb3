package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ingest/pkg/storage"
)

const statementCSV = "Extracto de cuenta;;\n" +
	"Fecha;Concepto;Importe\n" +
	"15/01/2024;Cena en Restaurantes XYZ;-45,50\n" +
	"16/01/2024;COMPRA MERCADONA 123456;-23,10\n" +
	"17/01/2024;;-5,00\n" +
	"18/01/2024;Nomina enero;1.850,00\n"

type testEnv struct {
	server *httptest.Server
	store  *repository.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store := repository.NewMemoryStore("EUR")
	cats := categorization.NewService(store, logger)
	_, err := cats.Seed(ctx, strings.NewReader("name,type,keywords\nRestaurante,expense,restaurantes\nSupermercado,expense,mercadona\nNómina,income,nomina\n"))
	require.NoError(t, err)

	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := service.NewImportService(store, store, logger).WithArchive(archive)
	h := NewImportHandler(svc, cats, store, logger).WithSources(archive)

	mux := http.NewServeMux()
	mux.Handle(h.Handler(connect.WithInterceptors(NewLoggingInterceptor(logger))))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: store}
}

func call[Req, Res any](t *testing.T, env *testEnv, procedure string, req *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](env.server.Client(), env.server.URL+procedure, CodecOption())
	res, err := client.CallUnary(context.Background(), connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

func statementFile() File {
	return File{Name: "enero.csv", Data: []byte(statementCSV)}
}

// ============================================================================
// Flow
// ============================================================================

func TestImportHandler_Flow(t *testing.T) {
	env := newTestEnv(t)

	analysis, err := call[AnalyzeRequest, AnalyzeResponse](t, env, AnalyzeProcedure, &AnalyzeRequest{File: statementFile()})
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.HeaderRow)
	assert.True(t, analysis.Suggestions.Complete())
	assert.Equal(t, "eu", string(analysis.Locale.Locale))

	processed, err := call[ProcessRequest, ProcessResponse](t, env, ProcessProcedure, &ProcessRequest{
		File:      statementFile(),
		HeaderRow: analysis.HeaderRow,
		Mapping:   service.MappingFromSuggestions(analysis.Suggestions),
		Locale:    string(analysis.Locale.Locale),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, processed.Imported)
	assert.Equal(t, 1, processed.Skipped.EmptyDescription)
	require.Len(t, processed.Transactions, 3)
	assert.Equal(t, "Restaurante", processed.Transactions[0].Category)
	assert.Equal(t, "Nómina", processed.Transactions[2].Category)

	ignored := true
	updated, err := call[UpdateStagedRequest, UpdateStagedResponse](t, env, UpdateStagedProcedure, &UpdateStagedRequest{
		ID:    processed.Transactions[1].ID,
		Patch: transaction.Patch{Ignored: &ignored},
	})
	require.NoError(t, err)
	assert.True(t, updated.Transaction.Ignored)

	staged, err := call[GetStagedRequest, GetStagedResponse](t, env, GetStagedProcedure, &GetStagedRequest{})
	require.NoError(t, err)
	assert.Equal(t, processed.BatchID, staged.ID)
	assert.Equal(t, 1, staged.Summary.Ignored)

	final, err := call[FinalizeRequest, FinalizeResponse](t, env, FinalizeProcedure, &FinalizeRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, final.Saved)
	assert.Equal(t, 1, final.Ignored)

	listed, err := call[ListBatchRequest, ListBatchResponse](t, env, ListBatchProcedure, &ListBatchRequest{BatchID: final.BatchID})
	require.NoError(t, err)
	assert.Len(t, listed.Transactions, 3)
	assert.Equal(t, "1804.5", listed.Summary.Net.String())
	require.Len(t, listed.Sources, 1)
	assert.Equal(t, "enero.csv", listed.Sources[0].Name)

	source, err := call[DownloadSourceRequest, DownloadSourceResponse](t, env, DownloadSourceProcedure, &DownloadSourceRequest{
		BatchID: final.BatchID,
		FileID:  listed.Sources[0].ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "enero.csv", source.File.Name)
	assert.Equal(t, statementCSV, string(source.File.Data))

	_, err = call[GetStagedRequest, GetStagedResponse](t, env, GetStagedProcedure, &GetStagedRequest{})
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

// ============================================================================
// Errors
// ============================================================================

func TestImportHandler_Process_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      ProcessRequest
		wantCode connect.Code
		wantMsg  string
	}{
		{
			name:     "mapping incomplete",
			req:      ProcessRequest{File: statementFile(), HeaderRow: 1, Mapping: service.UnsetMapping(), Locale: "eu"},
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "must all be mapped",
		},
		{
			name:     "bad locale",
			req:      ProcessRequest{File: statementFile(), HeaderRow: 1, Mapping: service.ColumnMapping{Date: 0, Description: 1, Amount: 2}, Locale: "fr"},
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "locale",
		},
		{
			name:     "empty file",
			req:      ProcessRequest{File: File{Name: "x.csv"}, Mapping: service.ColumnMapping{Date: 0, Description: 1, Amount: 2}, Locale: "eu"},
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "empty",
		},
		{
			name: "no valid rows",
			req: ProcessRequest{
				File:    File{Name: "x.csv", Data: []byte("Fecha;Concepto;Importe\nayer;;0\n")},
				Mapping: service.ColumnMapping{Date: 0, Description: 1, Amount: 2},
				Locale:  "eu",
			},
			wantCode: connect.CodeFailedPrecondition,
			wantMsg:  "1 invalid date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := call[ProcessRequest, ProcessResponse](t, env, ProcessProcedure, &tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestImportHandler_UpdateStaged_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := call[ProcessRequest, ProcessResponse](t, env, ProcessProcedure, &ProcessRequest{
		File: statementFile(), HeaderRow: 1, Mapping: service.ColumnMapping{Date: 0, Description: 1, Amount: 2}, Locale: "eu",
	})
	require.NoError(t, err)

	category := "x"
	_, err = call[UpdateStagedRequest, UpdateStagedResponse](t, env, UpdateStagedProcedure, &UpdateStagedRequest{
		ID: uuid.New(), Patch: transaction.Patch{Category: &category},
	})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestImportHandler_Cancel(t *testing.T) {
	env := newTestEnv(t)

	res, err := call[CancelRequest, CancelResponse](t, env, CancelProcedure, &CancelRequest{})
	require.NoError(t, err)
	assert.False(t, res.Discarded)

	_, err = call[FinalizeRequest, FinalizeResponse](t, env, FinalizeProcedure, &FinalizeRequest{})
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
}

func TestImportHandler_SearchCategories(t *testing.T) {
	env := newTestEnv(t)

	res, err := call[SearchCategoriesRequest, SearchCategoriesResponse](t, env, SearchCategoriesProcedure, &SearchCategoriesRequest{Query: "mercadon", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "Supermercado", res.Hits[0].Name)
}

func TestImportHandler_DownloadSource_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := call[DownloadSourceRequest, DownloadSourceResponse](t, env, DownloadSourceProcedure, &DownloadSourceRequest{
		BatchID: uuid.New(),
		FileID:  uuid.New(),
	})
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestImportHandler_Finalize_BelowMinorUnit(t *testing.T) {
	env := newTestEnv(t)
	_, err := call[ProcessRequest, ProcessResponse](t, env, ProcessProcedure, &ProcessRequest{
		File:    File{Name: "x.csv", Data: []byte("Fecha;Concepto;Importe\n15/01/2024;Comision;-0,004\n")},
		Mapping: service.ColumnMapping{Date: 0, Description: 1, Amount: 2},
		Locale:  "eu",
	})
	require.NoError(t, err)

	_, err = call[FinalizeRequest, FinalizeResponse](t, env, FinalizeProcedure, &FinalizeRequest{})
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	staged, err := call[GetStagedRequest, GetStagedResponse](t, env, GetStagedProcedure, &GetStagedRequest{})
	require.NoError(t, err, "batch stays staged for correction")
	assert.Len(t, staged.Transactions, 1)
}

// ============================================================================
// Categories
// ============================================================================

func TestImportHandler_CategoryLifecycle(t *testing.T) {
	env := newTestEnv(t)

	listed, err := call[ListCategoriesRequest, ListCategoriesResponse](t, env, ListCategoriesProcedure, &ListCategoriesRequest{})
	require.NoError(t, err)
	assert.Len(t, listed.Categories, 3)

	created, err := call[CreateCategoryRequest, CategoryResponse](t, env, CreateCategoryProcedure, &CreateCategoryRequest{
		Name: "Viajes", Keywords: []string{"ryanair"},
	})
	require.NoError(t, err)
	assert.Equal(t, categorization.TypeExpense, created.Category.Type)
	id := created.Category.ID

	added, err := call[KeywordRequest, CategoryResponse](t, env, AddKeywordProcedure, &KeywordRequest{CategoryID: id, Keyword: "renfe"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ryanair", "renfe"}, added.Category.Keywords)

	hits, err := call[SearchCategoriesRequest, SearchCategoriesResponse](t, env, SearchCategoriesProcedure, &SearchCategoriesRequest{Query: "renfe"})
	require.NoError(t, err)
	require.NotEmpty(t, hits.Hits, "search sees the new keyword")
	assert.Equal(t, "Viajes", hits.Hits[0].Name)

	removed, err := call[KeywordRequest, CategoryResponse](t, env, RemoveKeywordProcedure, &KeywordRequest{CategoryID: id, Keyword: "ryanair"})
	require.NoError(t, err)
	assert.Equal(t, []string{"renfe"}, removed.Category.Keywords)

	renamed, err := call[RenameCategoryRequest, CategoryResponse](t, env, RenameCategoryProcedure, &RenameCategoryRequest{CategoryID: id, Name: "Transporte"})
	require.NoError(t, err)
	assert.Equal(t, "Transporte", renamed.Category.Name)

	_, err = call[DeleteCategoryRequest, DeleteCategoryResponse](t, env, DeleteCategoryProcedure, &DeleteCategoryRequest{CategoryID: id})
	require.NoError(t, err)

	listed, err = call[ListCategoriesRequest, ListCategoriesResponse](t, env, ListCategoriesProcedure, &ListCategoriesRequest{})
	require.NoError(t, err)
	assert.Len(t, listed.Categories, 3)
}

func TestImportHandler_Category_Errors(t *testing.T) {
	env := newTestEnv(t)
	created, err := call[CreateCategoryRequest, CategoryResponse](t, env, CreateCategoryProcedure, &CreateCategoryRequest{
		Name: "Ocio", Type: "expense", Keywords: []string{"cine"},
	})
	require.NoError(t, err)
	id := created.Category.ID

	tests := []struct {
		name     string
		call     func() error
		wantCode connect.Code
	}{
		{
			name: "empty name",
			call: func() error {
				_, err := call[CreateCategoryRequest, CategoryResponse](t, env, CreateCategoryProcedure, &CreateCategoryRequest{Name: "  "})
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "bad type",
			call: func() error {
				_, err := call[CreateCategoryRequest, CategoryResponse](t, env, CreateCategoryProcedure, &CreateCategoryRequest{Name: "Bonus", Type: "gift"})
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "duplicate keyword",
			call: func() error {
				_, err := call[KeywordRequest, CategoryResponse](t, env, AddKeywordProcedure, &KeywordRequest{CategoryID: id, Keyword: "CINE"})
				return err
			},
			wantCode: connect.CodeAlreadyExists,
		},
		{
			name: "unknown keyword",
			call: func() error {
				_, err := call[KeywordRequest, CategoryResponse](t, env, RemoveKeywordProcedure, &KeywordRequest{CategoryID: id, Keyword: "teatro"})
				return err
			},
			wantCode: connect.CodeNotFound,
		},
		{
			name: "unknown category",
			call: func() error {
				_, err := call[RenameCategoryRequest, CategoryResponse](t, env, RenameCategoryProcedure, &RenameCategoryRequest{CategoryID: uuid.New(), Name: "x"})
				return err
			},
			wantCode: connect.CodeNotFound,
		},
		{
			name: "delete unknown category",
			call: func() error {
				_, err := call[DeleteCategoryRequest, DeleteCategoryResponse](t, env, DeleteCategoryProcedure, &DeleteCategoryRequest{CategoryID: uuid.New()})
				return err
			},
			wantCode: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, connect.CodeOf(tt.call()))
		})
	}
}

func TestImportHandler_PlainJSON(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.Client().Post(env.server.URL+CancelProcedure, "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"discarded":false}`, string(body))
}
