package handler

import (
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
	"github.com/FACorreiaa/echo-ingest/pkg/storage"
)

// Procedure names of the import service.
const (
	ServiceName = "echo.ingest.v1.ImportService"

	AnalyzeProcedure          = "/" + ServiceName + "/Analyze"
	ProcessProcedure          = "/" + ServiceName + "/Process"
	GetStagedProcedure        = "/" + ServiceName + "/GetStaged"
	UpdateStagedProcedure     = "/" + ServiceName + "/UpdateStaged"
	FinalizeProcedure         = "/" + ServiceName + "/Finalize"
	CancelProcedure           = "/" + ServiceName + "/Cancel"
	SearchCategoriesProcedure = "/" + ServiceName + "/SearchCategories"
	ListBatchProcedure        = "/" + ServiceName + "/ListBatch"
	DownloadSourceProcedure   = "/" + ServiceName + "/DownloadSource"

	ListCategoriesProcedure = "/" + ServiceName + "/ListCategories"
	CreateCategoryProcedure = "/" + ServiceName + "/CreateCategory"
	AddKeywordProcedure     = "/" + ServiceName + "/AddKeyword"
	RemoveKeywordProcedure  = "/" + ServiceName + "/RemoveKeyword"
	RenameCategoryProcedure = "/" + ServiceName + "/RenameCategory"
	DeleteCategoryProcedure = "/" + ServiceName + "/DeleteCategory"
)

// File is an uploaded statement; Data is base64 in JSON.
type File struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

type AnalyzeRequest struct {
	File File `json:"file"`
}

type AnalyzeResponse struct {
	*service.AnalyzeResult
}

type ProcessRequest struct {
	File      File                  `json:"file"`
	HeaderRow int                   `json:"header_row"`
	Mapping   service.ColumnMapping `json:"mapping"`
	Locale    string                `json:"locale"`
}

type ProcessResponse struct {
	*service.ProcessResult
}

type GetStagedRequest struct{}

type GetStagedResponse struct {
	*service.Batch
}

type UpdateStagedRequest struct {
	ID    uuid.UUID         `json:"id"`
	Patch transaction.Patch `json:"patch"`
}

type UpdateStagedResponse struct {
	Transaction *service.StagedTransaction `json:"transaction"`
}

type FinalizeRequest struct{}

type FinalizeResponse struct {
	*service.FinalizeResult
}

type CancelRequest struct{}

type CancelResponse struct {
	Discarded bool `json:"discarded"`
}

type SearchCategoriesRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchCategoriesResponse struct {
	Hits []categorization.SearchHit `json:"hits"`
}

type ListBatchRequest struct {
	BatchID uuid.UUID `json:"batch_id"`
}

type ListBatchResponse struct {
	Transactions []transaction.Transaction `json:"transactions"`
	Summary      transaction.Summary       `json:"summary"`
	Sources      []*storage.FileInfo       `json:"sources"` // archived statement files
}

type DownloadSourceRequest struct {
	BatchID uuid.UUID `json:"batch_id"`
	FileID  uuid.UUID `json:"file_id"`
}

type DownloadSourceResponse struct {
	File File `json:"file"`
}

// ============================================================================
// Categories
// ============================================================================

type ListCategoriesRequest struct{}

type ListCategoriesResponse struct {
	Categories []categorization.Category `json:"categories"`
}

type CreateCategoryRequest struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"` // income or expense, "" = expense
	Keywords []string `json:"keywords"`
}

type KeywordRequest struct {
	CategoryID uuid.UUID `json:"category_id"`
	Keyword    string    `json:"keyword"`
}

type RenameCategoryRequest struct {
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
}

type DeleteCategoryRequest struct {
	CategoryID uuid.UUID `json:"category_id"`
}

type DeleteCategoryResponse struct{}

// CategoryResponse carries the category after a mutation.
type CategoryResponse struct {
	Category *categorization.Category `json:"category"`
}
