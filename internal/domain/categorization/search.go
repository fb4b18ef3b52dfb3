package categorization

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-ingest/internal/domain/import/normalizer"
)

// searchDocument is the indexed form of a category.
type searchDocument struct {
	Name string `json:"name"`
	Text string `json:"text"` // folded name and keywords
	Type string `json:"type"`
}

// SearchHit is a category found by free-text search.
type SearchHit struct {
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	Score      float64   `json:"score"`
}

// CategoryIndex is an in-memory full-text index over category names and
// keywords, used by the review screen's category picker. It tolerates one
// typo per word and matches word prefixes.
type CategoryIndex struct {
	index bleve.Index
	mu    sync.RWMutex
}

// NewCategoryIndex indexes the given categories.
func NewCategoryIndex(categories []Category) (*CategoryIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	ci := &CategoryIndex{index: index}
	if err := ci.Reindex(categories); err != nil {
		_ = index.Close()
		return nil, err
	}
	return ci, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("type", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

// Reindex replaces the indexed documents with categories.
func (ci *CategoryIndex) Reindex(categories []Category) error {
	ci.mu.Lock()
	defer ci.mu.Unlock()

	count, err := ci.index.DocCount()
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}

	batch := ci.index.NewBatch()
	if count > 0 {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.Size = int(count)
		res, err := ci.index.Search(req)
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
	}

	for _, c := range categories {
		doc := searchDocument{
			Name: c.Name,
			Text: normalizer.Normalize(strings.Join(c.EffectiveKeywords(), " ")),
			Type: string(c.Type),
		}
		if err := batch.Index(c.ID.String(), doc); err != nil {
			return fmt.Errorf("failed to index category %s: %w", c.Name, err)
		}
	}

	if err := ci.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Search returns categories ranked by relevance to q.
func (ci *CategoryIndex) Search(q string, limit int) ([]SearchHit, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	folded := strings.TrimSpace(normalizer.Normalize(q))
	if folded == "" {
		return nil, nil
	}

	match := bleve.NewMatchQuery(folded)
	match.SetField("text")
	match.SetFuzziness(1)

	queries := []query.Query{match}
	for _, word := range strings.Fields(folded) {
		prefix := bleve.NewPrefixQuery(word)
		prefix.SetField("text")
		queries = append(queries, prefix)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	req.Fields = []string{"name"}

	res, err := ci.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		name, _ := h.Fields["name"].(string)
		hits = append(hits, SearchHit{CategoryID: id, Name: name, Score: h.Score})
	}
	return hits, nil
}

// Close releases the index.
func (ci *CategoryIndex) Close() error {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	return ci.index.Close()
}
