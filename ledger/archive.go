package ledger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"sidequest/faults"
)

// Archive is a local, searchable copy of every award, indexed with Bleve.
// It backs the award history endpoint; like every other sink it is
// best-effort and never authoritative.
type Archive struct {
	mu    sync.RWMutex
	index bleve.Index
}

// NewArchive opens or creates the award index at path. An empty path
// builds an in-memory index, which suits tests and dev mode.
func NewArchive(path string) (*Archive, error) {
	var index bleve.Index
	var err error

	switch {
	case path == "":
		index, err = bleve.NewMemOnly(buildArchiveMapping())
	default:
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			index, err = bleve.New(path, buildArchiveMapping())
		} else {
			index, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open award index: %w", err)
	}

	return &Archive{index: index}, nil
}

// buildArchiveMapping creates the Bleve index mapping for award entries.
func buildArchiveMapping() mapping.IndexMapping {
	entryMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()
	numberFieldMapping := bleve.NewNumericFieldMapping()

	entryMapping.AddFieldMappingsAt("title", textFieldMapping)
	entryMapping.AddFieldMappingsAt("reason", textFieldMapping)
	entryMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	entryMapping.AddFieldMappingsAt("task_id", keywordFieldMapping)
	entryMapping.AddFieldMappingsAt("source", keywordFieldMapping)
	entryMapping.AddFieldMappingsAt("points", numberFieldMapping)
	entryMapping.AddFieldMappingsAt("awarded_at", dateFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = entryMapping
	indexMapping.DefaultAnalyzer = standard.Name

	return indexMapping
}

// Append implements the Ledger interface.
func (a *Archive) Append(ctx context.Context, entry Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.index.Index(entry.ID, entry); err != nil {
		return faults.WrapWithCode(err, faults.CodeLedgerWrite, "index award "+entry.ID)
	}
	return nil
}

// Search returns archived awards matching queryText, newest first. An
// empty query returns the most recent awards.
func (a *Archive) Search(ctx context.Context, queryText string, limit int) ([]Entry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	var q query.Query
	if strings.TrimSpace(queryText) == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewMatchQuery(queryText)
	}

	searchReq := bleve.NewSearchRequest(q)
	searchReq.Size = limit
	searchReq.Fields = []string{"*"}
	searchReq.SortBy([]string{"-awarded_at"})

	searchResult, err := a.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	entries := make([]Entry, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		entry := Entry{ID: hit.ID}
		if v, ok := hit.Fields["task_id"].(string); ok {
			entry.TaskID = v
		}
		if v, ok := hit.Fields["title"].(string); ok {
			entry.Title = v
		}
		if v, ok := hit.Fields["source"].(string); ok {
			entry.Source = v
		}
		if v, ok := hit.Fields["reason"].(string); ok {
			entry.Reason = v
		}
		if v, ok := hit.Fields["points"].(float64); ok {
			entry.Points = int(v)
		}
		if v, ok := hit.Fields["awarded_at"].(string); ok {
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				entry.AwardedAt = ts
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Close releases the index.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.index.Close()
}
