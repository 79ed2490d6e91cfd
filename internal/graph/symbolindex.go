package graph

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
)

// symbolDoc is the document shape indexed by the fuzzy symbol
// accelerator: (repo_id, symbol_name, file_path).
type symbolDoc struct {
	RepoID string `json:"repo_id"`
	Name   string `json:"name"`
	File   string `json:"file"`
}

// fuzzyIndex shortlists candidate files for a symbol name before the exact
// merged-index lookup runs. It is an accelerator only: callers must still
// apply the precedence rules in resolve.go against the shortlist.
type fuzzyIndex struct {
	index bleve.Index
}

func newFuzzyIndex() (*fuzzyIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("graph: create fuzzy symbol index: %w", err)
	}
	return &fuzzyIndex{index: idx}, nil
}

func (f *fuzzyIndex) add(repoID, name, file string) error {
	id := repoID + "\x00" + file + "\x00" + name
	return f.index.Index(id, symbolDoc{RepoID: repoID, Name: name, File: file})
}

// candidateFiles returns files whose indexed symbol name fuzzy-matches
// name, most relevant first, capped at limit.
func (f *fuzzyIndex) candidateFiles(repoID, name string, limit int) ([]string, error) {
	nameQuery := bleve.NewMatchQuery(name)
	nameQuery.SetField("name")
	repoQuery := bleve.NewMatchQuery(repoID)
	repoQuery.SetField("repo_id")

	query := bleve.NewConjunctionQuery(nameQuery, repoQuery)
	req := bleve.NewSearchRequest(query)
	req.Size = limit
	req.Fields = []string{"file"}

	result, err := f.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("graph: fuzzy symbol search: %w", err)
	}

	seen := make(map[string]bool, len(result.Hits))
	files := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		file, _ := hit.Fields["file"].(string)
		if file == "" || seen[file] {
			continue
		}
		seen[file] = true
		files = append(files, file)
	}
	return files, nil
}

func (f *fuzzyIndex) close() error {
	return f.index.Close()
}
