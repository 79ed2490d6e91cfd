package graph

import (
	"context"

	"github.com/cerp-labs/codeintel/internal/lang"
	"github.com/cerp-labs/codeintel/internal/storage"
)

// SymbolInfo is the direct-pass record described by spec §4.6:
// {name, type, start_line, end_line}.
type SymbolInfo struct {
	Name      string
	Category  lang.Category
	StartLine int
	EndLine   int
}

// ownerIndex is the merged symbol index of spec §4.6 step 2: a mapping
// from short symbol name to the set of files that directly declare it,
// used to answer "unique owner" questions during reference resolution.
// Direct-pass extraction takes precedence over the chunks-table mirror.
type ownerIndex struct {
	owners map[string]map[string]bool // name -> set of files
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{owners: make(map[string]map[string]bool)}
}

func (o *ownerIndex) add(name, file string) {
	if name == "" {
		return
	}
	set, ok := o.owners[name]
	if !ok {
		set = make(map[string]bool)
		o.owners[name] = set
	}
	set[file] = true
}

// uniqueOwner returns the single owning file for name, and true only if
// exactly one file owns it (spec: "ambiguity yields empty file").
func (o *ownerIndex) uniqueOwner(name string) (string, bool) {
	set, ok := o.owners[name]
	if !ok || len(set) != 1 {
		return "", false
	}
	for file := range set {
		return file, true
	}
	return "", false
}

// mergeFromChunks adds chunks-table symbol rows for names not already
// present from direct extraction, per the "direct extraction takes
// precedence" rule — rows for a name that direct-pass already saw are
// skipped entirely, even for a different owning file.
func (o *ownerIndex) mergeFromChunks(ctx context.Context, store *storage.Store, repoID string) error {
	chunks, err := store.QueryChunks(ctx, storageFilterSymbolRows(repoID), 0)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if c.SymbolName == "" {
			continue
		}
		if _, alreadyDirect := o.owners[c.SymbolName]; alreadyDirect {
			continue
		}
		o.add(c.SymbolName, c.FilePath)
	}
	return nil
}

func storageFilterSymbolRows(repoID string) *storage.Filter {
	return storage.NewFilter().Eq("repo_id", repoID)
}

// containingSymbol returns the innermost symbol in symbols whose
// [start_line, end_line] contains line, tie-breaking by smallest span;
// empty string if none contains it.
func containingSymbol(symbols []SymbolInfo, line int) string {
	best := ""
	bestSpan := -1
	for _, s := range symbols {
		if line < s.StartLine || line > s.EndLine {
			continue
		}
		span := s.EndLine - s.StartLine
		if bestSpan == -1 || span < bestSpan {
			bestSpan = span
			best = s.Name
		}
	}
	return best
}
