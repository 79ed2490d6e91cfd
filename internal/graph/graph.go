// Package graph implements the two-pass graph builder of spec §4.6: a
// direct symbol index merged with the chunks table, then reference
// resolution against an import map and a five-rule precedence chain.
package graph

import (
	"context"
	"log/slog"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/lang"
	"github.com/cerp-labs/codeintel/internal/scanner"
	"github.com/cerp-labs/codeintel/internal/storage"
)

// edgeBatchSize is the upsert batching boundary from spec §4.6.
const edgeBatchSize = 500

// symbolCacheSize bounds the per-file direct-pass symbol cache used
// during pass 2.
const symbolCacheSize = 2048

// Result is returned from a successful Build.
type Result struct {
	EdgeCount int
}

// Builder runs the graph build pipeline over one repository at a time.
type Builder struct {
	store     *storage.Store
	registry  *lang.Registry
	extractor *lang.Extractor
	logger    *slog.Logger
}

// NewBuilder constructs a Builder writing into store.
func NewBuilder(store *storage.Store, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:     store,
		registry:  lang.NewRegistry(),
		extractor: lang.NewExtractor(),
		logger:    logger,
	}
}

// Close releases the underlying tree-sitter parser.
func (b *Builder) Close() { b.extractor.Close() }

// Build performs a full graph build for repoID rooted at repoPath,
// sharing the same skip and language policies as the indexer. Prior
// edges for the repository are deleted wholesale at the start; on
// cancellation the task returns an error and leaves whatever edges
// have already been upserted intact.
func (b *Builder) Build(ctx context.Context, repoID, repoPath string, cancel <-chan struct{}) (*Result, error) {
	b.logger.Info("graph build started", slog.String("repo_id", repoID))

	if err := b.store.DeleteEdges(ctx, storage.NewFilter().Eq("repo_id", repoID)); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "delete prior edges", err)
	}

	sc, err := scanner.New(repoPath, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "open scanner", err)
	}

	symbolCache, err := lru.New[string, []SymbolInfo](symbolCacheSize)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "create symbol cache", err)
	}

	owners := newOwnerIndex()

	// Pass 1: direct symbol index.
	walkErr := sc.Walk(ctx, cancel, func(f scanner.File) error {
		spec, ok := b.specFor(f.RelPath)
		if !ok || !spec.HasGrammar {
			return nil
		}
		source, err := os.ReadFile(f.AbsPath)
		if err != nil {
			b.logger.Debug("graph pass1 skip unreadable file", slog.String("path", f.RelPath))
			return nil
		}
		symbols, err := b.extractor.ExtractSymbols(ctx, spec, source)
		if err != nil {
			b.logger.Debug("graph pass1 skip unparsable file", slog.String("path", f.RelPath))
			return nil
		}
		infos := toSymbolInfos(symbols)
		symbolCache.Add(f.RelPath, infos)
		for _, s := range infos {
			owners.add(s.Name, f.RelPath)
		}
		return nil
	})
	if walkErr != nil {
		return nil, mapWalkErr(walkErr)
	}

	if err := owners.mergeFromChunks(ctx, b.store, repoID); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "merge chunk symbol rows", err)
	}

	// Pass 2: reference resolution.
	var batch []storage.Edge
	total := 0
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := b.store.UpsertEdges(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	walkErr = sc.Walk(ctx, cancel, func(f scanner.File) error {
		spec, ok := b.specFor(f.RelPath)
		if !ok || !spec.HasGrammar {
			return nil
		}
		source, err := os.ReadFile(f.AbsPath)
		if err != nil {
			return nil
		}
		refs, err := b.extractor.ExtractReferences(ctx, spec, source)
		if err != nil {
			return nil
		}

		direct := b.directSymbols(ctx, spec, f.RelPath, source, symbolCache)
		imports := buildImportMap(refs)

		for _, ref := range refs {
			res := resolveTarget(ref.Name, ref.EdgeType, imports, f.RelPath, direct, owners)
			edge := storage.Edge{
				RepoID:          repoID,
				SourceFile:      f.RelPath,
				SourceLine:      ref.StartLine,
				SourceSymbol:    containingSymbol(direct, ref.StartLine),
				TargetName:      ref.Name,
				TargetQualified: res.Qualified,
				TargetFile:      res.File,
				EdgeType:        string(ref.EdgeType),
			}
			edge.ID = edgeID(edge)
			batch = append(batch, edge)
			if len(batch) >= edgeBatchSize {
				select {
				case <-cancel:
					return errs.ErrCancelled
				case <-ctx.Done():
					return errs.ErrCancelled
				default:
				}
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, mapWalkErr(walkErr)
	}
	if err := flush(); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "flush edges", err)
	}

	b.logger.Info("graph build finished", slog.String("repo_id", repoID), slog.Int("edge_count", total))
	return &Result{EdgeCount: total}, nil
}

// directSymbols returns file's direct-pass symbol slice, consulting the
// bounded cache first and re-parsing on a miss (eviction or a file with
// no grammar captured in pass 1).
func (b *Builder) directSymbols(ctx context.Context, spec *lang.Spec, relPath string, source []byte, cache *lru.Cache[string, []SymbolInfo]) []SymbolInfo {
	if infos, ok := cache.Get(relPath); ok {
		return infos
	}
	symbols, err := b.extractor.ExtractSymbols(ctx, spec, source)
	if err != nil {
		return nil
	}
	infos := toSymbolInfos(symbols)
	cache.Add(relPath, infos)
	return infos
}

func (b *Builder) specFor(relPath string) (*lang.Spec, bool) {
	return b.registry.ByExtension(extOf(relPath))
}

func toSymbolInfos(symbols []lang.Symbol) []SymbolInfo {
	infos := make([]SymbolInfo, len(symbols))
	for i, s := range symbols {
		infos[i] = SymbolInfo{Name: s.Name, Category: s.Category, StartLine: s.StartLine, EndLine: s.EndLine}
	}
	return infos
}

func mapWalkErr(err error) error {
	if errs.IsCancelled(err) {
		return err
	}
	return errs.Wrap(errs.KindInternal, "walk repository", err)
}
