// Package scanner walks a repository's working tree, honouring hidden-file
// suppression and all three Git ignore layers, and hands back the file list
// the indexer and graph builder both chunk/parse from (spec §4.5, §4.6).
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cerp-labs/codeintel/internal/errs"
	"github.com/cerp-labs/codeintel/internal/gitignore"
)

// MaxFileSize is the per-file size cap; larger files are skipped (spec §4.4).
const MaxFileSize = 1 << 20 // 1 MiB

// denyExtensions are binary/asset extensions skipped regardless of size.
var denyExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".svg": true, ".webp": true, ".pdf": true, ".zip": true,
	".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".so": true, ".dylib": true, ".dll": true, ".exe": true, ".bin": true,
	".o": true, ".a": true, ".class": true, ".jar": true, ".wasm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".webm": true,
	".db": true, ".sqlite": true, ".sqlite3": true, ".lock": true,
}

// gitignoreCacheSize bounds the number of compiled per-directory matchers
// kept alive during one walk, preventing unbounded memory growth on very
// large trees.
const gitignoreCacheSize = 1000

// File is one eligible file discovered by a walk.
type File struct {
	// AbsPath is the file's absolute path on disk.
	AbsPath string
	// RelPath is the path relative to the repository root, slash-separated.
	RelPath string
	// Size is the file size in bytes.
	Size int64
}

// Scanner walks a repository root applying hidden-file suppression, the
// three gitignore layers, the deny-list, and the size cap.
type Scanner struct {
	root string

	mu             sync.Mutex
	globalMatcher  *gitignore.Matcher
	dirMatcherLRU  *lru.Cache[string, *gitignore.Matcher]
	excludeGlobs   []string
}

// New creates a Scanner rooted at root. excludeGlobs are additional
// filepath.Match-style patterns, matched against both the relative path
// and its base name.
func New(root string, excludeGlobs []string) (*Scanner, error) {
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, err
	}

	global := gitignore.New()
	if home, err := os.UserHomeDir(); err == nil {
		_ = global.LoadLayer(filepath.Join(home, ".config", "git", "ignore"), "")
	}
	_ = global.LoadLayer(filepath.Join(root, ".git", "info", "exclude"), "")

	return &Scanner{
		root:          root,
		globalMatcher: global,
		dirMatcherLRU: cache,
		excludeGlobs:  excludeGlobs,
	}, nil
}

// Walk invokes fn for every eligible file under the repository root, in
// lexical order. It checks cancel before each step so long walks over huge
// trees can be aborted promptly (spec §4.5 "Cancellation").
func (s *Scanner) Walk(ctx context.Context, cancel <-chan struct{}, fn func(File) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-cancel:
			return errs.ErrCancelled
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // unreadable entry: skip, don't abort the whole walk
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && base != "." {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if s.ignored(rel, true) {
				return fs.SkipDir
			}
			return nil
		}

		if s.ignored(rel, false) {
			return nil
		}
		if denyExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > MaxFileSize {
			return nil
		}

		return fn(File{AbsPath: path, RelPath: rel, Size: info.Size()})
	})
}

func (s *Scanner) ignored(relPath string, isDir bool) bool {
	for _, pat := range s.excludeGlobs {
		if matched, _ := filepath.Match(pat, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(pat, filepath.Base(relPath)); matched {
			return true
		}
	}

	if s.globalMatcher.Match(relPath, isDir) {
		return true
	}

	return s.directoryMatcher(filepath.Dir(relPath)).Match(relPath, isDir)
}

// directoryMatcher returns the gitignore matcher effective for dir,
// merging .gitignore files from dir up to the repository root. Results are
// cached per directory to avoid recompiling ancestor patterns repeatedly.
func (s *Scanner) directoryMatcher(dir string) *gitignore.Matcher {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.dirMatcherLRU.Get(dir); ok {
		return m
	}

	m := gitignore.New()
	var parents []string
	cur := dir
	for {
		parents = append(parents, cur)
		if cur == "." || cur == "" {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	for i := len(parents) - 1; i >= 0; i-- {
		p := parents[i]
		giPath := filepath.Join(s.root, p, ".gitignore")
		base := ""
		if p != "." {
			base = p
		}
		_ = m.LoadLayer(giPath, base)
	}

	s.dirMatcherLRU.Add(dir, m)
	return m
}
