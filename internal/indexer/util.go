package indexer

import "path/filepath"

func extOf(relPath string) string {
	return filepath.Ext(relPath)
}
