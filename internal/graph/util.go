package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/cerp-labs/codeintel/internal/storage"
)

func extOf(relPath string) string {
	return filepath.Ext(relPath)
}

// edgeID computes the stable identifier of spec §3: SHA-256 of
// (repo_id, source_file, source_line, target_name, edge_type).
func edgeID(e storage.Edge) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%s\x00%s",
		e.RepoID, e.SourceFile, e.SourceLine, e.TargetName, e.EdgeType)))
	return hex.EncodeToString(sum[:])
}
