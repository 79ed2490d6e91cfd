// Package state holds the shared, lock-arbitrated state of a service
// process: the metadata document, the embedding adapter, the columnar
// store connection, and the in-flight task registries.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Repository is the persisted record for one indexed Git repository.
type Repository struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Path             string    `json:"path"`
	LastIndexedCommit string   `json:"last_indexed_commit"`
	LastGraphCommit   string   `json:"last_graph_commit"`
	ChunkCount       int       `json:"chunk_count"`
	EdgeCount        int       `json:"edge_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	LastError        string    `json:"last_error,omitempty"`
	EmbedPending     bool      `json:"embed_pending"`
	Indexing         bool      `json:"indexing"`
	GraphBuilding    bool      `json:"graph_building"`
}

// Workspace aliases a set of repository identifiers under a name.
type Workspace struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RepoIDs     []string  `json:"repo_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingConfig is the persisted provider configuration, reloaded on
// every `initialize` to reconstruct the embedding adapter (spec §4.3).
type EmbeddingConfig struct {
	Provider   string `json:"provider"`
	BaseURL    string `json:"base_url,omitempty"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	Region     string `json:"region,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

// Metadata is the whole-document JSON persisted at {data_dir}/metadata.json.
// Every mutation that changes visible state rewrites the whole document.
type Metadata struct {
	Repositories map[string]*Repository `json:"repositories"`
	Workspaces   map[string]*Workspace  `json:"workspaces"`
	Embedding    EmbeddingConfig        `json:"embedding"`
}

func newMetadata() *Metadata {
	return &Metadata{
		Repositories: make(map[string]*Repository),
		Workspaces:   make(map[string]*Workspace),
	}
}

// loadMetadata reads the metadata document from path, defaulting missing
// fields when the file does not yet exist.
func loadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return newMetadata(), nil
	}
	if err != nil {
		return nil, err
	}
	md := newMetadata()
	if err := json.Unmarshal(data, md); err != nil {
		return nil, err
	}
	if md.Repositories == nil {
		md.Repositories = make(map[string]*Repository)
	}
	if md.Workspaces == nil {
		md.Workspaces = make(map[string]*Workspace)
	}
	return md, nil
}

// save rewrites the whole document atomically.
func (m *Metadata) save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// RepositoryID is the hex SHA-256 of a canonicalised filesystem path.
func RepositoryID(canonicalPath string) string {
	sum := sha256.Sum256([]byte(canonicalPath))
	return hex.EncodeToString(sum[:])
}

// CanonicalizePath resolves symlinks and makes the path absolute, as
// required before deriving a repository identifier.
func CanonicalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Path may not exist yet under symlink resolution rules on some
		// platforms; fall back to the absolute form.
		return abs, nil
	}
	return resolved, nil
}
