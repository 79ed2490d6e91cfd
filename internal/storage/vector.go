package storage

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// vectorIndex is a pure-Go HNSW nearest-neighbour index over chunk vectors,
// persisted alongside the sqlite database via gob-encoded ID mappings.
// Distance is cosine; score is computed by the caller as 1 - distance per
// spec §4.7, not the quadratic rescaling some HNSW wrappers apply.
type vectorIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	dims    int
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

type vectorIndexMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
}

func newVectorIndex(dims int) *vectorIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 40
	return &vectorIndex{
		graph:  g,
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

func (v *vectorIndex) upsert(id string, vec []float32) error {
	if len(vec) != v.dims {
		return fmt.Errorf("storage: vector dimension mismatch: want %d, got %d", v.dims, len(vec))
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if existing, ok := v.idMap[id]; ok {
		delete(v.keyMap, existing)
		delete(v.idMap, id)
	}
	key := v.nextKey
	v.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeInPlace(normalized)

	v.graph.Add(hnsw.MakeNode(key, normalized))
	v.idMap[id] = key
	v.keyMap[key] = id
	return nil
}

func (v *vectorIndex) delete(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok := v.idMap[id]; ok {
		delete(v.keyMap, key)
		delete(v.idMap, id)
	}
}

type vectorHit struct {
	ID       string
	Distance float32
}

func (v *vectorIndex) search(query []float32, k int) ([]vectorHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(query) != v.dims {
		return nil, fmt.Errorf("storage: query vector dimension mismatch: want %d, got %d", v.dims, len(query))
	}
	if v.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	nodes := v.graph.Search(normalized, k)
	hits := make([]vectorHit, 0, len(nodes))
	for _, n := range nodes {
		id, ok := v.keyMap[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, vectorHit{ID: id, Distance: v.graph.Distance(normalized, n.Value)})
	}
	return hits, nil
}

func (v *vectorIndex) save(path string) error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := v.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	metaTmp := path + ".meta.tmp"
	mf, err := os.Create(metaTmp)
	if err != nil {
		return err
	}
	meta := vectorIndexMeta{IDMap: v.idMap, NextKey: v.nextKey, Dims: v.dims}
	if err := gob.NewEncoder(mf).Encode(meta); err != nil {
		mf.Close()
		os.Remove(metaTmp)
		return err
	}
	if err := mf.Close(); err != nil {
		return err
	}
	return os.Rename(metaTmp, path+".meta")
}

func (v *vectorIndex) load(path string) error {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		if os.IsNotExist(err) {
			return nil // fresh start, nothing persisted yet
		}
		return err
	}
	defer metaFile.Close()

	var meta vectorIndexMeta
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.graph.Import(bufio.NewReader(f)); err != nil {
		return err
	}
	v.idMap = meta.IDMap
	v.nextKey = meta.NextKey
	v.dims = meta.Dims
	v.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		v.keyMap[key] = id
	}
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
