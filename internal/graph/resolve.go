package graph

import (
	"strings"

	"github.com/cerp-labs/codeintel/internal/lang"
)

// importMap maps a trailing short name to the full import spelling, built
// from one file's imports references (spec §4.6 step 2): key by rsplit
// on "::" first, else on "/", with surrounding quotes stripped (the
// extractor already strips quotes on import targets).
type importMap map[string]string

func buildImportMap(refs []lang.Reference) importMap {
	m := make(importMap)
	for _, ref := range refs {
		if ref.EdgeType != lang.EdgeImports {
			continue
		}
		m[shortName(ref.Name)] = ref.Name
	}
	return m
}

func shortName(target string) string {
	if idx := strings.LastIndex(target, "::"); idx != -1 {
		return target[idx+2:]
	}
	if idx := strings.LastIndex(target, "/"); idx != -1 {
		return target[idx+1:]
	}
	return target
}

// resolution is the outcome of the §4.6 step 3 precedence rules.
type resolution struct {
	Qualified string
	File      string
}

// resolveTarget applies the five-rule precedence over (target_qualified,
// target_file) for one reference's raw target name.
func resolveTarget(name string, edgeType lang.EdgeType, imports importMap, currentFile string, direct []SymbolInfo, owners *ownerIndex) resolution {
	// Rule 1: already qualified.
	if isQualified(name, edgeType) {
		short := shortName(name)
		file, _ := owners.uniqueOwner(short)
		return resolution{Qualified: name, File: file}
	}

	// Rule 2: import-guided.
	if qualified, ok := imports[name]; ok {
		file, _ := owners.uniqueOwner(name)
		return resolution{Qualified: qualified, File: file}
	}

	// Rule 3: same-file.
	for _, s := range direct {
		if s.Name == name {
			return resolution{Qualified: name, File: currentFile}
		}
	}

	// Rule 4: global unique owner.
	if file, ok := owners.uniqueOwner(name); ok {
		return resolution{Qualified: name, File: file}
	}

	// Rule 5: unresolved.
	return resolution{}
}

// isQualified reports whether name is already a qualified spelling:
// contains "::", or is an imports-edge target containing "/".
func isQualified(name string, edgeType lang.EdgeType) bool {
	if strings.Contains(name, "::") {
		return true
	}
	if edgeType == lang.EdgeImports && strings.Contains(name, "/") {
		return true
	}
	return false
}
