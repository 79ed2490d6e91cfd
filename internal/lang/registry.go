package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Category is a symbol's outer capture category.
type Category string

const (
	CategoryFunction   Category = "function"
	CategoryClass      Category = "class"
	CategoryStruct     Category = "struct"
	CategoryEnum       Category = "enum"
	CategoryInterface  Category = "interface"
	CategoryTrait      Category = "trait"
	CategoryImpl       Category = "impl"
	CategoryModule     Category = "module"
	CategoryTypeAlias  Category = "type_alias"
)

// EdgeType is a reference's outer capture category.
type EdgeType string

const (
	EdgeCalls      EdgeType = "calls"
	EdgeImports    EdgeType = "imports"
	EdgeImplements EdgeType = "implements"
)

// Spec describes one supported language: its grammar (if wired), its
// extension set, and the node-type tables that stand in for tree-sitter
// queries when walking the AST (see extract.go).
type Spec struct {
	Name       string
	Extensions []string

	// HasGrammar is false for languages declared but not wired to a
	// parser; files in these languages fall back to sliding-window
	// chunking and contribute no graph edges.
	HasGrammar bool

	tsLanguage *sitter.Language

	// symbolTypes maps a tree-sitter node type to the category it defines.
	symbolTypes map[string]Category
	// callTypes, importTypes, implementsTypes map node types to reference
	// edges of the corresponding kind.
	callTypes       map[string]bool
	importTypes     map[string]bool
	implementsTypes map[string]bool
}

// Registry resolves a Spec by file extension or language name.
type Registry struct {
	byExt  map[string]*Spec
	byName map[string]*Spec
}

// NewRegistry builds the default registry: real grammars for go, python,
// typescript, tsx, javascript, jsx, plus no-grammar declarations for the
// remaining supported languages.
func NewRegistry() *Registry {
	r := &Registry{byExt: map[string]*Spec{}, byName: map[string]*Spec{}}

	r.register(goSpec())
	r.register(pythonSpec())
	r.register(typescriptSpec())
	r.register(tsxSpec())
	r.register(javascriptSpec())
	r.register(jsxSpec())

	for _, s := range noGrammarSpecs() {
		r.register(s)
	}

	return r
}

func (r *Registry) register(s *Spec) {
	r.byName[s.Name] = s
	for _, ext := range s.Extensions {
		r.byExt[ext] = s
	}
}

// ByExtension looks up a Spec by file extension (including the leading dot).
func (r *Registry) ByExtension(ext string) (*Spec, bool) {
	s, ok := r.byExt[ext]
	return s, ok
}

// ByName looks up a Spec by language name.
func (r *Registry) ByName(name string) (*Spec, bool) {
	s, ok := r.byName[name]
	return s, ok
}

func goSpec() *Spec {
	return &Spec{
		Name:       "go",
		Extensions: []string{".go"},
		HasGrammar: true,
		tsLanguage: golang.GetLanguage(),
		symbolTypes: map[string]Category{
			"function_declaration": CategoryFunction,
			"method_declaration":   CategoryFunction,
			"type_declaration":     CategoryStruct,
		},
		callTypes:   map[string]bool{"call_expression": true},
		importTypes: map[string]bool{"import_spec": true},
	}
}

func pythonSpec() *Spec {
	return &Spec{
		Name:       "python",
		Extensions: []string{".py"},
		HasGrammar: true,
		tsLanguage: python.GetLanguage(),
		symbolTypes: map[string]Category{
			"function_definition": CategoryFunction,
			"class_definition":    CategoryClass,
		},
		callTypes:   map[string]bool{"call": true},
		importTypes: map[string]bool{"import_statement": true, "import_from_statement": true},
		// implements edges come from class_definition's argument_list,
		// handled as a special case in extract.go since argument_list
		// is also used for ordinary function calls.
	}
}

func jsLikeSymbolTypes() map[string]Category {
	return map[string]Category{
		"function_declaration": CategoryFunction,
		"method_definition":    CategoryFunction,
		"class_declaration":    CategoryClass,
	}
}

func typescriptSpec() *Spec {
	s := &Spec{
		Name:       "typescript",
		Extensions: []string{".ts"},
		HasGrammar: true,
		tsLanguage: typescript.GetLanguage(),
		symbolTypes: map[string]Category{
			"function_declaration":  CategoryFunction,
			"method_definition":     CategoryFunction,
			"class_declaration":     CategoryClass,
			"interface_declaration": CategoryInterface,
			"type_alias_declaration": CategoryTypeAlias,
		},
		callTypes:       map[string]bool{"call_expression": true},
		importTypes:     map[string]bool{"import_statement": true},
		implementsTypes: map[string]bool{"class_heritage": true},
	}
	return s
}

func tsxSpec() *Spec {
	s := typescriptSpec()
	s.Name = "tsx"
	s.Extensions = []string{".tsx"}
	s.tsLanguage = tsx.GetLanguage()
	return s
}

func javascriptSpec() *Spec {
	return &Spec{
		Name:            "javascript",
		Extensions:      []string{".js", ".mjs", ".cjs"},
		HasGrammar:      true,
		tsLanguage:      javascript.GetLanguage(),
		symbolTypes:     jsLikeSymbolTypes(),
		callTypes:       map[string]bool{"call_expression": true},
		importTypes:     map[string]bool{"import_statement": true},
		implementsTypes: map[string]bool{"class_heritage": true},
	}
}

func jsxSpec() *Spec {
	s := javascriptSpec()
	s.Name = "jsx"
	s.Extensions = []string{".jsx"}
	return s
}

// noGrammarSpecs declares the languages with no wired tree-sitter
// grammar. They still participate in language detection (for chunking
// metadata) but HasGrammar is false, so the chunker and graph builder
// skip straight to sliding-window chunking / no edges.
func noGrammarSpecs() []*Spec {
	return []*Spec{
		{Name: "rust", Extensions: []string{".rs"}},
		{Name: "java", Extensions: []string{".java"}},
		{Name: "c", Extensions: []string{".c", ".h"}},
		{Name: "cpp", Extensions: []string{".cpp", ".cc", ".cxx", ".hpp", ".hh"}},
		{Name: "kotlin", Extensions: []string{".kt", ".kts"}},
	}
}
