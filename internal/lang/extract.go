package lang

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Symbol is one named declaration captured by the symbol query.
type Symbol struct {
	Name      string
	Category  Category
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
	Text      string
}

// Reference is one call/import/implements target captured by the
// reference query.
type Reference struct {
	Name      string
	EdgeType  EdgeType
	StartLine int
	EndLine   int
}

// Extractor parses source files and runs the symbol/reference queries
// against them for one Spec at a time.
type Extractor struct {
	parser *sitter.Parser
}

// NewExtractor creates an Extractor. It is not safe for concurrent use;
// callers needing concurrency should create one Extractor per goroutine.
func NewExtractor() *Extractor {
	return &Extractor{parser: sitter.NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (e *Extractor) Close() {
	if e.parser != nil {
		e.parser.Close()
	}
}

func (e *Extractor) parse(ctx context.Context, spec *Spec, source []byte) (*Tree, error) {
	if !spec.HasGrammar {
		return nil, fmt.Errorf("lang: %s has no grammar", spec.Name)
	}
	e.parser.SetLanguage(spec.tsLanguage)
	tsTree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("lang: parse %s: %w", spec.Name, err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("lang: parse %s: nil tree", spec.Name)
	}
	return &Tree{Root: convertNode(tsTree.RootNode()), Source: source}, nil
}

// ExtractSymbols runs the symbol query over source, returning one Symbol
// per matched declaration, in document order.
func (e *Extractor) ExtractSymbols(ctx context.Context, spec *Spec, source []byte) ([]Symbol, error) {
	tree, err := e.parse(ctx, spec, source)
	if err != nil {
		return nil, err
	}

	var symbols []Symbol
	tree.Root.Walk(func(n *Node) bool {
		category, ok := spec.symbolTypes[n.Type]
		if !ok {
			return true
		}
		name := symbolName(spec, n, source)
		if name == "" {
			return true
		}
		symbols = append(symbols, Symbol{
			Name:      name,
			Category:  category,
			StartLine: int(n.StartPoint.Row) + 1,
			EndLine:   int(n.EndPoint.Row) + 1,
			Text:      n.Content(source),
		})
		return true
	})
	return symbols, nil
}

// ExtractReferences runs the reference query over source, returning one
// Reference per call/import/implements target.
func (e *Extractor) ExtractReferences(ctx context.Context, spec *Spec, source []byte) ([]Reference, error) {
	tree, err := e.parse(ctx, spec, source)
	if err != nil {
		return nil, err
	}

	var refs []Reference
	tree.Root.Walk(func(n *Node) bool {
		switch {
		case spec.callTypes[n.Type]:
			if name := callTargetName(n, source); name != "" {
				refs = append(refs, Reference{
					Name: name, EdgeType: EdgeCalls,
					StartLine: int(n.StartPoint.Row) + 1, EndLine: int(n.EndPoint.Row) + 1,
				})
			}
		case spec.importTypes[n.Type]:
			for _, name := range importTargetNames(n, source) {
				refs = append(refs, Reference{
					Name: name, EdgeType: EdgeImports,
					StartLine: int(n.StartPoint.Row) + 1, EndLine: int(n.EndPoint.Row) + 1,
				})
			}
		case spec.Name == "python" && n.Type == "class_definition":
			if bases := n.Child("argument_list"); bases != nil {
				for _, name := range implementsTargetNames(bases, source) {
					refs = append(refs, Reference{
						Name: name, EdgeType: EdgeImplements,
						StartLine: int(bases.StartPoint.Row) + 1, EndLine: int(bases.EndPoint.Row) + 1,
					})
				}
			}
		case spec.implementsTypes[n.Type]:
			for _, name := range implementsTargetNames(n, source) {
				refs = append(refs, Reference{
					Name: name, EdgeType: EdgeImplements,
					StartLine: int(n.StartPoint.Row) + 1, EndLine: int(n.EndPoint.Row) + 1,
				})
			}
		}
		return true
	})
	return refs, nil
}

// symbolName extracts the symbol_name sub-capture for a matched symbol node.
func symbolName(spec *Spec, n *Node, source []byte) string {
	switch spec.Name {
	case "go":
		return goSymbolName(n, source)
	case "python":
		if id := n.Child("identifier"); id != nil {
			return id.Content(source)
		}
	case "typescript", "tsx", "javascript", "jsx":
		return jsSymbolName(n, source)
	}
	return ""
}

func goSymbolName(n *Node, source []byte) string {
	switch n.Type {
	case "function_declaration":
		if id := n.Child("identifier"); id != nil {
			return id.Content(source)
		}
	case "method_declaration":
		if id := n.Child("field_identifier"); id != nil {
			return id.Content(source)
		}
	case "type_declaration":
		if spec := n.Child("type_spec"); spec != nil {
			if id := spec.Child("type_identifier"); id != nil {
				return id.Content(source)
			}
		}
	}
	return ""
}

func jsSymbolName(n *Node, source []byte) string {
	if id := n.Child("identifier"); id != nil {
		return id.Content(source)
	}
	if id := n.Child("type_identifier"); id != nil {
		return id.Content(source)
	}
	if id := n.Child("property_identifier"); id != nil {
		return id.Content(source)
	}
	return ""
}

// callTargetName extracts the callee name from a call expression, taking
// the rightmost identifier of a member/attribute chain (e.g. `a.b.c()` ->
// `c`), matching the spec's "name takes precedence over module path" rule.
func callTargetName(n *Node, source []byte) string {
	if len(n.Children) == 0 {
		return ""
	}
	callee := n.Children[0]
	return rightmostIdentifier(callee, source)
}

func rightmostIdentifier(n *Node, source []byte) string {
	switch n.Type {
	case "identifier", "property_identifier", "field_identifier":
		return n.Content(source)
	case "attribute", "selector_expression", "member_expression":
		if len(n.Children) > 0 {
			return rightmostIdentifier(n.Children[len(n.Children)-1], source)
		}
	}
	// Fall back: last identifier-ish descendant.
	var last string
	n.Walk(func(c *Node) bool {
		if c.Type == "identifier" || c.Type == "property_identifier" || c.Type == "field_identifier" {
			last = c.Content(source)
		}
		return true
	})
	return last
}

// importTargetNames extracts import targets from one import node, stripping
// surrounding quotes from string-literal module paths and keeping each
// target's full spelling; the graph builder's import map derives the
// trailing short name used as its key.
func importTargetNames(n *Node, source []byte) []string {
	var names []string
	n.Walk(func(c *Node) bool {
		if c.Type == "interpreted_string_literal" || c.Type == "string" || c.Type == "string_literal" {
			names = append(names, stripQuotes(c.Content(source)))
			return false
		}
		return true
	})
	if len(names) == 0 {
		// Python "from x import y" / "import y" without a string literal:
		// fall back to dotted_name / identifier content.
		n.Walk(func(c *Node) bool {
			if c.Type == "dotted_name" || (c.Type == "identifier" && c != n) {
				names = append(names, c.Content(source))
				return false
			}
			return true
		})
	}
	return names
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func implementsTargetNames(n *Node, source []byte) []string {
	var names []string
	n.Walk(func(c *Node) bool {
		if c.Type == "identifier" || c.Type == "type_identifier" {
			names = append(names, c.Content(source))
		}
		return true
	})
	return names
}
