// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// =============================================================================
// PYTHON PARSER
// =============================================================================

// pythonParseResult contains all extracted data from Python parsing.
type pythonParseResult struct {
	Classes   []Class
	Functions []Definition
	Calls     []Call
	Imports   []string
}

// PythonParser extracts classes, functions, calls and imports from Python
// source using Tree-sitter. Each Parse call creates its own tree-sitter
// parser, so a PythonParser is safe for concurrent use.
type PythonParser struct {
	logger               *slog.Logger
	tolerateSyntaxErrors bool
}

// NewPythonParser creates a Python parser. When tolerateSyntaxErrors is
// false, a tree containing error nodes is reported as a parse failure.
func NewPythonParser(logger *slog.Logger, tolerateSyntaxErrors bool) *PythonParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &PythonParser{logger: logger, tolerateSyntaxErrors: tolerateSyntaxErrors}
}

// pyScope is the lexical position of the walker.
type pyScope struct {
	class    string // innermost enclosing class
	function string // innermost enclosing function; the caller for calls
}

// pyWalker holds state during AST walking.
type pyWalker struct {
	content   []byte
	lines     []string
	classes   []Class
	functions []Definition
	calls     []Call
}

// Parse parses one Python file.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*pythonParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		errorCount := countErrors(root)
		if !p.tolerateSyntaxErrors {
			return nil, fmt.Errorf("syntax error (%d error nodes)", errorCount)
		}
		p.logger.Warn("parser.python.syntax_errors",
			"path", filePath,
			"error_count", errorCount,
		)
	}

	w := &pyWalker{
		content: content,
		lines:   splitLines(string(content)),
	}
	w.walk(root, pyScope{})

	return &pythonParseResult{
		Classes:   w.classes,
		Functions: w.functions,
		Calls:     w.calls,
		Imports:   extractPythonImports(root, content),
	}, nil
}

// walk recursively visits the tree, dispatching on definitions and calls.
func (w *pyWalker) walk(node *sitter.Node, scope pyScope) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "class_definition":
		w.visitClass(node, nil, scope)
		return
	case "function_definition":
		w.visitFunction(node, nil, scope, -1)
		return
	case "decorated_definition":
		w.visitDecorated(node, scope, -1)
		return
	case "call":
		w.recordCall(node, scope)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i), scope)
	}
}

// visitDecorated handles @decorator blocks around classes and functions.
// classIndex >= 0 means the definition sits directly in that class's body.
func (w *pyWalker) visitDecorated(node *sitter.Node, scope pyScope, classIndex int) {
	decorators := make([]string, 0)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}
		decorators = append(decorators, decoratorText(child, w.content))
		// Calls inside decorator expressions belong to the enclosing scope.
		w.walk(child, scope)
	}

	def := node.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Type() {
	case "class_definition":
		w.visitClass(def, decorators, scope)
	case "function_definition":
		w.visitFunction(def, decorators, scope, classIndex)
	}
}

// visitClass records a class and walks its body with the class in scope.
// Only definitions placed directly in the body become methods.
func (w *pyWalker) visitClass(node *sitter.Node, decorators []string, scope pyScope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, w.content)
	if decorators == nil {
		decorators = make([]string, 0)
	}

	w.classes = append(w.classes, Class{
		Name:         name,
		Methods:      make([]Definition, 0),
		Decorators:   decorators,
		Inheritances: superclasses(node.ChildByFieldName("superclasses"), w.content),
	})
	index := len(w.classes) - 1

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	classScope := pyScope{class: name}
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			w.visitFunction(child, nil, classScope, index)
		case "decorated_definition":
			w.visitDecorated(child, classScope, index)
		default:
			w.walk(child, classScope)
		}
	}
}

// visitFunction records a method (classIndex >= 0) or a free function
// (outside any class), then walks parameters and body with the function as
// the current caller.
func (w *pyWalker) visitFunction(node *sitter.Node, decorators []string, scope pyScope, classIndex int) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, w.content)
	if decorators == nil {
		decorators = make([]string, 0)
	}

	def := Definition{
		Name:       name,
		Content:    w.sourceSpan(node),
		Signature:  signature(node.ChildByFieldName("parameters"), w.content),
		Decorators: decorators,
	}

	switch {
	case classIndex >= 0:
		w.classes[classIndex].Methods = append(w.classes[classIndex].Methods, def)
	case scope.class == "":
		w.functions = append(w.functions, def)
	}

	inner := pyScope{class: scope.class, function: name}
	w.walk(node.ChildByFieldName("parameters"), inner)
	w.walk(node.ChildByFieldName("body"), inner)
}

// recordCall emits a call site when inside a function body. The callee is
// the bare identifier, or the attribute name for obj.method() calls.
func (w *pyWalker) recordCall(node *sitter.Node, scope pyScope) {
	if scope.function == "" {
		return
	}
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var called string
	switch fn.Type() {
	case "identifier":
		called = nodeText(fn, w.content)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			called = nodeText(attr, w.content)
		}
	}
	if called == "" {
		return
	}

	w.calls = append(w.calls, Call{
		CallerFunction: scope.function,
		CallerClass:    scope.class,
		CalledFunction: called,
	})
}

// sourceSpan returns the verbatim lines from the node's first to last line.
func (w *pyWalker) sourceSpan(node *sitter.Node) string {
	start := int(node.StartPoint().Row)
	end := int(node.EndPoint().Row)
	if start >= len(w.lines) {
		return ""
	}
	if end >= len(w.lines) {
		end = len(w.lines) - 1
	}
	return strings.Join(w.lines[start:end+1], "\n")
}

// signature collects regular parameter names and default value sources.
// Parameters before a / separator are positional-only and drop out of Args,
// though their defaults stay. Parameters after *args or a bare * are
// keyword-only and excluded, as is **kwargs.
func signature(params *sitter.Node, content []byte) Signature {
	sig := Signature{Args: make([]string, 0), Defaults: make([]string, 0)}
	if params == nil {
		return sig
	}

	for i := 0; i < int(params.NamedChildCount()); i++ {
		param := params.NamedChild(i)
		switch param.Type() {
		case "identifier":
			sig.Args = append(sig.Args, nodeText(param, content))
		case "typed_parameter":
			first := param.NamedChild(0)
			if first == nil {
				continue
			}
			switch first.Type() {
			case "identifier":
				sig.Args = append(sig.Args, nodeText(first, content))
			case "list_splat_pattern":
				return sig
			}
		case "default_parameter", "typed_default_parameter":
			if name := param.ChildByFieldName("name"); name != nil {
				sig.Args = append(sig.Args, nodeText(name, content))
			}
			if value := param.ChildByFieldName("value"); value != nil {
				sig.Defaults = append(sig.Defaults, nodeText(value, content))
			}
		case "positional_separator":
			sig.Args = sig.Args[:0]
		case "list_splat_pattern", "keyword_separator":
			return sig
		}
	}
	return sig
}

// superclasses returns base class expressions, skipping keyword arguments
// such as metaclass=.
func superclasses(args *sitter.Node, content []byte) []string {
	bases := make([]string, 0)
	if args == nil {
		return bases
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "keyword_argument", "comment", "dictionary_splat":
			continue
		}
		bases = append(bases, nodeText(arg, content))
	}
	return bases
}

// decoratorText returns the decorator expression without the leading @.
func decoratorText(node *sitter.Node, content []byte) string {
	if expr := node.NamedChild(0); expr != nil {
		return nodeText(expr, content)
	}
	return strings.TrimSpace(strings.TrimPrefix(nodeText(node, content), "@"))
}

// extractPythonImports collects imported module names in document order.
// "from . import x" has no module and is skipped.
func extractPythonImports(root *sitter.Node, content []byte) []string {
	imports := make([]string, 0)

	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		switch node.Type() {
		case "import_statement":
			for i := 0; i < int(node.NamedChildCount()); i++ {
				child := node.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					imports = append(imports, nodeText(child, content))
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						imports = append(imports, nodeText(name, content))
					}
				}
			}
			return
		case "import_from_statement":
			module := node.ChildByFieldName("module_name")
			if module == nil {
				return
			}
			switch module.Type() {
			case "dotted_name":
				imports = append(imports, nodeText(module, content))
			case "relative_import":
				for i := 0; i < int(module.NamedChildCount()); i++ {
					if child := module.NamedChild(i); child.Type() == "dotted_name" {
						imports = append(imports, nodeText(child, content))
					}
				}
			}
			return
		case "future_import_statement":
			imports = append(imports, "__future__")
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			visit(node.Child(i))
		}
	}
	visit(root)

	return imports
}

// countErrors counts ERROR and MISSING nodes in the tree.
func countErrors(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if node.IsError() || node.IsMissing() {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countErrors(node.Child(i))
	}
	return count
}

func nodeText(node *sitter.Node, content []byte) string {
	return string(content[node.StartByte():node.EndByte()])
}

// splitLines splits on \n and drops a trailing \r from each line.
func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
