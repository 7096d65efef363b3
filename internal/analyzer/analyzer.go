// Package analyzer walks a source file's syntax tree and indexes every
// variable-name occurrence by position, for quick lookup when a stack
// frame reports a line/column. See spec §4.D.
package analyzer

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// AnalysisError wraps a parse failure for a specific language/filename
// pair.
type AnalysisError struct {
	Language string
	Filename string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzer: parsing %s as %s: %v", e.Filename, e.Language, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// VariableReference is one occurrence of a variable name in source
// text, kept verbatim including any language sigil (e.g. "$foo").
type VariableReference struct {
	Name   string
	Line   int // 0-based, matches tree-sitter's row numbering
	Column int // 0-based start column
}

// Analysis indexes every variable reference in a document by end row,
// then by start column, per spec §4.D.
type Analysis struct {
	byLine map[int]map[int]VariableReference
}

// References returns every variable reference recorded for line (the
// node's end row), or nil if none were found.
func (a *Analysis) References(line int) map[int]VariableReference {
	if a == nil {
		return nil
	}
	return a.byLine[line]
}

// Lines returns every line number that carries at least one reference.
func (a *Analysis) Lines() []int {
	if a == nil {
		return nil
	}
	lines := make([]int, 0, len(a.byLine))
	for l := range a.byLine {
		lines = append(lines, l)
	}
	return lines
}

func newAnalysis() *Analysis {
	return &Analysis{byLine: make(map[int]map[int]VariableReference)}
}

func (a *Analysis) record(ref VariableReference) {
	row := a.byLine[ref.Line]
	if row == nil {
		row = make(map[int]VariableReference)
		a.byLine[ref.Line] = row
	}
	row[ref.Column] = ref
}

// variableNodeType is the tree-sitter node type analyzed languages use
// for a bare variable reference (spec §4.D: "one variable reference
// per occurrence of a 'variable-name' node").
const variableNodeType = "variable_name"

// Analyze parses src with lang and walks the resulting tree, recording
// one VariableReference per variable_name node. Complexity is linear
// in node count: every node is visited exactly once via an explicit
// stack, no recursion.
func Analyze(lang *sitter.Language, languageName, filename string, src []byte) (*Analysis, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, &AnalysisError{Language: languageName, Filename: filename, Err: err}
	}

	analysis := newAnalysis()
	walk(tree.RootNode(), src, analysis)
	return analysis, nil
}

// walk visits every node in the tree with an explicit stack (spec §4.D
// "complexity is linear in node count").
func walk(root *sitter.Node, src []byte, analysis *Analysis) {
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}

		if n.Type() == variableNodeType {
			end := n.EndPoint()
			start := n.StartPoint()
			analysis.record(VariableReference{
				Name:   n.Content(src),
				Line:   int(end.Row),
				Column: int(start.Column),
			})
		}

		count := int(n.ChildCount())
		for i := 0; i < count; i++ {
			stack = append(stack, n.Child(i))
		}
	}
}
