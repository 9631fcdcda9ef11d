package trace

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/gnoswap-labs/borrowck"
)

// opSpec is one entry of the `ops` list of a YAML trace.
type opSpec struct {
	Op    string `yaml:"op"`
	Name  string `yaml:"name"`
	To    string `yaml:"to"`
	Mut   bool   `yaml:"mut"`
	Copy  bool   `yaml:"copy"`
	Hoist int    `yaml:"hoist"`
}

type document struct {
	Version yaml.Node   `yaml:"version"`
	Ops     []yaml.Node `yaml:"ops"`
}

// DecodeYAML decodes a YAML trace. Entries keep the line and column of their
// mapping node, and `# nolint` comments on an entry are collected like text
// trace comments.
func DecodeYAML(filename string, src []byte) (*Trace, error) {
	var doc document
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", filename, err)
	}

	t := &Trace{Filename: filename}
	var errs error
	if doc.Version.Kind != 0 && doc.Version.Value != "" {
		v, err := checkVersion(doc.Version.Value)
		if err != nil {
			loc := borrowck.Location{File: filename, Line: doc.Version.Line, Column: doc.Version.Column}
			errs = multierr.Append(errs, &SyntaxError{Loc: loc, Msg: err.Error(), Err: err})
		}
		t.Version = v
	}

	for i := range doc.Ops {
		node := &doc.Ops[i]
		loc := borrowck.Location{File: filename, Line: node.Line, Column: node.Column}

		var spec opSpec
		if err := node.Decode(&spec); err != nil {
			errs = multierr.Append(errs, &SyntaxError{Loc: loc, Msg: err.Error()})
			continue
		}
		op, err := spec.operation()
		if err != nil {
			errs = multierr.Append(errs, &SyntaxError{Loc: loc, Msg: err.Error()})
			continue
		}
		t.Ops = append(t.Ops, op.At(loc))
		t.Comments = append(t.Comments, nodeComments(node)...)
	}

	if errs != nil {
		return nil, errs
	}
	return t, nil
}

func (s opSpec) operation() (borrowck.Operation, error) {
	kind, ok := borrowck.ParseOpKind(s.Op)
	if !ok {
		return borrowck.Operation{}, fmt.Errorf("unknown op %q", s.Op)
	}

	op := borrowck.Operation{
		Kind:    kind,
		Name:    s.Name,
		Target:  s.To,
		Mutable: s.Mut,
		Copy:    s.Copy,
		Hoist:   s.Hoist,
	}

	switch kind {
	case borrowck.OpEnterScope, borrowck.OpExitScope:
		return op, nil
	case borrowck.OpClone, borrowck.OpBorrowShared, borrowck.OpBorrowExclusive:
		if s.To == "" {
			return op, fmt.Errorf("%s needs `to`", s.Op)
		}
	}
	if s.Name == "" {
		return op, fmt.Errorf("%s needs `name`", s.Op)
	}
	if s.Hoist < 0 {
		return op, fmt.Errorf("hoist must not be negative, got %d", s.Hoist)
	}
	return op, nil
}

// nodeComments returns the comments attached to an entry. Head comments act
// like own-line comments, line comments like trailing ones.
func nodeComments(node *yaml.Node) []Comment {
	var out []Comment
	head := node.HeadComment
	if head == "" && len(node.Content) > 0 {
		head = node.Content[0].HeadComment
	}
	for _, line := range strings.Split(head, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, Comment{Text: line, Line: node.Line - 1, Column: 1})
		}
	}
	lineComment := node.LineComment
	for _, child := range node.Content {
		if lineComment != "" {
			break
		}
		lineComment = child.LineComment
	}
	if lineComment = strings.TrimSpace(lineComment); lineComment != "" {
		out = append(out, Comment{Text: lineComment, Line: node.Line, Column: node.Column, Trailing: true})
	}
	return out
}
