package nolint

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/gnoswap-labs/borrowck/internal/trace"
)

const nolintPrefix = "nolint"

// Manager manages nolint scopes and checks if a position is nolinted.
type Manager struct {
	// scopes maps filename to a slice of nolint scopes.
	scopes map[string][]nolintScope
}

// nolintScope is an inclusive line range where nolint applies.
type nolintScope struct {
	rules     map[string]struct{}
	startLine int
	endLine   int
}

// ParseComments parses the nolint comments of a trace and returns a Manager.
func ParseComments(t *trace.Trace) *Manager {
	manager := Manager{
		scopes: make(map[string][]nolintScope, 1),
	}
	opLines := indexOperationLines(t)

	for _, c := range t.Comments {
		ns, err := parseComment(c, opLines)
		if err != nil {
			// ignore invalid nolint comments
			continue
		}
		manager.scopes[t.Filename] = append(manager.scopes[t.Filename], ns)
	}
	return &manager
}

// parseComment parses a single nolint comment and determines its scope.
func parseComment(c trace.Comment, opLines []int) (nolintScope, error) {
	var ns nolintScope
	text := strings.TrimSpace(strings.TrimPrefix(c.Text, "#"))

	if !strings.HasPrefix(text, nolintPrefix) {
		return ns, fmt.Errorf("invalid nolint comment")
	}
	rest := text[len(nolintPrefix):]

	// A nolint comment can either have a list of rules after a colon (:)
	// or if no rules are specified, it applies to all rules
	if len(rest) > 0 && rest[0] != ':' {
		return ns, fmt.Errorf("invalid nolint comment format")
	}
	if len(rest) > 0 {
		rest = strings.TrimSpace(rest[1:])
		if rest == "" {
			return ns, fmt.Errorf("invalid nolint comment: no rules specified after colon")
		}
	}
	ns.rules = parseIgnoreRuleNames(rest)

	switch {
	case c.Trailing:
		// applies to the operation on the same line
		ns.startLine, ns.endLine = c.Line, c.Line
	case len(opLines) == 0 || c.Line < opLines[0]:
		// before the first operation: the whole file
		ns.startLine, ns.endLine = 1, int(^uint(0)>>1)
	default:
		// own line: from the comment to the next operation
		ns.startLine, ns.endLine = c.Line, c.Line
		if next, ok := nextLine(opLines, c.Line); ok {
			ns.endLine = next
		}
	}
	return ns, nil
}

// parseIgnoreRuleNames parses the rule list from the nolint comment.
func parseIgnoreRuleNames(text string) map[string]struct{} {
	rulesMap := make(map[string]struct{})
	if text == "" {
		return rulesMap
	}
	rules := strings.Split(text, ",")
	for _, rule := range rules {
		rule = strings.TrimSpace(rule)
		if rule != "" {
			rulesMap[rule] = struct{}{}
		}
	}
	return rulesMap
}

// indexOperationLines returns the sorted lines that carry an operation.
func indexOperationLines(t *trace.Trace) []int {
	lines := make([]int, 0, len(t.Ops))
	for _, op := range t.Ops {
		if n := len(lines); n > 0 && lines[n-1] == op.Loc.Line {
			continue
		}
		lines = append(lines, op.Loc.Line)
	}
	return lines
}

// nextLine finds the first operation line after line.
func nextLine(opLines []int, line int) (int, bool) {
	for _, l := range opLines {
		if l > line {
			return l, true
		}
	}
	return 0, false
}

// IsNolint checks if a given position and rule are nolinted.
func (m *Manager) IsNolint(pos token.Position, ruleName string) bool {
	scopes, exists := m.scopes[pos.Filename]
	if !exists {
		return false
	}
	for _, ns := range scopes {
		if pos.Line < ns.startLine || pos.Line > ns.endLine {
			continue
		}
		// If the rules list is empty, nolint applies to all rules
		if len(ns.rules) == 0 {
			return true
		}
		if _, exists := ns.rules[ruleName]; exists {
			return true
		}
	}
	return false
}
