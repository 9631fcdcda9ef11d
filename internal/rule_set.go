package internal

import (
	"fmt"
	"go/token"

	"github.com/gnoswap-labs/borrowck"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

// Rule turns the diagnostics of one kind into issues.
type Rule interface {
	// Name returns the rule name, which is the diagnostic kind name.
	Name() string
	// Issue converts a diagnostic of this rule's kind.
	Issue(diag borrowck.Diagnostic) tt.Issue
	Severity() tt.Severity
	SetSeverity(tt.Severity)
}

type kindRule struct {
	kind     borrowck.Kind
	category string
	severity tt.Severity
	// hint returns the suggestion and note for a diagnostic.
	hint func(borrowck.Diagnostic) (suggestion, note string)
}

func (r *kindRule) Name() string              { return r.kind.String() }
func (r *kindRule) Severity() tt.Severity     { return r.severity }
func (r *kindRule) SetSeverity(s tt.Severity) { r.severity = s }

func (r *kindRule) Issue(diag borrowck.Diagnostic) tt.Issue {
	pos := token.Position{
		Filename: diag.Location.File,
		Line:     diag.Location.Line,
		Column:   diag.Location.Column,
	}
	issue := tt.Issue{
		Rule:     r.Name(),
		Category: r.category,
		Filename: diag.Location.File,
		Message:  diag.Message,
		Start:    pos,
		End:      pos,
		Severity: r.severity,
	}
	if diag.Conflict != borrowck.ConflictNone {
		issue.Category = diag.Conflict.String()
	}
	if r.hint != nil {
		issue.Suggestion, issue.Note = r.hint(diag)
	}
	return issue
}

type ruleConstructor func() Rule

type ruleMap map[string]ruleConstructor

func newKindRule(kind borrowck.Kind, category string, severity tt.Severity, hint func(borrowck.Diagnostic) (string, string)) ruleConstructor {
	return func() Rule {
		return &kindRule{kind: kind, category: category, severity: severity, hint: hint}
	}
}

var allRuleConstructors = ruleMap{
	borrowck.KindUseAfterMove.String():    newKindRule(borrowck.KindUseAfterMove, "ownership", tt.SeverityError, movedHint),
	borrowck.KindUseAfterDrop.String():    newKindRule(borrowck.KindUseAfterDrop, "ownership", tt.SeverityError, relatedNote("value dropped here")),
	borrowck.KindDoubleMove.String():      newKindRule(borrowck.KindDoubleMove, "ownership", tt.SeverityError, movedHint),
	borrowck.KindDoubleDrop.String():      newKindRule(borrowck.KindDoubleDrop, "ownership", tt.SeverityError, relatedNote("first dropped here")),
	borrowck.KindBorrowConflict.String():  newKindRule(borrowck.KindBorrowConflict, "borrow", tt.SeverityError, conflictHint),
	borrowck.KindDanglingBorrow.String():  newKindRule(borrowck.KindDanglingBorrow, "lifetime", tt.SeverityError, relatedNote("borrowed value declared here")),
	borrowck.KindUnknownBinding.String():  newKindRule(borrowck.KindUnknownBinding, "scope", tt.SeverityError, nil),
	borrowck.KindMutability.String():      newKindRule(borrowck.KindMutability, "mutability", tt.SeverityError, mutabilityHint),
	borrowck.KindExpiredBorrow.String():   newKindRule(borrowck.KindExpiredBorrow, "lifetime", tt.SeverityError, relatedNote("borrow created here")),
	borrowck.KindUnbalancedScope.String(): newKindRule(borrowck.KindUnbalancedScope, "scope", tt.SeverityWarning, nil),
}

// IsRule reports whether name is a known rule.
func IsRule(name string) bool {
	_, ok := allRuleConstructors[name]
	return ok
}

func relatedNote(what string) func(borrowck.Diagnostic) (string, string) {
	return func(diag borrowck.Diagnostic) (string, string) {
		if diag.Related == nil {
			return "", ""
		}
		return "", fmt.Sprintf("%s: %s", what, diag.Related)
	}
}

func movedHint(diag borrowck.Diagnostic) (string, string) {
	_, note := relatedNote("value moved here")(diag)
	if diag.Binding == "" {
		return "", note
	}
	return fmt.Sprintf("clone %s -> %s_copy", diag.Binding, diag.Binding), note
}

func conflictHint(diag borrowck.Diagnostic) (string, string) {
	_, note := relatedNote("conflicting borrow created here")(diag)
	switch diag.Conflict {
	case borrowck.ConflictMoveOutOfBorrow:
		return fmt.Sprintf("clone %s -> %s_owned", diag.Binding, diag.Binding), note
	case borrowck.ConflictSharedWhileExclusive, borrowck.ConflictExclusiveWhileBorrowed:
		if note != "" {
			note += "\n"
		}
		return "", note + "end the earlier borrow before creating this one"
	default:
		return "", note
	}
}

func mutabilityHint(diag borrowck.Diagnostic) (string, string) {
	_, note := relatedNote("declared here")(diag)
	return "", note
}

// DefaultRules returns every rule with its default severity.
func DefaultRules() map[string]tt.ConfigRule {
	rules := make(map[string]tt.ConfigRule, len(allRuleConstructors))
	for key, newRule := range allRuleConstructors {
		rules[key] = tt.ConfigRule{Severity: newRule().Severity()}
	}
	return rules
}
