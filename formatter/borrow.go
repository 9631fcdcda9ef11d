package formatter

// BorrowConflictFormatter names the kind of conflict below the message.
type BorrowConflictFormatter struct{}

func (f *BorrowConflictFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .EndLine .StartColumn .EndColumn .SnippetLines .CommonIndent -}}
{{conflict .Category .Padding -}}
{{suggestion .Suggestion .Padding -}}
{{note .Note}}
`
}

// LifetimeFormatter explains why a reference may no longer be used.
type LifetimeFormatter struct{}

func (f *LifetimeFormatter) IssueTemplate() string {
	return `{{header .Rule .Severity .MaxLineNumWidth .Filename .StartLine .StartColumn -}}
{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding -}}
{{underlineAndMessage .Message .Padding .StartLine .EndLine .StartColumn .EndColumn .SnippetLines .CommonIndent -}}
{{lifetime .Rule .Padding -}}
{{suggestion .Suggestion .Padding -}}
{{note .Note}}
`
}

var conflictDescriptions = map[string]string{
	"exclusive_while_borrowed": "a mutable borrow was requested while the value is already borrowed",
	"shared_while_exclusive":   "a shared borrow was requested while the value is mutably borrowed",
	"move_while_borrowed":      "the value was moved while a borrow of it is live",
	"mutate_while_borrowed":    "the value was mutated while a borrow of it is live",
	"use_while_exclusive":      "the owner was used while it is mutably borrowed",
	"move_out_of_borrow":       "a value cannot be moved out through a reference",
}

func conflict(category string, padding string) string {
	if category == "" {
		return ""
	}
	description, ok := conflictDescriptions[category]
	if !ok {
		description = category
	}
	return lineStyle.Sprintf("%s= ", padding) + warningStyle.Sprint("conflict: ") + description + "\n"
}

func lifetime(rule string, padding string) string {
	var help string
	switch rule {
	case DanglingBorrow:
		help = "a reference cannot be stored in a scope that outlives the value it borrows"
	case ExpiredBorrow:
		help = "the borrow ended after its last use or at `end`; borrow the value again"
	default:
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("help: ") + help + "\n"
}
