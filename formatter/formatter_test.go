package formatter

import (
	"bytes"
	"encoding/json"
	"go/token"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnoswap-labs/borrowck/internal"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestGenerateFormattedIssue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lines    []string
		issue    tt.Issue
		expected string
	}{
		{
			name:  "suggestion and note",
			lines: []string{"let a", "move a -> b", "use a # keep"},
			issue: tt.Issue{
				Rule:       "use-after-move",
				Filename:   "t.own",
				Message:    "`a` used after its value was moved",
				Suggestion: "clone a -> a_copy",
				Note:       "value moved here: 2:1",
				Start:      token.Position{Line: 3, Column: 1},
				End:        token.Position{Line: 3},
			},
			expected: "error: use-after-move\n" +
				" --> t.own:3:1\n" +
				"  |\n" +
				"3 | use a # keep\n" +
				"  | ^^^^^\n" +
				"  = `a` used after its value was moved\n" +
				"Suggestion:\n" +
				"  |\n" +
				"  | clone a -> a_copy\n" +
				"  |\n" +
				"Note: value moved here: 2:1\n" +
				"\n",
		},
		{
			name:  "borrow conflict",
			lines: []string{"let mut v", "ref r = &mut v", "ref s = &mut v", "use r"},
			issue: tt.Issue{
				Rule:     "borrow-conflict",
				Category: "exclusive_while_borrowed",
				Filename: "t.own",
				Message:  "cannot borrow `v` as mutable more than once at a time",
				Note:     "conflicting borrow created here: 2:1\nend the earlier borrow before creating this one",
				Start:    token.Position{Line: 3, Column: 1},
				End:      token.Position{Line: 3},
			},
			expected: "error: borrow-conflict\n" +
				" --> t.own:3:1\n" +
				"  |\n" +
				"3 | ref s = &mut v\n" +
				"  | ^^^^^^^^^^^^^^\n" +
				"  = cannot borrow `v` as mutable more than once at a time\n" +
				"  = conflict: a mutable borrow was requested while the value is already borrowed\n" +
				"Note: conflicting borrow created here: 2:1\n" +
				"Note: end the earlier borrow before creating this one\n" +
				"\n",
		},
		{
			name:  "indented yaml entry",
			lines: []string{"ops:", "  - op: use", "    name: r"},
			issue: tt.Issue{
				Rule:     "expired-borrow",
				Filename: "t.own.yaml",
				Message:  "`r` used after its borrow ended",
				Start:    token.Position{Line: 2, Column: 5},
				End:      token.Position{Line: 2},
				Severity: tt.SeverityWarning,
			},
			expected: "warning: expired-borrow\n" +
				" --> t.own.yaml:2:5\n" +
				"  |\n" +
				"2 | - op: use\n" +
				"  |   ^^^^^^^\n" +
				"  = `r` used after its borrow ended\n" +
				"  = help: the borrow ended after its last use or at `end`; borrow the value again\n" +
				"\n",
		},
		{
			name:  "line outside the source",
			lines: []string{"let a", "}"},
			issue: tt.Issue{
				Rule:     "unbalanced-scope",
				Message:  "scope exit without a matching scope entry",
				Start:    token.Position{Line: 10, Column: 1},
				End:      token.Position{Line: 10},
				Severity: tt.SeverityInfo,
			},
			expected: "info: unbalanced-scope\n" +
				"  --> <stdin>:10:1\n" +
				"   |\n" +
				"   | scope exit without a matching scope entry\n" +
				"\n",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			result := GenerateFormattedIssue([]tt.Issue{test.issue}, &internal.SourceCode{Lines: test.lines})
			assert.Equal(t, test.expected, result)
		})
	}
}

func TestGenerateFormattedIssue_Multiple(t *testing.T) {
	t.Parallel()

	code := internal.NewSourceCode([]byte("let a\ndrop a\ndrop a\n\tdrop a\n"))
	issues := []tt.Issue{
		{Rule: "double-drop", Filename: "d.own", Message: "first", Start: token.Position{Line: 3, Column: 1}, End: token.Position{Line: 3}},
		{Rule: "double-drop", Filename: "d.own", Message: "second", Start: token.Position{Line: 4, Column: 2}, End: token.Position{Line: 4}},
	}

	expected := "error: double-drop\n" +
		" --> d.own:3:1\n" +
		"  |\n" +
		"3 | drop a\n" +
		"  | ^^^^^^\n" +
		"  = first\n" +
		"\n" +
		"error: double-drop\n" +
		" --> d.own:4:2\n" +
		"  |\n" +
		"4 | drop a\n" +
		"  | ^^^^^^\n" +
		"  = second\n" +
		"\n"
	assert.Equal(t, expected, GenerateFormattedIssue(issues, code))
	assert.NotPanics(t, func() { GenerateFormattedIssue(issues, nil) })
}

func TestLastColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line     string
		expected int
	}{
		{"use a", 5},
		{"use a   ", 5},
		{"use a # nolint", 5},
		{"  - op: use", 11},
		{"# only a comment", 0},
		{"", 0},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, lastColumn(test.line), test.line)
	}
}

func TestCalculateVisualColumn(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, calculateVisualColumn("use a", 1))
	assert.Equal(t, 4, calculateVisualColumn("use a", 5))
	assert.Equal(t, 8, calculateVisualColumn("\tuse a", 2))
	assert.Equal(t, 0, calculateVisualColumn("use a", -1))
}

func TestFindCommonIndent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "  ", findCommonIndent([]string{"    a", "  b", "", "   c"}))
	assert.Equal(t, "", findCommonIndent([]string{"a", "  b"}))
	assert.Equal(t, "", findCommonIndent(nil))
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	issues := []tt.Issue{
		{Rule: "double-drop", Filename: "b.own", Start: token.Position{Line: 3, Column: 1}, Severity: tt.SeverityWarning},
		{Rule: "use-after-move", Filename: "a.own", Start: token.Position{Line: 1, Column: 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, issues))

	var decoded map[string][]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "double-drop", decoded["b.own"][0]["rule"])
	assert.Equal(t, "WARNING", decoded["b.own"][0]["severity"])
	assert.Equal(t, "ERROR", decoded["a.own"][0]["severity"])
}

func TestSummary(t *testing.T) {
	t.Parallel()

	issues := []tt.Issue{
		{Severity: tt.SeverityError},
		{Severity: tt.SeverityError},
		{Severity: tt.SeverityWarning},
	}
	assert.Equal(t, "2 errors, 1 warning", Summary(issues))
	assert.Equal(t, "0 errors, 0 warnings", Summary(nil))
	assert.Equal(t, "0 errors, 0 warnings, 2 info", Summary([]tt.Issue{{Severity: tt.SeverityInfo}, {Severity: tt.SeverityInfo}}))
}
