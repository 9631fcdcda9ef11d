package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

// GroupByFile groups issues by file name.
func GroupByFile(issues []tt.Issue) map[string][]tt.Issue {
	issuesByFile := make(map[string][]tt.Issue)
	for _, issue := range issues {
		issuesByFile[issue.Filename] = append(issuesByFile[issue.Filename], issue)
	}
	return issuesByFile
}

// WriteJSON writes issues grouped by file name as one JSON object.
func WriteJSON(w io.Writer, issues []tt.Issue) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(GroupByFile(issues)); err != nil {
		return fmt.Errorf("error marshalling issues to JSON: %w", err)
	}
	return nil
}

// Summary counts issues per severity, e.g. "2 errors, 1 warning".
func Summary(issues []tt.Issue) string {
	var errors, warnings, infos int
	for _, issue := range issues {
		switch issue.Severity {
		case tt.SeverityError:
			errors++
		case tt.SeverityWarning:
			warnings++
		case tt.SeverityInfo:
			infos++
		}
	}

	out := errorStyle.Sprint(plural(errors, "error"))
	out += ", " + warningStyle.Sprint(plural(warnings, "warning"))
	if infos > 0 {
		out += ", " + infoStyle.Sprint(plural(infos, "info"))
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	if word == "info" {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
