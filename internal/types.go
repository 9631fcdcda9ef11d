package internal

import (
	"os"
	"strings"
)

// SourceCode stores the content of a trace file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads a trace file into lines for snippet rendering.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewSourceCode(content), nil
}

// NewSourceCode splits source into lines.
func NewSourceCode(source []byte) *SourceCode {
	text := strings.ReplaceAll(string(source), "\r\n", "\n")
	return &SourceCode{Lines: strings.Split(text, "\n")}
}
