// Package trace decodes ownership traces from their text (*.own) and YAML
// (*.own.yaml) file formats.
package trace

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/gnoswap-labs/borrowck"
)

// SupportedVersions is the range of trace format versions this package reads.
const SupportedVersions = ">= 1.0, < 2.0"

var ErrUnsupportedVersion = errors.New("unsupported trace version")

// Trace is a decoded trace file.
type Trace struct {
	Filename string
	// Version is nil when the file has no version header.
	Version  *semver.Version
	Ops      []borrowck.Operation
	Comments []Comment
}

// Comment is a '#' comment of a trace file. Trailing comments share their line
// with an operation.
type Comment struct {
	Text     string
	Line     int
	Column   int
	Trailing bool
}

// SyntaxError describes one malformed line. Err is set when the line failed
// a check that reports its own error, such as the version header.
type SyntaxError struct {
	Loc borrowck.Location
	Msg string
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Msg)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

var supported = mustConstraint(SupportedVersions)

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// checkVersion parses a version header value and validates it against
// SupportedVersions.
func checkVersion(raw string) (*semver.Version, error) {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", raw, err)
	}
	if !supported.Check(v) {
		return v, fmt.Errorf("%w: %s (want %s)", ErrUnsupportedVersion, v, SupportedVersions)
	}
	return v, nil
}

// IsTraceFile reports whether path has a trace file extension.
func IsTraceFile(path string) bool {
	return isYAML(path) || strings.HasSuffix(path, ".own")
}

func isYAML(path string) bool {
	return strings.HasSuffix(path, ".own.yaml") || strings.HasSuffix(path, ".own.yml")
}

// Decode parses src in the format selected by the file name.
func Decode(filename string, src []byte) (*Trace, error) {
	if isYAML(filename) {
		return DecodeYAML(filename, src)
	}
	return Parse(filename, src)
}

// Load reads and decodes the trace file at path.
func Load(path string) (*Trace, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading trace: %w", err)
	}
	return Decode(path, src)
}
