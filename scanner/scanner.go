// Package scanner finds trace files below a directory.
package scanner

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSuffixes are the trace file suffixes searched when none are given.
var DefaultSuffixes = []string{".own", ".own.yaml", ".own.yml"}

type FileInfo struct {
	Path string
	Size int64
}

type Scanner struct {
	rootDir  string
	suffixes []string
}

func New(rootDir string, suffixes ...string) *Scanner {
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}
	return &Scanner{
		rootDir:  rootDir,
		suffixes: suffixes,
	}
}

// Scan returns matching files sorted by path. Hidden directories other than
// the root are skipped.
func (s *Scanner) Scan() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.rootDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.isTargetFile(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, err
}

// Paths is Scan without the sizes.
func (s *Scanner) Paths() ([]string, error) {
	files, err := s.Scan()
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, err
}

func (s *Scanner) isTargetFile(path string) bool {
	for _, suffix := range s.suffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
