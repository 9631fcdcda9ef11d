// Package check verifies trace files and directories of them with a shared
// configuration.
package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/borrowck/internal"
	"github.com/gnoswap-labs/borrowck/internal/trace"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
	"github.com/gnoswap-labs/borrowck/scanner"
)

// Checker verifies one trace at a time.
type Checker interface {
	Run(filePath string) ([]tt.Issue, error)
	RunSource(source []byte) ([]tt.Issue, error)
	IgnoreRule(rule string)
	IgnorePath(path string)
}

// New creates an engine from the configuration file at configurationPath. A
// missing file yields the default configuration.
func New(configurationPath string) (*internal.Engine, error) {
	config, err := LoadConfig(configurationPath)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(config)
}

// NewFromConfig creates an engine from an already loaded configuration.
func NewFromConfig(config Config) (*internal.Engine, error) {
	engine, err := internal.NewEngine(config.Verifier, config.Rules)
	if err != nil {
		return nil, err
	}
	for _, pattern := range config.Ignore {
		engine.IgnorePath(pattern)
	}
	return engine, nil
}

type options struct {
	workers  int
	progress io.Writer
}

type Option func(*options)

// WithWorkers bounds the number of files verified at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithProgress draws a progress bar on w while a directory is verified.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

func newOptions(opts []Option) options {
	o := options{workers: runtime.NumCPU()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func ProcessSources(
	ctx context.Context,
	logger *zap.Logger,
	checker Checker,
	sources [][]byte,
	processor func(Checker, []byte) ([]tt.Issue, error),
) ([]tt.Issue, error) {
	var allIssues []tt.Issue
	for i, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues, err := processor(checker, source)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing source", zap.Int("source", i), zap.Error(err))
			}
			return nil, err
		}
		allIssues = append(allIssues, issues...)
	}
	return allIssues, nil
}

// ProcessFiles verifies every path in turn. Issues from all paths are returned
// together with the combined error of the files that could not be verified.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	checker Checker,
	paths []string,
	processor func(Checker, string) ([]tt.Issue, error),
	opts ...Option,
) ([]tt.Issue, error) {
	var (
		allIssues []tt.Issue
		errs      error
	)
	for _, path := range paths {
		issues, err := ProcessPath(ctx, logger, checker, path, processor, opts...)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			errs = multierr.Append(errs, err)
		}
		allIssues = append(allIssues, issues...)
	}
	return allIssues, errs
}

// ProcessPath verifies a trace file, or every trace file below a directory
// on a bounded worker pool. Issues are ordered by file and position.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	checker Checker,
	path string,
	processor func(Checker, string) ([]tt.Issue, error),
	opts ...Option,
) ([]tt.Issue, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if !trace.IsTraceFile(path) {
			return nil, nil
		}
		return processor(checker, path)
	}

	files, err := scanner.New(path).Paths()
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}
	issues, err := processConcurrently(ctx, logger, checker, path, files, processor, newOptions(opts))
	sortIssues(issues)
	return issues, err
}

type fileResult struct {
	issues []tt.Issue
	err    error
}

func processConcurrently(
	ctx context.Context,
	logger *zap.Logger,
	checker Checker,
	root string,
	files []string,
	processor func(Checker, string) ([]tt.Issue, error),
	o options,
) ([]tt.Issue, error) {
	bar := newProgressBar(root, len(files), o.progress)
	results := make(chan fileResult, len(files))
	sem := make(chan struct{}, o.workers)

	var wg sync.WaitGroup
	for _, filePath := range files {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(fp string) {
			defer func() {
				<-sem
				wg.Done()
			}()

			fileIssues, err := processor(checker, fp)
			if err != nil {
				if logger != nil {
					logger.Error("Error processing file", zap.String("file", fp), zap.Error(err))
				}
				err = fmt.Errorf("%s: %w", fp, err)
			}
			results <- fileResult{issues: fileIssues, err: err}
			_ = bar.Add(1)
		}(filePath)
	}
	wg.Wait()
	close(results)
	_ = bar.Finish()

	var (
		issues []tt.Issue
		errs   error
	)
	for result := range results {
		if result.err != nil {
			errs = multierr.Append(errs, result.err)
			continue
		}
		issues = append(issues, result.issues...)
	}
	return issues, errs
}

func newProgressBar(description string, total int, w io.Writer) *progressbar.ProgressBar {
	if w == nil {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(w != io.Discard),
		progressbar.OptionSetDescription(description),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func sortIssues(issues []tt.Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Start.Line != b.Start.Line {
			return a.Start.Line < b.Start.Line
		}
		return a.Start.Column < b.Start.Column
	})
}

func ProcessFile(checker Checker, filePath string) ([]tt.Issue, error) {
	return checker.Run(filePath)
}

func ProcessSource(checker Checker, source []byte) ([]tt.Issue, error) {
	return checker.RunSource(source)
}
