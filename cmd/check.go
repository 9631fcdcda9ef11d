package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/borrowck/check"
	"github.com/gnoswap-labs/borrowck/formatter"
	"github.com/gnoswap-labs/borrowck/internal"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

var (
	ignoreRules string
	ignorePaths string
	jsonOutput  bool
	outPath     string
	failFast    bool
	progress    bool
)

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Verify trace files and directories of trace files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return err
		}

		var opts []check.Option
		if progress {
			opts = append(opts, check.WithProgress(cmd.ErrOrStderr()))
		}
		err = runCheck(ctx, cmd.OutOrStdout(), engine, args, opts...)
		if ferr := engine.FlushCache(); ferr != nil {
			logger.Warn("failed to write cache", zap.Error(ferr))
		}
		return err
	},
}

func init() {
	checkCmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of rules to ignore")
	checkCmd.Flags().StringVar(&ignorePaths, "ignore-paths", "", "Comma-separated list of paths to ignore")
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output issues in JSON format")
	checkCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	checkCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop verifying a trace at its first violation")
	checkCmd.Flags().BoolVar(&progress, "progress", false, "Show a progress bar while checking directories")
}

// newEngine builds an engine from the configuration file and the flags.
func newEngine() (*internal.Engine, error) {
	config, err := check.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if failFast {
		config.Verifier.FailFast = true
	}

	engine, err := check.NewFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	engine.SetLogger(logger)

	for _, rule := range splitList(ignoreRules) {
		if !internal.IsRule(rule) {
			return nil, fmt.Errorf("unknown rule %q", rule)
		}
		engine.IgnoreRule(rule)
	}
	for _, path := range splitList(ignorePaths) {
		engine.IgnorePath(path)
	}

	if cacheDir != "" {
		cache, err := internal.NewCache(cacheDir)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(cfgFile); err == nil {
			if err := cache.SetDependencies(cfgFile); err != nil {
				return nil, err
			}
		}
		engine.SetCache(cache)
	}
	return engine, nil
}

func splitList(list string) []string {
	var items []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func runCheck(ctx context.Context, out io.Writer, checker check.Checker, paths []string, opts ...check.Option) error {
	issues, err := check.ProcessFiles(ctx, logger, checker, paths, check.ProcessFile, opts...)
	if err != nil {
		return fmt.Errorf("error processing files: %w", err)
	}

	if err := printIssues(out, issues, jsonOutput, outPath); err != nil {
		return err
	}

	for _, issue := range issues {
		if issue.Severity == tt.SeverityError {
			return ErrIssuesFound
		}
	}
	return nil
}

func printIssues(out io.Writer, issues []tt.Issue, isJSON bool, jsonPath string) error {
	if isJSON {
		if jsonPath == "" {
			return formatter.WriteJSON(out, issues)
		}
		f, err := os.Create(jsonPath)
		if err != nil {
			return fmt.Errorf("error creating JSON output file: %w", err)
		}
		defer f.Close()
		return formatter.WriteJSON(f, issues)
	}

	issuesByFile := formatter.GroupByFile(issues)
	sortedFiles := make([]string, 0, len(issuesByFile))
	for filename := range issuesByFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)

	for _, filename := range sortedFiles {
		sourceCode, err := internal.ReadSourceCode(filename)
		if err != nil {
			logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
			sourceCode = &internal.SourceCode{}
		}
		fmt.Fprint(out, formatter.GenerateFormattedIssue(issuesByFile[filename], sourceCode))
	}
	if len(issues) > 0 {
		fmt.Fprintf(out, "borrowck: %s\n", formatter.Summary(issues))
	}
	return nil
}
