package internal

import (
	"fmt"
	"go/token"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/gnoswap-labs/borrowck"
	"github.com/gnoswap-labs/borrowck/internal/nolint"
	"github.com/gnoswap-labs/borrowck/internal/trace"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

// Engine verifies trace files and reports their violations as issues.
type Engine struct {
	verifier     borrowck.Config
	logger       *zap.Logger
	cache        *Cache
	ignoredRules map[string]bool
	ignoredPaths []string
	rules        map[string]Rule
}

// NewEngine creates an engine. Rule severities from the configuration
// override the defaults; a rule set to off is ignored.
func NewEngine(verifier borrowck.Config, rules map[string]tt.ConfigRule) (*Engine, error) {
	engine := &Engine{
		verifier: verifier,
		logger:   zap.NewNop(),
	}
	if err := engine.applyRules(rules); err != nil {
		return nil, err
	}
	return engine, nil
}

func (e *Engine) applyRules(rules map[string]tt.ConfigRule) error {
	e.rules = make(map[string]Rule, len(allRuleConstructors))
	for key, newRule := range allRuleConstructors {
		e.rules[key] = newRule()
	}

	for key, rule := range rules {
		r, ok := e.rules[key]
		if !ok {
			return fmt.Errorf("unknown rule %q in configuration", key)
		}
		if rule.Severity == tt.SeverityOff {
			e.IgnoreRule(key)
		}
		r.SetSeverity(rule.Severity)
	}
	return nil
}

// SetLogger sets the logger passed to every verification pass.
func (e *Engine) SetLogger(logger *zap.Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetCache makes Run reuse results of unchanged files.
// FlushCache persists the results cached since the last flush.
func (e *Engine) FlushCache() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Flush()
}

func (e *Engine) SetCache(cache *Cache) {
	if cache != nil {
		cache.SetSalt(fmt.Sprintf("%+v", e.verifier))
	}
	e.cache = cache
}

// Verifier returns the verifier configuration of the engine.
func (e *Engine) Verifier() borrowck.Config {
	return e.verifier
}

// Run verifies the trace file at filename.
func (e *Engine) Run(filename string) ([]tt.Issue, error) {
	if e.isIgnoredPath(filename) {
		return nil, nil
	}
	if e.cache != nil {
		if issues, ok := e.cache.Get(filename); ok {
			e.logger.Debug("cache hit", zap.String("file", filename))
			return e.filterIgnoredRules(issues), nil
		}
	}

	tr, err := trace.Load(filename)
	if err != nil {
		return nil, fmt.Errorf("error parsing file: %w", err)
	}
	issues := e.check(tr)

	if e.cache != nil {
		if err := e.cache.Set(filename, issues); err != nil {
			e.logger.Warn("failed to cache result", zap.String("file", filename), zap.Error(err))
		}
	}
	return e.filterIgnoredRules(issues), nil
}

// RunSource verifies a text trace held in memory.
func (e *Engine) RunSource(source []byte) ([]tt.Issue, error) {
	tr, err := trace.Parse("", source)
	if err != nil {
		return nil, fmt.Errorf("error parsing content: %w", err)
	}
	return e.filterIgnoredRules(e.check(tr)), nil
}

func (e *Engine) check(tr *trace.Trace) []tt.Issue {
	_, diags := borrowck.Verify(tr.Ops, e.verifier, borrowck.WithLogger(e.logger.With(zap.String("file", tr.Filename))))
	if len(diags) == 0 {
		return nil
	}

	issues := make([]tt.Issue, 0, len(diags))
	for _, diag := range diags {
		rule, ok := e.rules[diag.Kind.String()]
		if !ok {
			continue
		}
		issue := rule.Issue(diag)
		issue.Filename = tr.Filename
		issue.Start.Filename = tr.Filename
		// operations span one line; the formatter finds where it ends
		issue.End = token.Position{Filename: tr.Filename, Line: diag.Location.Line}
		issues = append(issues, issue)
	}
	return e.filterNolintIssues(nolint.ParseComments(tr), issues)
}

func (e *Engine) IgnoreRule(rule string) {
	if e.ignoredRules == nil {
		e.ignoredRules = make(map[string]bool)
	}
	e.ignoredRules[rule] = true
}

// IgnorePath skips files matching the glob pattern, either by full path or by
// base name.
func (e *Engine) IgnorePath(pattern string) {
	e.ignoredPaths = append(e.ignoredPaths, pattern)
}

func (e *Engine) isIgnoredPath(path string) bool {
	for _, pattern := range e.ignoredPaths {
		if ok, _ := filepath.Match(pattern, path); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
		if strings.HasPrefix(path, strings.TrimSuffix(pattern, "/")+"/") {
			return true
		}
	}
	return false
}

// filterIgnoredRules drops issues of rules ignored by configuration or flags.
// It runs after the cache so that cached results stay complete.
func (e *Engine) filterIgnoredRules(issues []tt.Issue) []tt.Issue {
	if len(e.ignoredRules) == 0 {
		return issues
	}
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		if !e.ignoredRules[issue.Rule] {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}

// filterNolintIssues filters issues based on nolint comments.
func (e *Engine) filterNolintIssues(mgr *nolint.Manager, issues []tt.Issue) []tt.Issue {
	if mgr == nil {
		return issues
	}
	filtered := make([]tt.Issue, 0, len(issues))
	for _, issue := range issues {
		pos := token.Position{
			Filename: issue.Filename,
			Line:     issue.Start.Line,
		}
		if !mgr.IsNolint(pos, issue.Rule) {
			filtered = append(filtered, issue)
		}
	}
	return filtered
}
