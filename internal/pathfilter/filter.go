// Package pathfilter decides which filesystem events name a document worth
// ingesting.
package pathfilter

import (
	"os"
	"path/filepath"
	"strings"

	"meddoc/internal/config"
	"meddoc/internal/fileutil"
)

// Rejection reasons returned by Check.
const (
	ReasonOK            = ""
	ReasonOutsideRoot   = "outside_root"
	ReasonHidden        = "hidden"
	ReasonIgnoredDir    = "ignored_dir"
	ReasonIgnorePattern = "ignore_pattern"
	ReasonExtension     = "extension"
	ReasonMissing       = "missing"
	ReasonDirectory     = "directory"
	ReasonTooSmall      = "too_small"
)

// Options configures a Filter.
type Options struct {
	Root           string
	Extensions     []string
	IgnoredDirs    []string
	IgnorePatterns []string
	MinSizeBytes   int64
}

// OptionsFromConfig derives filter options from the watcher section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:           cfg.Paths.WatchRoot,
		Extensions:     cfg.Watcher.Extensions,
		IgnoredDirs:    cfg.Watcher.IgnoredDirs,
		IgnorePatterns: cfg.Watcher.IgnorePatterns,
		MinSizeBytes:   cfg.Watcher.MinSizeBytes,
	}
}

// Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	root        string
	extensions  map[string]struct{}
	ignoredDirs map[string]struct{}
	patterns    []string
	minSize     int64
}

// New builds a Filter. Root is cleaned and, when it exists, resolved through
// symlinks so comparisons use the same form as resolved candidates.
func New(opts Options) *Filter {
	root, err := fileutil.ResolveRoot(opts.Root)
	if err != nil {
		root = filepath.Clean(opts.Root)
	}
	f := &Filter{
		root:        root,
		extensions:  make(map[string]struct{}, len(opts.Extensions)),
		ignoredDirs: make(map[string]struct{}, len(opts.IgnoredDirs)),
		patterns:    append([]string(nil), opts.IgnorePatterns...),
		minSize:     opts.MinSizeBytes,
	}
	for _, ext := range opts.Extensions {
		f.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, dir := range opts.IgnoredDirs {
		f.ignoredDirs[dir] = struct{}{}
	}
	return f
}

// Root returns the resolved watch root.
func (f *Filter) Root() string {
	return f.root
}

// Eligible reports whether path should be processed.
func (f *Filter) Eligible(path string) bool {
	ok, _ := f.Check(path)
	return ok
}

// Check applies every rule including the on-disk checks (existence, regular
// file, minimum size) and reports the first rule that rejected path.
func (f *Filter) Check(path string) (bool, string) {
	if ok, reason := f.CheckName(path); !ok {
		return false, reason
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, ReasonMissing
	}
	if info.IsDir() {
		return false, ReasonDirectory
	}
	if info.Size() < f.minSize {
		return false, ReasonTooSmall
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil && !fileutil.IsWithin(f.root, resolved) {
		return false, ReasonOutsideRoot
	}
	return true, ReasonOK
}

// CheckName applies the rules that need only the path string. The watcher
// uses it on raw events, before a file has finished being written.
func (f *Filter) CheckName(path string) (bool, string) {
	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) || !fileutil.IsWithin(f.root, cleaned) || cleaned == f.root {
		return false, ReasonOutsideRoot
	}
	rel, err := filepath.Rel(f.root, cleaned)
	if err != nil {
		return false, ReasonOutsideRoot
	}
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	base := parts[len(parts)-1]
	if strings.HasPrefix(base, ".") {
		return false, ReasonHidden
	}
	for _, dir := range parts[:len(parts)-1] {
		if _, skip := f.ignoredDirs[dir]; skip {
			return false, ReasonIgnoredDir
		}
		if strings.HasPrefix(dir, ".") {
			return false, ReasonHidden
		}
	}
	for _, pattern := range f.patterns {
		if matchPattern(pattern, rel) {
			return false, ReasonIgnorePattern
		}
	}
	if _, ok := f.extensions[strings.ToLower(filepath.Ext(base))]; !ok {
		return false, ReasonExtension
	}
	return true, ReasonOK
}

// SkipDir reports whether a directory should be neither watched nor scanned.
func (f *Filter) SkipDir(path string) bool {
	cleaned := filepath.Clean(path)
	if cleaned == f.root {
		return false
	}
	if !fileutil.IsWithin(f.root, cleaned) {
		return true
	}
	name := filepath.Base(cleaned)
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, skip := f.ignoredDirs[name]
	return skip
}

// matchPattern matches a slash-separated relative path against a glob.
// "**/" matches at any depth, "/**" matches a directory and its contents, and
// plain patterns are tried against the full path and the base name.
func matchPattern(pattern, rel string) bool {
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		parts := strings.Split(rel, "/")
		for i := range parts {
			if matchSimple(rest, strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}
	if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
		parts := strings.Split(rel, "/")
		for _, part := range parts[:len(parts)-1] {
			if part == dir {
				return true
			}
		}
		return strings.HasPrefix(rel, dir+"/")
	}
	return matchSimple(pattern, rel)
}

func matchSimple(pattern, name string) bool {
	if matched, _ := filepath.Match(pattern, name); matched {
		return true
	}
	base := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		base = name[idx+1:]
	}
	matched, _ := filepath.Match(strings.ToLower(pattern), strings.ToLower(base))
	return matched
}
