// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

var (
	// validGitURLPattern matches valid git URLs (https, ssh, file)
	// Allows: https://github.com/user/repo.git, git@github.com:user/repo.git, file:///path/to/repo
	validGitURLPattern = regexp.MustCompile(`^(https?://|git@|ssh://|file://)[\w.\-@:/%]+$`)

	// dangerousCharsPattern matches characters that could be used for command injection
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\]`)
)

// DefaultExcludeGlobs are applied when the project config lists none.
var DefaultExcludeGlobs = []string{
	".git/**",
	"**/__pycache__/**",
	"**/.venv/**",
	"**/venv/**",
	"**/node_modules/**",
	"**/*.pyc",
}

// Repo source types.
const (
	SourceGitURL    = "git_url"
	SourceLocalPath = "local_path"
)

// RepoSource names where a repository comes from.
type RepoSource struct {
	Type  string // SourceGitURL or SourceLocalPath
	Value string
}

// LoadOptions controls the repository walk.
type LoadOptions struct {
	ExcludeGlobs []string
	MaxFileSize  int64 // 0 = unlimited
}

// RepoLoader loads repository contents from git URL or local path.
type RepoLoader struct {
	logger     *slog.Logger
	tempDirs   []string // Track temporary directories for cleanup
	tempDirsMu sync.Mutex
}

// NewRepoLoader creates a new repository loader.
func NewRepoLoader(logger *slog.Logger) *RepoLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoLoader{
		logger:   logger,
		tempDirs: make([]string, 0),
	}
}

// Close cleans up temporary directories created by git clones.
func (rl *RepoLoader) Close() error {
	rl.tempDirsMu.Lock()
	defer rl.tempDirsMu.Unlock()

	var lastErr error
	for _, dir := range rl.tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			rl.logger.Warn("repo.cleanup.error", "dir", dir, "err", err)
			lastErr = err
		}
	}
	rl.tempDirs = nil
	return lastErr
}

// LoadResult contains the loaded repository rows.
type LoadResult struct {
	RootPath    string // Absolute path to repository root
	Rows        []Row  // Paths relative to RootPath, slash-separated
	TotalSize   int64
	SkipReasons map[string]int // Reason -> count (e.g., "excluded", "too_large", "binary")
}

// LoadRepository loads a repository from the specified source.
// For git URLs, it clones to a temporary directory.
// For local paths, it reads directly.
func (rl *RepoLoader) LoadRepository(ctx context.Context, source RepoSource, opts LoadOptions) (*LoadResult, error) {
	var rootPath string
	var err error

	switch source.Type {
	case SourceGitURL:
		rootPath, err = rl.cloneGitRepo(ctx, source.Value)
		if err != nil {
			return nil, fmt.Errorf("clone git repo: %w", err)
		}
	case SourceLocalPath:
		rootPath, err = filepath.Abs(source.Value)
		if err != nil {
			return nil, fmt.Errorf("resolve local path: %w", err)
		}
		if err := validateLocalPath(rootPath); err != nil {
			return nil, fmt.Errorf("invalid local path: %w", err)
		}
		info, err := os.Stat(rootPath)
		if err != nil {
			return nil, fmt.Errorf("stat local path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("local path is not a directory: %s", rootPath)
		}
	default:
		return nil, fmt.Errorf("unsupported repo source type: %s", source.Type)
	}

	matcher, err := newExcludeMatcher(opts.ExcludeGlobs)
	if err != nil {
		return nil, err
	}

	rl.logger.Info("repo.load.start", "root", rootPath, "type", source.Type)

	rows, skipReasons, err := rl.walkRepository(ctx, rootPath, matcher, opts.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("walk repository: %w", err)
	}

	totalSize := int64(0)
	for _, r := range rows {
		totalSize += int64(len(r.Content))
	}

	result := &LoadResult{
		RootPath:    rootPath,
		Rows:        rows,
		TotalSize:   totalSize,
		SkipReasons: skipReasons,
	}

	rl.logger.Info("repo.load.complete",
		"files", len(rows),
		"total_size", totalSize,
		"skip_reasons", skipReasons,
	)

	return result, nil
}

// validateGitURL validates a git URL to prevent command injection.
// Returns an error if the URL is invalid or contains dangerous characters.
func validateGitURL(gitURL string) error {
	if gitURL == "" {
		return fmt.Errorf("git URL is empty")
	}

	if dangerousCharsPattern.MatchString(gitURL) {
		return fmt.Errorf("git URL contains dangerous characters")
	}

	if strings.HasPrefix(gitURL, "http://") || strings.HasPrefix(gitURL, "https://") {
		parsed, err := url.Parse(gitURL)
		if err != nil {
			return fmt.Errorf("invalid URL format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("git URL missing host")
		}
		// Credentials belong in the git credential helper, not the URL.
		if parsed.User != nil {
			if _, hasPassword := parsed.User.Password(); hasPassword {
				return fmt.Errorf("git URL should not contain embedded password")
			}
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "git@") || strings.HasPrefix(gitURL, "ssh://") {
		if !validGitURLPattern.MatchString(gitURL) {
			return fmt.Errorf("invalid SSH git URL format")
		}
		return nil
	}

	if strings.HasPrefix(gitURL, "file://") {
		return nil
	}

	return fmt.Errorf("unsupported git URL protocol: must be https://, git@, ssh://, or file://")
}

// cloneGitRepo shallow-clones a git repository into a temporary directory.
func (rl *RepoLoader) cloneGitRepo(ctx context.Context, gitURL string) (string, error) {
	if err := validateGitURL(gitURL); err != nil {
		return "", fmt.Errorf("invalid git URL: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "docgraph-repo-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}

	// #nosec G204 - gitURL is validated above to prevent command injection
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--quiet", gitURL, tmpDir)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	logURL := gitURL
	if parsed, err := url.Parse(gitURL); err == nil {
		parsed.RawQuery = ""
		if parsed.User != nil {
			parsed.User = url.User("***")
		}
		logURL = parsed.String()
	}

	rl.logger.Info("repo.clone.start", "url", logURL, "temp_dir", tmpDir)

	if err := cmd.Run(); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", fmt.Errorf("git clone failed: %w", err)
	}

	rl.logger.Info("repo.clone.success", "url", logURL, "temp_dir", tmpDir)

	rl.tempDirsMu.Lock()
	rl.tempDirs = append(rl.tempDirs, tmpDir)
	rl.tempDirsMu.Unlock()

	return tmpDir, nil
}

// validateLocalPath rejects traversal attempts, the filesystem root and
// kernel/system directories.
func validateLocalPath(path string) error {
	if filepath.Clean(path) != path {
		return fmt.Errorf("path contains traversal attempts: %s", path)
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path did not resolve to absolute path: %s", path)
	}
	if path == "/" {
		return fmt.Errorf("path is root directory, which is not allowed")
	}

	sensitiveDirs := []string{"/etc", "/sys", "/proc", "/dev", "/boot"}
	for _, sensitive := range sensitiveDirs {
		if strings.HasPrefix(path, sensitive+"/") || path == sensitive {
			return fmt.Errorf("path is in sensitive system directory: %s", path)
		}
	}
	return nil
}

// walkRepository walks the repository directory and reads every eligible
// file into a row.
func (rl *RepoLoader) walkRepository(ctx context.Context, rootPath string, matcher *excludeMatcher, maxFileSize int64) ([]Row, map[string]int, error) {
	rows := make([]Row, 0)
	skipReasons := make(map[string]int)

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			rl.logger.Warn("repo.walk.error", "path", path, "err", err)
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil || relPath == "." {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if matcher.matchDir(relPath) {
				skipReasons["excluded_dir"]++
				return filepath.SkipDir
			}
			return nil
		}

		if matcher.match(relPath) {
			skipReasons["excluded"]++
			return nil
		}
		if !d.Type().IsRegular() {
			skipReasons["not_regular"]++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if maxFileSize > 0 && info.Size() > maxFileSize {
			skipReasons["too_large"]++
			rl.logger.Warn("repo.walk.skip_large_file",
				"path", relPath,
				"size", info.Size(),
				"limit", maxFileSize,
			)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			skipReasons["read_error"]++
			rl.logger.Warn("repo.walk.read_error", "path", relPath, "err", err)
			return nil
		}
		if isBinary(content) {
			skipReasons["binary"]++
			return nil
		}

		rows = append(rows, Row{Path: relPath, Content: string(content)})
		return nil
	})

	return rows, skipReasons, err
}

// isBinary uses git's heuristic: a NUL byte in the first 8000 bytes.
func isBinary(content []byte) bool {
	head := content
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// excludeMatcher matches slash-separated relative paths against compiled
// exclude globs. A pattern that does not start with ** may match at any
// depth (implicit **/ prefix), and a leading **/ also matches at the root.
type excludeMatcher struct {
	globs []glob.Glob
}

func newExcludeMatcher(patterns []string) (*excludeMatcher, error) {
	m := &excludeMatcher{}
	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		variants := []string{p}
		switch {
		case strings.HasPrefix(p, "**/"):
			variants = append(variants, p[3:])
		case !strings.HasPrefix(p, "**") && !strings.HasPrefix(p, "/"):
			variants = append(variants, "**/"+p)
		}
		for _, v := range variants {
			g, err := glob.Compile(strings.TrimPrefix(v, "/"), '/')
			if err != nil {
				return nil, fmt.Errorf("invalid exclude glob %q: %w", p, err)
			}
			m.globs = append(m.globs, g)
		}
	}
	return m, nil
}

func (m *excludeMatcher) match(relPath string) bool {
	for _, g := range m.globs {
		if g.Match(relPath) {
			return true
		}
	}
	return false
}

// matchDir also tries the directory with a trailing slash so that
// "dir/**" prunes dir itself.
func (m *excludeMatcher) matchDir(relPath string) bool {
	return m.match(relPath) || m.match(relPath+"/")
}
