// Package gitlink detects the enclosing git repository (if any) and turns
// a source file + line number into a GitHub permalink. It shells out to
// the git binary the same way cmd/soroban-rpc/internal/test/integration.go
// shells out to external tooling, rather than pulling in a full git
// implementation for three read-only queries.
package gitlink

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repository is a detected git checkout with enough identity to build
// permalinks against its GitHub remote.
type Repository struct {
	RemoteURL  string
	Branch     string
	CommitHash string
	RootPath   string
}

// Detect walks upward from the current working directory looking for a
// .git directory, then reads its remote/branch/commit via git itself.
// Returns nil if no repository is found or it has no usable remote.
func Detect() *Repository {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	return DetectFrom(cwd)
}

// DetectFrom runs the same detection starting from an arbitrary path,
// exposed separately so tests don't depend on the process's cwd.
func DetectFrom(startPath string) *Repository {
	root := findGitRoot(startPath)
	if root == "" {
		return nil
	}
	remote := gitOutput(root, "config", "--get", "remote.origin.url")
	if remote == "" {
		return nil
	}
	branch := gitOutput(root, "rev-parse", "--abbrev-ref", "HEAD")
	if branch == "" {
		branch = "main"
	}
	commit := gitOutput(root, "rev-parse", "HEAD")
	if commit == "" {
		return nil
	}
	return &Repository{
		RemoteURL:  normalizeGitURL(remote),
		Branch:     branch,
		CommitHash: commit,
		RootPath:   root,
	}
}

func findGitRoot(start string) string {
	current := start
	for {
		if info, err := os.Stat(filepath.Join(current, ".git")); err == nil && info != nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

func gitOutput(repoPath string, args ...string) string {
	cmd := exec.Command("git", append([]string{"-C", repoPath}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func normalizeGitURL(url string) string {
	switch {
	case strings.HasPrefix(url, "git@github.com:"):
		url = strings.Replace(url, "git@github.com:", "https://github.com/", 1)
		return strings.TrimSuffix(url, ".git")
	case strings.HasPrefix(url, "https://github.com/"):
		return strings.TrimSuffix(url, ".git")
	default:
		return url
	}
}

// IsGitHub reports whether the detected remote points at github.com.
func (r *Repository) IsGitHub() bool {
	return strings.Contains(r.RemoteURL, "github.com")
}

// GenerateFileLink builds a permalink of the form
// {remote}/blob/{commit}/{relative_path}#L{line}. Returns "" if the
// remote isn't GitHub or filePath can't be made relative to the repo root.
func (r *Repository) GenerateFileLink(filePath string, line uint32) string {
	if !r.IsGitHub() {
		return ""
	}
	rel, ok := r.makeRelativePath(filePath)
	if !ok {
		return ""
	}
	return r.RemoteURL + "/blob/" + r.CommitHash + "/" + rel + "#L" + itoa(line)
}

func (r *Repository) makeRelativePath(filePath string) (string, bool) {
	if !filepath.IsAbs(filePath) {
		return filePath, true
	}
	rel, err := filepath.Rel(r.RootPath, filePath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
