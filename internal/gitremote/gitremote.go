// Package gitremote resolves a working directory to the "owner/repo"
// name of its origin remote, for project auto-detection.
//
// It reads the repository's .git/config directly (go-git's config format
// decoder) instead of opening the full repository — the only thing needed
// is the origin URL. "No repo here" is an expected outcome, never an error.
package gitremote

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	gitcfg "github.com/go-git/go-git/v5/plumbing/format/config"
)

// originRemote is the remote consulted for auto-detection.
const originRemote = "origin"

// Detect walks up from workingDir looking for a .git/config file, reads
// the origin remote's URL and parses it to "owner/repo". It returns
// ("", nil) when no repository, no origin remote, or no recognizable URL
// is found; an error only for genuine read failures.
func Detect(workingDir string) (string, error) {
	configPath, ok := findGitConfig(workingDir)
	if !ok {
		return "", nil
	}

	f, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", configPath, err)
	}
	defer func() { _ = f.Close() }()

	cfg := gitcfg.New()
	if err := gitcfg.NewDecoder(f).Decode(cfg); err != nil {
		// Unparseable config is treated the same as no repo.
		return "", nil
	}

	remoteURL := cfg.Section("remote").Subsection(originRemote).Option("url")
	if remoteURL == "" {
		return "", nil
	}

	repo, ok := ParseRemoteURL(remoteURL)
	if !ok {
		return "", nil
	}
	return repo, nil
}

// findGitConfig walks up from dir looking for an existing .git/config.
// This allows auto-detection to work from any subdirectory of a repo.
func findGitConfig(dir string) (string, bool) {
	current := filepath.Clean(dir)
	for {
		candidate := filepath.Join(current, ".git", "config")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// ParseRemoteURL extracts "owner/repo" from the two hosted-git URL shapes:
//
//	https://github.com/acme/widgets[.git]
//	git@github.com:acme/widgets[.git]
//
// Any other form yields ok=false (absent, not a failure).
func ParseRemoteURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false
		}
		return splitOwnerRepo(u.Path)
	}

	// SSH scp-like form: user@host:owner/repo
	if at := strings.IndexByte(raw, '@'); at > 0 && !strings.Contains(raw, "://") {
		rest := raw[at+1:]
		colon := strings.IndexByte(rest, ':')
		if colon <= 0 {
			return "", false
		}
		return splitOwnerRepo(rest[colon+1:])
	}

	return "", false
}

// splitOwnerRepo validates a "/owner/repo[.git]" path and strips the
// .git suffix. Paths with any other number of segments don't match.
func splitOwnerRepo(path string) (string, bool) {
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return "", false
	}

	owner := parts[0]
	repo := strings.TrimSuffix(parts[1], ".git")
	if owner == "" || repo == "" {
		return "", false
	}
	return owner + "/" + repo, true
}
