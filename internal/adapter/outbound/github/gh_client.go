// Package github reads files from GitHub repositories through the gh CLI,
// so that private repositories work with the user's existing gh login.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Scheme prefixes GitHub file references: github://owner/repo/path/to/file[@ref]
const Scheme = "github://"

// IsGitHubURL checks if a URL is a GitHub URL
func IsGitHubURL(url string) bool {
	return strings.HasPrefix(url, Scheme)
}

// Location is a parsed GitHub file reference.
type Location struct {
	Owner string
	Repo  string
	Path  string
	Ref   string // branch, tag or commit; empty for the default branch
}

// ParseURL parses a github:// URL into its components.
func ParseURL(githubURL string) (Location, error) {
	if !IsGitHubURL(githubURL) {
		return Location{}, fmt.Errorf("invalid GitHub URL format: %s", githubURL)
	}
	rest := strings.TrimPrefix(githubURL, Scheme)

	var loc Location
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest, loc.Ref = rest[:i], rest[i+1:]
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Location{}, fmt.Errorf("invalid GitHub URL format: expected github://owner/repo/path/to/file, got %s", githubURL)
	}
	loc.Owner, loc.Repo, loc.Path = parts[0], parts[1], parts[2]
	return loc, nil
}

// ContentsPath is the REST path of the contents API for the location.
func (l Location) ContentsPath() string {
	p := fmt.Sprintf("repos/%s/%s/contents/%s", l.Owner, l.Repo, l.Path)
	if l.Ref != "" {
		p += "?ref=" + l.Ref
	}
	return p
}

// Runner runs gh with args and returns its standard output.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

// GHClient wraps the gh CLI command for GitHub operations
type GHClient struct {
	run Runner
}

// NewGHClient creates a client that executes the gh binary found on PATH.
func NewGHClient() *GHClient {
	return &GHClient{run: execGH}
}

// NewGHClientWithRunner creates a client that runs gh through run.
func NewGHClientWithRunner(run Runner) *GHClient {
	return &GHClient{run: run}
}

func execGH(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("gh CLI is not installed. Please install it from https://cli.github.com/")
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not logged in") || strings.Contains(msg, "gh auth login") {
			return nil, fmt.Errorf("gh CLI is not authenticated. Please run 'gh auth login' first")
		}
		if msg != "" {
			return nil, fmt.Errorf("gh command failed: %s", msg)
		}
		return nil, fmt.Errorf("gh command failed: %w", err)
	}
	return stdout.Bytes(), nil
}

// FetchFile retrieves the content of the file a github:// URL points at.
func (c *GHClient) FetchFile(ctx context.Context, githubURL string) ([]byte, error) {
	loc, err := ParseURL(githubURL)
	if err != nil {
		return nil, err
	}

	out, err := c.run(ctx, "api", loc.ContentsPath(), "--jq", ".content")
	if err != nil {
		return nil, err
	}

	// The contents API wraps base64 at 60 columns.
	encoded := strings.Join(strings.Fields(string(out)), "")
	if encoded == "" {
		return nil, fmt.Errorf("empty response from GitHub for %s", githubURL)
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 content: %w", err)
	}
	return content, nil
}
