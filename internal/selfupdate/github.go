package selfupdate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubSource treats the head commit of a branch as the latest version.
type GitHubSource struct {
	client      *github.Client
	owner, repo string
	branch      string
	downloadURL string
}

// GitHubOptions configures NewGitHubSource.
type GitHubOptions struct {
	// Repo is owner/repo.
	Repo   string
	Branch string

	// DownloadURL serves the bundle for the head commit. When empty the
	// branch archive from github.com is used.
	DownloadURL string

	// Token authenticates API requests, raising the rate limit.
	Token string

	// HTTPClient is the base client. The token, if any, is layered on top.
	HTTPClient *http.Client

	// BaseURL overrides the API endpoint, for tests and GitHub Enterprise.
	BaseURL string
}

// NewGitHubSource returns a GitHub-backed Source.
func NewGitHubSource(opts GitHubOptions) (*GitHubSource, error) {
	owner, repo, ok := strings.Cut(opts.Repo, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("invalid repo %q: expected owner/repo", opts.Repo)
	}
	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}

	httpClient := opts.HTTPClient
	if opts.Token != "" {
		ctx := context.Background()
		if httpClient != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		}
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	}

	client := github.NewClient(httpClient)
	if opts.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(opts.BaseURL, opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
	}

	download := opts.DownloadURL
	if download == "" {
		download = fmt.Sprintf("https://github.com/%s/%s/archive/refs/heads/%s.zip", owner, repo, branch)
	}

	return &GitHubSource{
		client:      client,
		owner:       owner,
		repo:        repo,
		branch:      branch,
		downloadURL: download,
	}, nil
}

func (s *GitHubSource) Name() string { return "github" }

// Latest implements Source.
func (s *GitHubSource) Latest(ctx context.Context) (*Release, error) {
	sha, _, err := s.client.Repositories.GetCommitSHA1(ctx, s.owner, s.repo, s.branch, "")
	if err != nil {
		var rateErr *github.RateLimitError
		if errors.As(err, &rateErr) {
			return nil, fmt.Errorf("GitHub rate limit exceeded (resets at %s); set github_token to raise it: %w",
				rateErr.Rate.Reset.Time.Format("15:04"), err)
		}
		return nil, fmt.Errorf("failed to read head of %s/%s@%s: %w", s.owner, s.repo, s.branch, err)
	}
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return nil, fmt.Errorf("%w: empty commit SHA", ErrMalformedResponse)
	}
	return &Release{
		Version:       sha,
		CanDownload:   s.downloadURL != "",
		ServerVersion: sha,
		DownloadURL:   s.downloadURL,
	}, nil
}
