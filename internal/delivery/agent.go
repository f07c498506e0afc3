// Package delivery implements the Delivery Agent (§4.8): it commits a
// generated artifact bundle to a branch in the upstream repository and
// opens or updates a pull request carrying the summary. It is grounded on
// the reference implementation's gitutil push mechanics plus its
// internal/github client/auth, extended with the PullRequests operations
// the reference implementation never needed.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/go-github/v73/github"

	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/gitutil"
)

const (
	maxAttempts   = 5
	backoffBase   = 2 * time.Second
	backoffCap    = 10 * time.Second
	commitAuthor  = "living-docs-bot"
	commitEmail   = "living-docs-bot@users.noreply.github.com"
)

// PRClient is the subset of the GitHub API the Delivery Agent exercises,
// narrow enough to fake in tests.
type PRClient interface {
	ListPullRequests(ctx context.Context, owner, repo string, head, base string) ([]*github.PullRequest, error)
	CreatePullRequest(ctx context.Context, owner, repo, title, head, base, body string) (*github.PullRequest, error)
	UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error
}

type ghPRClient struct {
	client *github.Client
}

// NewPRClient wraps an authenticated *github.Client for pull-request
// create-or-update operations.
func NewPRClient(client *github.Client) PRClient {
	return &ghPRClient{client: client}
}

func (c *ghPRClient) ListPullRequests(ctx context.Context, owner, repo, head, base string) ([]*github.PullRequest, error) {
	prs, _, err := c.client.PullRequests.List(ctx, owner, repo, &github.PullRequestListOptions{
		Head:  owner + ":" + head,
		Base:  base,
		State: "open",
	})
	return prs, err
}

func (c *ghPRClient) CreatePullRequest(ctx context.Context, owner, repo, title, head, base, body string) (*github.PullRequest, error) {
	pr, _, err := c.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	return pr, err
}

func (c *ghPRClient) UpdatePullRequestBody(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := c.client.PullRequests.Edit(ctx, owner, repo, number, &github.PullRequest{Body: github.Ptr(body)})
	return err
}

// Request describes one delivery: commit the bundle to a branch and open
// or update a PR summarizing it.
type Request struct {
	RepoOwner    string
	RepoName     string
	RepoCloneURL string
	Token        string
	TargetBranch string
	DocsRoot     string
	CommitSHA    string
	Bundle       core.DocumentBundle
	Summary      string
}

// Result reports what the Delivery Agent actually did.
type Result struct {
	Branch        string
	PullRequestURL string
	PRCreated     bool
	Warning       string // non-empty on a provider_conflict degraded outcome
}

// Agent is the Delivery Agent.
type Agent struct {
	git *gitutil.Client
	prc func(ctx context.Context, token string) (PRClient, error)
}

// New returns an Agent. prcFactory builds a PRClient authenticated for the
// given token (a PAT or a GitHub App installation token, already resolved
// by the caller) — kept as a factory so tests can substitute a fake.
func New(git *gitutil.Client, prcFactory func(ctx context.Context, token string) (PRClient, error)) *Agent {
	return &Agent{git: git, prc: prcFactory}
}

// ShortSHA returns the first 7 hex characters of sha.
func ShortSHA(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

// BranchName returns the auto/docs/<short_sha> branch name for sha.
func BranchName(sha string) string {
	return "auto/docs/" + ShortSHA(sha)
}

// Deliver executes the full delivery flow: clone, branch, copy bundle
// files, commit, push (retried), and create-or-update a PR (retried).
func (a *Agent) Deliver(ctx context.Context, req Request) (*Result, error) {
	branch := BranchName(req.CommitSHA)

	repoPath, err := gitutil.MkdirTempRepo("living-docs-delivery")
	if err != nil {
		return nil, core.NewPipelineError(core.KindFatalInternal, "delivering", err)
	}
	defer os.RemoveAll(repoPath)

	auth := gitutil.BasicAuth(req.Token)
	repo, err := a.git.Clone(ctx, req.RepoCloneURL, repoPath, auth)
	if err != nil {
		return nil, classifyGitError(err)
	}

	if err := a.git.CreateBranchFromHead(repo, branch); err != nil {
		return nil, core.NewPipelineError(core.KindFatalInternal, "delivering", err)
	}

	if err := writeBundle(repoPath, req.DocsRoot, req.Bundle); err != nil {
		return nil, core.NewPipelineError(core.KindFatalInternal, "delivering", err)
	}

	if _, err := a.git.CommitAll(repo, fmt.Sprintf("docs: update for %s", ShortSHA(req.CommitSHA)), commitAuthor, commitEmail); err != nil {
		return nil, core.NewPipelineError(core.KindFatalInternal, "delivering", err)
	}

	result := &Result{Branch: branch}

	if err := a.pushWithRetry(ctx, repo, branch, auth); err != nil {
		result.Warning = fmt.Sprintf("push rejected for branch %s: %s", branch, gitutil.Sanitize(err.Error()))
		return result, nil
	}

	prURL, created, err := a.openOrUpdatePRWithRetry(ctx, req, branch)
	if err != nil {
		result.Warning = fmt.Sprintf("pull request create/update failed: %s", gitutil.Sanitize(err.Error()))
		return result, nil
	}
	result.PullRequestURL = prURL
	result.PRCreated = created
	return result, nil
}

func writeBundle(repoPath, docsRoot string, bundle core.DocumentBundle) error {
	for path, content := range bundle.Files {
		full := filepath.Join(repoPath, docsRoot, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// pushWithRetry pushes branch up to maxAttempts times with exponential
// backoff on transient failures. A non-fast-forward rejection is returned
// as-is so the caller surfaces it as a non-fatal provider_conflict
// warning rather than retrying into a force-push.
func (a *Agent) pushWithRetry(ctx context.Context, repo *git.Repository, branch string, auth *githttp.BasicAuth) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}
		if err := a.git.Push(ctx, repo, branch, auth); err != nil {
			lastErr = err
			if strings.Contains(strings.ToLower(err.Error()), "non-fast-forward") ||
				strings.Contains(strings.ToLower(err.Error()), "rejected") {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}

func (a *Agent) openOrUpdatePRWithRetry(ctx context.Context, req Request, branch string) (string, bool, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(backoffDelay(attempt)):
			}
		}

		client, err := a.prc(ctx, req.Token)
		if err != nil {
			lastErr = err
			continue
		}

		existing, err := client.ListPullRequests(ctx, req.RepoOwner, req.RepoName, branch, req.TargetBranch)
		if err != nil {
			lastErr = err
			continue
		}
		if len(existing) > 0 {
			// Update the existing PR's body to the latest summary. Never
			// also post the summary as a comment, per §4.8.
			if err := client.UpdatePullRequestBody(ctx, req.RepoOwner, req.RepoName, existing[0].GetNumber(), req.Summary); err != nil {
				lastErr = err
				continue
			}
			return existing[0].GetHTMLURL(), false, nil
		}

		title := prTitle(req.Summary, req.CommitSHA)
		pr, err := client.CreatePullRequest(ctx, req.RepoOwner, req.RepoName, title, branch, req.TargetBranch, req.Summary)
		if err != nil {
			lastErr = err
			continue
		}
		return pr.GetHTMLURL(), true, nil
	}
	return "", false, core.NewPipelineError(core.KindProviderConflict, "delivering", lastErr)
}

func prTitle(summary, sha string) string {
	title := fmt.Sprintf("docs: living documentation for %s", ShortSHA(sha))
	if strings.Contains(summary, "MAJOR") {
		title = fmt.Sprintf("docs: living documentation for %s (MAJOR)", ShortSHA(sha))
	}
	return title
}

func classifyGitError(err error) error {
	msg := strings.ToLower(gitutil.Sanitize(err.Error()))
	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return core.NewPipelineError(core.KindAuthDenied, "delivering", errors.New(msg))
	default:
		return core.NewPipelineError(core.KindTransientNetwork, "delivering", errors.New(msg))
	}
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt-1)))
	if d > backoffCap {
		return backoffCap
	}
	return d
}
