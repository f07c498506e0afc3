// Package gitutil wraps go-git for the clone/fetch/checkout/diff operations
// the Source Fetcher and Delivery Agent need, keeping all credential
// handling off of URLs.
package gitutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// Client wraps a slog.Logger and exposes the git primitives the pipeline
// needs. Every network operation takes credentials as a BasicAuth object;
// no code path interpolates a token into a URL.
type Client struct {
	Logger *slog.Logger
}

// NewClient returns a new Client.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Logger: logger}
}

// Open opens a git repository at path.
func (c *Client) Open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// BasicAuth builds a credential-helper-equivalent auth object for token. It
// returns nil for an empty token, matching go-git's "no auth" convention for
// local/public fetches.
func BasicAuth(token string) *githttp.BasicAuth {
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}
}

// Clone clones repoURL into path using auth (may be nil for public repos).
// The caller controls path; the Source Fetcher is responsible for making
// sure it is a credential-free temp directory name.
func (c *Client) Clone(ctx context.Context, repoURL, path string, auth *githttp.BasicAuth) (*git.Repository, error) {
	c.Logger.InfoContext(ctx, "cloning repository", "url", repoURL, "path", path)
	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:  repoURL,
		Auth: auth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone repo '%s' to '%s': %w", repoURL, path, err)
	}
	return repo, nil
}

// Fetch fetches updates from the 'origin' remote using auth.
func (c *Client) Fetch(ctx context.Context, repo *git.Repository, auth *githttp.BasicAuth, refSpecs ...string) error {
	c.Logger.InfoContext(ctx, "fetching latest changes from origin")

	fetchOptions := &git.FetchOptions{
		RemoteName: "origin",
		Auth:       auth,
		Force:      true,
	}

	if len(refSpecs) > 0 {
		var specs []config.RefSpec
		for _, spec := range refSpecs {
			specs = append(specs, config.RefSpec(spec))
		}
		fetchOptions.RefSpecs = specs
	}

	if err := repo.FetchContext(ctx, fetchOptions); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to fetch from remote: %w", err)
	}
	c.Logger.InfoContext(ctx, "fetch complete")
	return nil
}

// Checkout switches the repository's worktree to sha.
func (c *Client) Checkout(repo *git.Repository, sha string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	c.Logger.Info("checking out commit", "sha", sha)
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(sha), Force: true}); err != nil {
		return fmt.Errorf("failed to checkout commit '%s': %w", sha, err)
	}
	return nil
}

// CheckoutBranch checks out branch. When create is true the branch is
// created at HEAD, and the checkout fails if a local branch of that name
// already exists.
func (c *Client) CheckoutBranch(repo *git.Repository, branch string, create bool) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	ref := plumbing.NewBranchReferenceName(branch)
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: ref, Create: create, Force: true}); err != nil {
		return fmt.Errorf("failed to checkout branch '%s': %w", branch, err)
	}
	return nil
}

// HeadCommit resolves the resolved commit identity at HEAD: sha, author,
// message, timestamp.
func (c *Client) HeadCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit: %w", err)
	}
	return commit, nil
}

// Diff calculates the difference between two commit SHAs in an open
// repository.
func (c *Client) Diff(repo *git.Repository, oldSHA, newSHA string) (added, modified, deleted []string, err error) {
	oldCommit, err := repo.CommitObject(plumbing.NewHash(oldSHA))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get commit object for old SHA %s: %w", oldSHA, err)
	}
	newCommit, err := repo.CommitObject(plumbing.NewHash(newSHA))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get commit object for new SHA %s: %w", newSHA, err)
	}

	oldTree, err := oldCommit.Tree()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get tree for old commit %s: %w", oldSHA, err)
	}
	newTree, err := newCommit.Tree()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to get tree for new commit %s: %w", newSHA, err)
	}

	changes, err := object.DiffTree(oldTree, newTree)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to diff trees between %s and %s: %w", oldSHA, newSHA, err)
	}

	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			c.Logger.Error("failed to get action for change, skipping", "error", err)
			continue
		}
		switch action {
		case merkletrie.Insert:
			added = append(added, change.To.Name)
		case merkletrie.Modify:
			modified = append(modified, change.To.Name)
		case merkletrie.Delete:
			deleted = append(deleted, change.From.Name)
		}
	}
	return added, modified, deleted, nil
}

// ListTreeFiles lists every file path tracked at commit sha, used for the
// initial-commit-enumerates-everything path of the Change Detector.
func (c *Client) ListTreeFiles(repo *git.Repository, sha string) ([]string, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for commit %s: %w", sha, err)
	}

	var paths []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err != nil {
			break
		}
		if !entry.Mode.IsFile() {
			continue
		}
		paths = append(paths, name)
	}
	return paths, nil
}

// MkdirTempRepo creates a temp directory for a clone whose name never
// contains a credential, per the Source Fetcher's contract.
func MkdirTempRepo(prefix string) (string, error) {
	return os.MkdirTemp("", prefix+"-*")
}

// ParentSHA returns the first parent of sha, or ok=false if sha is the
// initial commit.
func (c *Client) ParentSHA(repo *git.Repository, sha string) (parent string, ok bool, err error) {
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return "", false, fmt.Errorf("failed to get commit object for %s: %w", sha, err)
	}
	if commit.NumParents() == 0 {
		return "", false, nil
	}
	p, err := commit.Parent(0)
	if err != nil {
		return "", false, fmt.Errorf("failed to get parent of %s: %w", sha, err)
	}
	return p.Hash.String(), true, nil
}

// ReadFileAtRevision returns the content of path as it existed at sha, or
// os.ErrNotExist if the file is absent at that revision.
func (c *Client) ReadFileAtRevision(repo *git.Repository, sha, path string) ([]byte, error) {
	commit, err := repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for %s: %w", sha, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s: %w", sha, err)
	}
	file, err := tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("%s at %s: %w", path, sha, os.ErrNotExist)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at %s: %w", path, sha, err)
	}
	return []byte(content), nil
}

// CreateBranchFromHead creates branch at the worktree's current HEAD and
// checks it out. It fails if the branch already exists locally.
func (c *Client) CreateBranchFromHead(repo *git.Repository, branch string) error {
	return c.CheckoutBranch(repo, branch, true)
}

// CommitAll stages every change in the worktree and commits with message,
// authored by name/email.
func (c *Client) CommitAll(repo *git.Repository, message, name, email string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add("."); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to stage changes: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: name, Email: email, When: time.Now()},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to commit: %w", err)
	}
	return hash, nil
}

// Push pushes branch to the 'origin' remote using auth. It never force-
// pushes: a rejection (e.g. non-fast-forward) is returned to the caller
// as an error so it can be surfaced as a non-fatal delivery warning.
func (c *Client) Push(ctx context.Context, repo *git.Repository, branch string, auth *githttp.BasicAuth) error {
	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err := repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
		Force:      false,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push branch %s: %w", branch, err)
	}
	return nil
}
