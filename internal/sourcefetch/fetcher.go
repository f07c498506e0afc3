// Package sourcefetch acquires a local working tree for a (repository,
// revision) pair, per the spec's Source Fetcher component: local paths are
// opened directly, remote URLs are cloned into a credential-free temp
// directory with retry on transient network/auth errors.
package sourcefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/gitutil"
)

const (
	maxAttempts  = 5
	backoffBase  = 2 * time.Second
	backoffCap   = 10 * time.Second
	defaultBranch = "main"
)

// Request describes what to fetch.
type Request struct {
	// Local is a filesystem path to an already-checked-out repository. When
	// set, RemoteURL and Token are ignored; Revision, if set, is checked out
	// in place.
	Local string
	// RemoteURL is an https(s) clone URL. Ignored if Local is set.
	RemoteURL string
	// Token is a provider access token, never interpolated into RemoteURL.
	Token string
	// Branch is reported back as Result.Branch; it does not select what is
	// checked out. Without a Revision, the repository's current HEAD is
	// used. Defaults to "main".
	Branch string
	// Revision is an explicit commit sha. Takes precedence over Branch.
	Revision string
}

// Result is a checked-out working tree plus the resolved commit identity.
type Result struct {
	WorkDir   string
	Cleanup   func()
	CommitSHA string
	Branch    string
	Author    string
	Message   string
	Timestamp time.Time
}

// Fetcher acquires working trees for the Change Detector and Parser Set to
// operate on.
type Fetcher struct {
	git    *gitutil.Client
	logger *slog.Logger
}

// New returns a Fetcher.
func New(git *gitutil.Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{git: git, logger: logger}
}

// Fetch resolves req into a Result. Remote clones retry up to maxAttempts
// times with exponential backoff on transient_network errors only. Every
// clone failure that mentions authentication (or 401/403) is classified
// auth_denied and is not retried, whether or not it is transient;
// not-found conditions are not retried either.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	if req.Branch == "" {
		req.Branch = defaultBranch
	}

	if req.Local != "" {
		return f.fetchLocal(req)
	}
	if req.RemoteURL == "" {
		return nil, core.NewPipelineError(core.KindInputInvalid, "fetching", errors.New("either Local or RemoteURL must be set"))
	}
	return f.fetchRemote(ctx, req)
}

func (f *Fetcher) fetchLocal(req Request) (*Result, error) {
	gitDir := filepath.Join(req.Local, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		return nil, core.NewPipelineError(core.KindInputInvalid, "fetching", fmt.Errorf("not a git repository: %s", req.Local))
	}

	repo, err := f.git.Open(req.Local)
	if err != nil {
		return nil, core.NewPipelineError(core.KindInputInvalid, "fetching", err)
	}

	if req.Revision != "" {
		if err := f.git.Checkout(repo, req.Revision); err != nil {
			return nil, core.NewPipelineError(core.KindNotFound, "fetching", err)
		}
	}

	commit, err := f.git.HeadCommit(repo)
	if err != nil {
		return nil, core.NewPipelineError(core.KindNotFound, "fetching", err)
	}

	return &Result{
		WorkDir:   req.Local,
		Cleanup:   func() {},
		CommitSHA: commit.Hash.String(),
		Branch:    req.Branch,
		Author:    commitAuthor(commit),
		Message:   commit.Message,
		Timestamp: commit.Author.When,
	}, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, req Request) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			f.logger.InfoContext(ctx, "retrying clone after backoff", "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, core.NewPipelineError(core.KindFatalInternal, "fetching", ctx.Err())
			case <-time.After(delay):
			}
		}

		result, err := f.cloneOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var pe *core.PipelineError
		if errors.As(err, &pe) && !pe.Kind.Retryable() {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %w", maxAttempts, lastErr)
}

func (f *Fetcher) cloneOnce(ctx context.Context, req Request) (*Result, error) {
	repoPath, err := gitutil.MkdirTempRepo("living-docs-repo")
	if err != nil {
		return nil, core.NewPipelineError(core.KindFatalInternal, "fetching", err)
	}
	cleanup := func() {
		if rmErr := os.RemoveAll(repoPath); rmErr != nil {
			f.logger.Error("failed to remove temp repo", "path", repoPath, "error", rmErr)
		}
	}

	auth := gitutil.BasicAuth(req.Token)
	repo, err := f.git.Clone(ctx, req.RemoteURL, repoPath, auth)
	if err != nil {
		cleanup()
		return nil, classifyCloneError(err)
	}

	if req.Revision != "" {
		if err := f.git.Checkout(repo, req.Revision); err != nil {
			cleanup()
			return nil, core.NewPipelineError(core.KindNotFound, "fetching", err)
		}
	}

	commit, err := f.git.HeadCommit(repo)
	if err != nil {
		cleanup()
		return nil, core.NewPipelineError(core.KindNotFound, "fetching", err)
	}

	return &Result{
		WorkDir:   repoPath,
		Cleanup:   cleanup,
		CommitSHA: commit.Hash.String(),
		Branch:    req.Branch,
		Author:    commitAuthor(commit),
		Message:   commit.Message,
		Timestamp: commit.Author.When,
	}, nil
}

func commitAuthor(commit *object.Commit) string {
	if commit.Author.Name != "" {
		return commit.Author.Name
	}
	return commit.Author.Email
}

func classifyCloneError(err error) error {
	msg := strings.ToLower(gitutil.Sanitize(err.Error()))
	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return core.NewPipelineError(core.KindAuthDenied, "fetching", errors.New(msg))
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404"):
		return core.NewPipelineError(core.KindNotFound, "fetching", errors.New(msg))
	default:
		return core.NewPipelineError(core.KindTransientNetwork, "fetching", errors.New(msg))
	}
}

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(backoffBase) * math.Pow(2, float64(attempt-1)))
	if d > backoffCap {
		return backoffCap
	}
	return d
}
