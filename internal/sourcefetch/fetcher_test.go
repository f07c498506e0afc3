package sourcefetch

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/gitutil"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		require.NoError(t, cmd.Run())
	}
	run("init", "-q", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", ".")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestFetch_Local(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	dir := initRepo(t)

	f := New(gitutil.NewClient(nil), nil)
	result, err := f.Fetch(context.Background(), Request{Local: dir, Branch: "main"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.CommitSHA)
	assert.Equal(t, "main", result.Branch)
	assert.Equal(t, dir, result.WorkDir)
}

func TestFetch_LocalNotARepo(t *testing.T) {
	dir := t.TempDir()
	f := New(gitutil.NewClient(nil), nil)
	_, err := f.Fetch(context.Background(), Request{Local: dir})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindInputInvalid))
}

func TestFetch_MissingSource(t *testing.T) {
	f := New(gitutil.NewClient(nil), nil)
	_, err := f.Fetch(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindInputInvalid))
}

func TestClassifyCloneError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind core.ErrorKind
	}{
		{"auth failure", errors.New("authentication required"), core.KindAuthDenied},
		{"not found", errors.New("repository not found"), core.KindNotFound},
		{"transient", errors.New("connection reset by peer"), core.KindTransientNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyCloneError(tt.err)
			assert.True(t, core.IsKind(got, tt.kind))
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(2))
	assert.Equal(t, 8*time.Second, backoffDelay(3))
	assert.Equal(t, 10*time.Second, backoffDelay(4))
}
