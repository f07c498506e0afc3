package changedetect

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/gitutil"
)

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
	require.NoError(t, cmd.Run())
}

func headSHA(t *testing.T, dir string) string {
	t.Helper()
	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	require.NoError(t, err)
	return string(out[:len(out)-1])
}

func TestDetector_InitialCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	dir := t.TempDir()
	gitRun(t, dir, "init", "-q", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.py"), []byte("x=1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vendor.lock"), []byte("x\n"), 0o644))
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-q", "-m", "initial")

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)

	d := New(gitutil.NewClient(nil), nil)
	records, err := d.Detect(context.Background(), repo, headSHA(t, dir))
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "app.py", records[0].Path)
	assert.Equal(t, core.ChangeAdded, records[0].Kind)
	assert.Equal(t, "python", records[0].Language)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage("src/app.py"))
	assert.Equal(t, "javascript", DetectLanguage("index.js"))
	assert.Equal(t, "other", DetectLanguage("README"))
}

func TestIsValidUTF8(t *testing.T) {
	assert.True(t, IsValidUTF8([]byte("hello")))
	assert.False(t, IsValidUTF8([]byte{0xff, 0xfe, 0x00, 0x01}))
}
