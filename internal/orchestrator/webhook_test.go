package orchestrator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	header := sign("secret", body)
	assert.NoError(t, VerifySignature(body, header, "secret"))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	header := sign("secret", body)
	assert.ErrorIs(t, VerifySignature(body, header, "other"), ErrSignatureMismatch)
}

func TestVerifySignature_MissingPrefix(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	assert.ErrorIs(t, VerifySignature(body, "not-a-signature", "secret"), ErrSignatureMismatch)
}

func TestParsePushEvent_Valid(t *testing.T) {
	body := []byte(`{
		"ref": "refs/heads/main",
		"after": "deadbeefcafef00d",
		"repository": {
			"full_name": "acme/widgets",
			"name": "widgets",
			"clone_url": "https://github.com/acme/widgets.git",
			"owner": {"login": "acme"}
		},
		"installation": {"id": 42}
	}`)
	trig, err := ParsePushEvent("proj-1", body)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", trig.ProjectID)
	assert.Equal(t, "main", trig.Branch)
	assert.Equal(t, "deadbeefcafef00d", trig.CommitSHA)
	assert.Equal(t, "acme/widgets", trig.RepoFullName)
	assert.Equal(t, int64(42), trig.InstallationID)
}

func TestParsePushEvent_MissingCommit(t *testing.T) {
	body := []byte(`{"ref": "refs/heads/main", "repository": {"full_name": "acme/widgets"}}`)
	_, err := ParsePushEvent("proj-1", body)
	assert.True(t, core.IsKind(err, core.KindInputInvalid))
}
