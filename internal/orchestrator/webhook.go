package orchestrator

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/livingdocs/pipeline/internal/core"
)

// ErrSignatureMismatch is returned by VerifySignature when the computed
// HMAC does not match the header value.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// VerifySignature checks body against the `sha256=<hex>` signature header
// value using an HMAC-SHA256 of body keyed by secret, per §4.9's
// authentication requirement. A mismatch is never retried and must be
// surfaced to the caller as 401.
func VerifySignature(body []byte, signatureHeader, secret string) error {
	sig := strings.TrimPrefix(signatureHeader, "sha256=")
	if sig == "" {
		return ErrSignatureMismatch
	}
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := mac.Sum(nil)

	if !hmac.Equal(expected, computed) {
		return ErrSignatureMismatch
	}
	return nil
}

// pushPayload is the subset of a provider's push-event JSON this pipeline
// cares about. Real provider payloads carry many more fields; the system
// boundary here is deliberately narrow (§1: provider webhook contracts are
// external collaborators).
type pushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
		CloneURL string `json:"clone_url"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Installation struct {
		ID int64 `json:"id"`
	} `json:"installation"`
}

// ParsePushEvent decodes a provider push-event payload into a Trigger for
// projectID. It returns input_invalid on malformed JSON or a payload that
// carries no resolvable commit.
func ParsePushEvent(projectID string, body []byte) (core.Trigger, error) {
	var p pushPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return core.Trigger{}, core.NewPipelineError(core.KindInputInvalid, "webhook", fmt.Errorf("decode push payload: %w", err))
	}
	if p.After == "" || p.Repository.FullName == "" {
		return core.Trigger{}, core.NewPipelineError(core.KindInputInvalid, "webhook", errors.New("push payload missing commit sha or repository"))
	}

	branch := strings.TrimPrefix(p.Ref, "refs/heads/")

	return core.Trigger{
		ProjectID:      projectID,
		RepoOwner:      p.Repository.Owner.Login,
		RepoName:       p.Repository.Name,
		RepoFullName:   p.Repository.FullName,
		RepoCloneURL:   p.Repository.CloneURL,
		Branch:         branch,
		CommitSHA:      p.After,
		InstallationID: p.Installation.ID,
	}, nil
}
