package core

import "context"

// Trigger is the internal, provider-agnostic view of "a commit needs a
// pipeline run". It is produced by the Orchestrator's webhook handler or by
// a direct admin/test API call, and is the unit of work the JobDispatcher
// coalesces on.
type Trigger struct {
	ProjectID      string
	RepoOwner      string
	RepoName       string
	RepoFullName   string
	RepoCloneURL   string
	Branch         string
	CommitSHA      string
	InstallationID int64

	// Manual indicates this trigger came from the direct admin/test API
	// rather than a provider webhook.
	Manual bool

	// LocalPath, when set, tells the Source Fetcher to open an
	// already-checked-out working tree instead of cloning RepoCloneURL —
	// the path used by the CLI delivery-agent surface (§6), which runs
	// inside a CI job that already has the commit checked out.
	LocalPath string

	// LocalDocsDir, when set, tells the pipeline to additionally write the
	// generated artifact bundle to this directory on local disk, independent
	// of whether an Artifact Store upload also happens.
	LocalDocsDir string

	// Token authenticates the clone/push/PR operations for this trigger.
	// Never interpolated into a URL — see gitutil.BasicAuth.
	Token string

	// SkipStore, when true, skips the relational index + object store
	// upload entirely (the CLI's lightweight mode, §6).
	SkipStore bool

	// SkipDelivery, when true, skips branch/commit/push/PR delivery.
	SkipDelivery bool
}

// Key returns the coalescing key for this trigger: at most one in-flight
// job per (project_id, commit_id).
func (t Trigger) Key() string {
	return t.ProjectID + "@" + t.CommitSHA
}

// JobDispatcher accepts triggers and queues them for asynchronous pipeline
// execution, coalescing by Trigger.Key so that at most one job per key is
// in-flight plus at most one pending.
type JobDispatcher interface {
	// Dispatch enqueues t. It never blocks on pipeline execution; it returns
	// once t has been queued, coalesced into an existing pending slot, or
	// rejected.
	Dispatch(ctx context.Context, t Trigger) error
}

// Job is a single, executable pipeline run triggered by t.
type Job interface {
	Run(ctx context.Context, t Trigger) error
}
