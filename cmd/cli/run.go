package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/livingdocs/pipeline/internal/artifactgen"
	"github.com/livingdocs/pipeline/internal/config"
	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/delivery"
	"github.com/livingdocs/pipeline/internal/gitutil"
	"github.com/livingdocs/pipeline/internal/logger"
	"github.com/livingdocs/pipeline/internal/orchestrator"
	"github.com/livingdocs/pipeline/internal/parse"
	"github.com/livingdocs/pipeline/internal/providerauth"
	"github.com/livingdocs/pipeline/internal/sourcefetch"
	"github.com/livingdocs/pipeline/internal/store"
)

var (
	flagImpact string
	flagDrift  string
	flagDocs   string
	flagCommit string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the documentation pipeline for one commit (§6 CLI surface)",
	Long: `Runs the living-docs pipeline for one commit from inside a CI job.

Required environment: PROVIDER_TOKEN, REPO_OWNER, REPO_NAME, COMMIT_SHA.
Optional environment: TARGET_BRANCH (default "main"), ARTIFACTS_DIR
(default "artifacts"), DOCS_BUCKET_PATH (scheme s3://, gs://, or r2://)
plus the usual cloud credential environment variables.

If --impact is given, the pipeline skips fetch/detect/parse/score and
renders artifacts directly from the given impact (and optional drift)
report. Otherwise it fetches and analyzes the commit from the current
working directory, which a CI job is expected to already have checked
out.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagImpact, "impact", "", "path to a precomputed impact report JSON file")
	runCmd.Flags().StringVar(&flagDrift, "drift", "", "path to a precomputed drift report JSON file")
	runCmd.Flags().StringVar(&flagDocs, "docs", "", "directory to write the generated artifact bundle to (overrides ARTIFACTS_DIR)")
	runCmd.Flags().StringVar(&flagCommit, "commit", "", "commit sha to run for (overrides COMMIT_SHA)")
}

type cliEnv struct {
	Token        string
	RepoOwner    string
	RepoName     string
	CommitSHA    string
	TargetBranch string
	DocsDir      string
	BucketPath   string
}

func loadCLIEnv() (cliEnv, error) {
	e := cliEnv{
		Token:        os.Getenv("PROVIDER_TOKEN"),
		RepoOwner:    os.Getenv("REPO_OWNER"),
		RepoName:     os.Getenv("REPO_NAME"),
		CommitSHA:    os.Getenv("COMMIT_SHA"),
		TargetBranch: os.Getenv("TARGET_BRANCH"),
		DocsDir:      os.Getenv("ARTIFACTS_DIR"),
		BucketPath:   os.Getenv("DOCS_BUCKET_PATH"),
	}
	if flagCommit != "" {
		e.CommitSHA = flagCommit
	}
	if flagDocs != "" {
		e.DocsDir = flagDocs
	}
	if e.TargetBranch == "" {
		e.TargetBranch = "main"
	}
	if e.DocsDir == "" {
		e.DocsDir = "artifacts"
	}

	var missing []string
	if e.Token == "" {
		missing = append(missing, "PROVIDER_TOKEN")
	}
	if e.RepoOwner == "" {
		missing = append(missing, "REPO_OWNER")
	}
	if e.RepoName == "" {
		missing = append(missing, "REPO_NAME")
	}
	if e.CommitSHA == "" {
		missing = append(missing, "COMMIT_SHA (or --commit)")
	}
	if len(missing) > 0 {
		return e, fmt.Errorf("missing required input: %s", strings.Join(missing, ", "))
	}
	return e, nil
}

// projectKey derives a deterministic UUID from the owner/repo pair so the
// CLI's lightweight, DB-less run can still satisfy the Artifact Store's
// UUID-keyed project identity.
func projectKey(owner, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(owner+"/"+name)).String()
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	env, err := loadCLIEnv()
	if err != nil {
		return newCLIError(2, err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return newCLIError(2, fmt.Errorf("failed to load configuration: %w", err))
	}
	if err := cfg.ValidateForCLI(); err != nil {
		return newCLIError(2, fmt.Errorf("invalid CLI configuration: %w", err))
	}
	cfg.Delivery.TargetBranch = env.TargetBranch

	log := logger.New(cfg.Logging, cmd.ErrOrStderr())

	var objStore *store.Store
	if env.BucketPath != "" {
		bucket, perr := parseBucketPath(env.BucketPath)
		if perr != nil {
			return newCLIError(2, perr)
		}
		cfg.Storage.Bucket = bucket
		cfg.Storage.Endpoint = os.Getenv("S3_ENDPOINT")
		cfg.Storage.Region = envOr("AWS_REGION", "us-east-1")
		cfg.Storage.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.Storage.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		cfg.Storage.UsePathStyle, _ = strconv.ParseBool(os.Getenv("S3_USE_PATH_STYLE"))

		objClient, oerr := store.NewObjectClient(ctx, cfg.Storage)
		if oerr != nil {
			return newCLIError(5, fmt.Errorf("build object store client: %w", oerr))
		}
		objStore = store.New(objClient, store.NewInMemoryIndexStore(), bucket)
	}

	projectID := projectKey(env.RepoOwner, env.RepoName)
	deliveryAgent := newDeliveryAgent(log)

	if flagImpact != "" {
		return runFromPrecomputedImpact(ctx, cfg, env, projectID, objStore, deliveryAgent)
	}
	return runFullPipeline(ctx, cfg, env, projectID, objStore, deliveryAgent, log)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBucketPath(path string) (bucket string, err error) {
	for _, scheme := range []string{"s3://", "gs://", "r2://"} {
		if strings.HasPrefix(path, scheme) {
			rest := strings.TrimPrefix(path, scheme)
			bucket = strings.SplitN(rest, "/", 2)[0]
			if bucket == "" {
				return "", fmt.Errorf("malformed DOCS_BUCKET_PATH %q: missing bucket name", path)
			}
			return bucket, nil
		}
	}
	return "", fmt.Errorf("unrecognized DOCS_BUCKET_PATH scheme %q: expected s3://, gs://, or r2://", path)
}

func newDeliveryAgent(log *slog.Logger) *delivery.Agent {
	git := gitutil.NewClient(log)
	prcFactory := func(ctx context.Context, token string) (delivery.PRClient, error) {
		return delivery.NewPRClient(providerauth.ClientForToken(ctx, token)), nil
	}
	return delivery.New(git, prcFactory)
}

// runFromPrecomputedImpact renders, stores, and delivers a bundle from an
// impact report (and optional drift report) produced by an earlier CI
// step, skipping fetch/detect/parse/score entirely.
func runFromPrecomputedImpact(ctx context.Context, cfg *config.Config, env cliEnv, projectID string, objStore *store.Store, agent *delivery.Agent) error {
	report, err := loadImpactReport(flagImpact)
	if err != nil {
		return newCLIError(2, err)
	}

	var driftReport *core.DriftReport
	if flagDrift != "" {
		dr, derr := loadDriftReport(flagDrift)
		if derr != nil {
			return newCLIError(2, derr)
		}
		driftReport = dr
	}

	bundle := artifactgen.Generate(report, driftReport)

	if err := writeBundleToDir(env.DocsDir, bundle); err != nil {
		return newCLIError(2, fmt.Errorf("write artifact bundle: %w", err))
	}

	if objStore != nil {
		version := core.DocumentVersion{
			Branch:      report.Context.Branch,
			Title:       fmt.Sprintf("Documentation for %s", delivery.ShortSHA(report.Context.CommitSHA)),
			Description: report.Context.CommitMessage,
			SummaryPath: core.SummaryPath,
			ReadmePath:  core.ReadmePath,
			APIDocsPath: core.APIDocsPath,
		}
		meta := core.Metadata{
			Branch:      report.Context.Branch,
			Commit:      report.Context.CommitSHA,
			CommitURL:   fmt.Sprintf("https://github.com/%s/%s/commit/%s", env.RepoOwner, env.RepoName, report.Context.CommitSHA),
			Title:       version.Title,
			Description: version.Description,
		}
		if err := objStore.Upload(ctx, projectID, report.Context.CommitSHA, bundle, meta, version); err != nil {
			return newCLIError(5, fmt.Errorf("upload artifact bundle: %w", err))
		}
	}

	result, err := agent.Deliver(ctx, delivery.Request{
		RepoOwner:    env.RepoOwner,
		RepoName:     env.RepoName,
		RepoCloneURL: fmt.Sprintf("https://github.com/%s/%s.git", env.RepoOwner, env.RepoName),
		Token:        env.Token,
		TargetBranch: cfg.Delivery.TargetBranch,
		DocsRoot:     cfg.Delivery.DocsRoot,
		CommitSHA:    report.Context.CommitSHA,
		Bundle:       bundle,
		Summary:      string(bundle.Get(core.SummaryPath)),
	})
	if err != nil {
		return newCLIError(6, fmt.Errorf("delivery failed: %w", err))
	}
	if result.Warning != "" {
		fmt.Fprintln(os.Stderr, "warning:", result.Warning)
	}
	return nil
}

// runFullPipeline fetches the commit from the current working directory
// (a CI job's own checkout) and runs the full pipeline through to
// delivery.
func runFullPipeline(ctx context.Context, cfg *config.Config, env cliEnv, projectID string, objStore *store.Store, agent *delivery.Agent, log *slog.Logger) error {
	cwd, err := os.Getwd()
	if err != nil {
		return newCLIError(2, fmt.Errorf("resolve working directory: %w", err))
	}

	git := gitutil.NewClient(log)
	fetcher := sourcefetch.New(git, log)
	parsers := parse.NewRegistry()
	statuses := orchestrator.NewStatusTracker()

	pipeline := orchestrator.NewPipeline(cfg, git, fetcher, parsers, objStore, agent, statuses, log)

	trigger := core.Trigger{
		ProjectID:    projectID,
		RepoOwner:    env.RepoOwner,
		RepoName:     env.RepoName,
		RepoFullName: env.RepoOwner + "/" + env.RepoName,
		RepoCloneURL: fmt.Sprintf("https://github.com/%s/%s.git", env.RepoOwner, env.RepoName),
		Branch:       env.TargetBranch,
		CommitSHA:    env.CommitSHA,
		Manual:       true,
		LocalPath:    cwd,
		LocalDocsDir: env.DocsDir,
		Token:        env.Token,
		SkipStore:    objStore == nil,
	}

	if err := pipeline.Run(ctx, trigger); err != nil {
		return newCLIError(exitCodeForPipelineError(err), err)
	}
	return nil
}

func exitCodeForPipelineError(err error) int {
	var pe *core.PipelineError
	if errors.As(err, &pe) {
		switch {
		case pe.Kind == core.KindInputInvalid:
			return 2
		case pe.Stage == "fetching":
			return 3
		case pe.Stage == "storing":
			return 5
		case pe.Stage == "delivering":
			return 6
		}
	}
	return 1
}

func loadImpactReport(path string) (core.ImpactReport, error) {
	var report core.ImpactReport
	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("read impact report %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("parse impact report %s: %w", path, err)
	}
	return report, nil
}

func loadDriftReport(path string) (*core.DriftReport, error) {
	var report core.DriftReport
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read drift report %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse drift report %s: %w", path, err)
	}
	return &report, nil
}

func writeBundleToDir(dir string, bundle core.DocumentBundle) error {
	for path, content := range bundle.Files {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}
