package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/livingdocs/pipeline/internal/artifactgen"
	"github.com/livingdocs/pipeline/internal/changedetect"
	"github.com/livingdocs/pipeline/internal/config"
	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/delivery"
	"github.com/livingdocs/pipeline/internal/drift"
	"github.com/livingdocs/pipeline/internal/gitutil"
	"github.com/livingdocs/pipeline/internal/impactscore"
	"github.com/livingdocs/pipeline/internal/parse"
	"github.com/livingdocs/pipeline/internal/sourcefetch"
	"github.com/livingdocs/pipeline/internal/store"
)

// Pipeline runs the full per-commit sequence from §2's data flow: Source
// Fetcher -> Change Detector -> Parser Set -> Impact Scorer -> Artifact
// Generator -> Drift Analyzer -> Artifact Store -> Delivery Agent. It
// implements core.Job so the Dispatcher can run it per coalesced trigger.
//
// Store and DeliveryAgent may be nil: a nil Store skips the relational
// index + object store upload (the CLI's lightweight mode, §6); a nil
// DeliveryAgent skips branch/commit/push/PR delivery.
type Pipeline struct {
	Config        *config.Config
	Git           *gitutil.Client
	Fetcher       *sourcefetch.Fetcher
	Parsers       *parse.Registry
	Store         *store.Store
	DeliveryAgent *delivery.Agent
	Statuses      *StatusTracker
	Logger        *slog.Logger
}

// NewPipeline wires a Pipeline from its dependencies.
func NewPipeline(cfg *config.Config, git *gitutil.Client, fetcher *sourcefetch.Fetcher, parsers *parse.Registry, objStore *store.Store, deliveryAgent *delivery.Agent, statuses *StatusTracker, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if statuses == nil {
		statuses = NewStatusTracker()
	}
	return &Pipeline{
		Config: cfg, Git: git, Fetcher: fetcher, Parsers: parsers,
		Store: objStore, DeliveryAgent: deliveryAgent, Statuses: statuses, Logger: logger,
	}
}

// Run executes one pipeline run for t. It never returns a
// KindGenerationFailed error: generation failures are absorbed into a
// degraded bundle so delivery can still proceed (§7).
func (p *Pipeline) Run(ctx context.Context, t core.Trigger) (err error) {
	key := t.Key()
	p.Statuses.Set(key, StageQueued)

	defer func() {
		if err != nil {
			p.Logger.ErrorContext(ctx, "pipeline run failed", "key", key, "error", err)
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, p.Config.Pipeline.FetchTimeout)
	defer cancel()
	p.Statuses.Set(key, StageFetching)
	fetched, err := p.Fetcher.Fetch(fetchCtx, sourcefetch.Request{
		Local:     t.LocalPath,
		RemoteURL: t.RepoCloneURL,
		Token:     t.Token,
		Branch:    t.Branch,
		Revision:  t.CommitSHA,
	})
	if err != nil {
		p.fail(key, StageFetching, err)
		return err
	}
	defer fetched.Cleanup()

	repo, err := p.Git.Open(fetched.WorkDir)
	if err != nil {
		p.fail(key, StageFetching, err)
		return core.NewPipelineError(core.KindFatalInternal, "fetching", err)
	}

	projectCfg, cfgErr := config.LoadProjectConfig(fetched.WorkDir)
	if cfgErr != nil && projectCfg == nil {
		projectCfg = core.DefaultProjectConfig()
	}

	p.Statuses.Set(key, StageDetecting)
	records, err := changedetect.New(p.Git, projectCfg).Detect(ctx, repo, fetched.CommitSHA)
	if err != nil {
		p.fail(key, StageDetecting, err)
		return err
	}

	parentSHA, hasParent, _ := p.Git.ParentSHA(repo, fetched.CommitSHA)

	parseCtx, parseCancel := context.WithTimeout(ctx, p.Config.Pipeline.ParseTimeout)
	defer parseCancel()
	p.Statuses.Set(key, StageParsing)
	inputs := p.extractAll(parseCtx, repo, fetched.WorkDir, records, parentSHA, hasParent)

	p.Statuses.Set(key, StageScoring)
	changes, repoSeverity, breaking := impactscore.Score(inputs)

	report := core.ImpactReport{
		Meta: core.ImpactMeta{ToolVersion: artifactgen.ToolVersion, GeneratedAt: time.Now().UTC()},
		Context: core.ImpactContext{
			RepoName:        t.RepoFullName,
			Branch:          fetched.Branch,
			CommitSHA:       fetched.CommitSHA,
			Author:          fetched.Author,
			CommitMessage:   fetched.Message,
			CommitTimestamp: fetched.Timestamp,
		},
		AnalysisSummary: core.AnalysisSummary{
			FileCount:       len(changes),
			HighestSeverity: repoSeverity,
			BreakingChange:  breaking,
		},
		Changes: changes,
	}

	p.Statuses.Set(key, StageGenerating)
	finalBundle, warnings := p.generateWithDrift(ctx, key, t, report)
	for _, w := range warnings {
		p.Statuses.Warn(key, w)
	}

	version := core.DocumentVersion{
		Branch:      fetched.Branch,
		Title:       fmt.Sprintf("Documentation for %s", delivery.ShortSHA(fetched.CommitSHA)),
		Description: fetched.Message,
		SummaryPath: core.SummaryPath,
		ReadmePath:  core.ReadmePath,
		APIDocsPath: core.APIDocsPath,
	}
	meta := core.Metadata{
		Version:     version.VersionTag,
		Branch:      fetched.Branch,
		Commit:      fetched.CommitSHA,
		CommitURL:   fmt.Sprintf("https://github.com/%s/commit/%s", t.RepoFullName, fetched.CommitSHA),
		BranchURL:   fmt.Sprintf("https://github.com/%s/tree/%s", t.RepoFullName, fetched.Branch),
		Title:       version.Title,
		Description: version.Description,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if t.LocalDocsDir != "" {
		if werr := writeLocalBundle(t.LocalDocsDir, finalBundle); werr != nil {
			p.Logger.ErrorContext(ctx, "failed to write local docs dir", "error", werr)
		}
	}

	if p.Store != nil && !t.SkipStore {
		storeCtx, storeCancel := context.WithTimeout(ctx, p.Config.Pipeline.UploadTimeout)
		defer storeCancel()
		p.Statuses.Set(key, StageStoring)
		if err := p.Store.Upload(storeCtx, t.ProjectID, fetched.CommitSHA, finalBundle, meta, version); err != nil {
			p.fail(key, StageStoring, err)
			return core.NewPipelineError(core.KindStoreFailed, "storing", err)
		}
	}

	if p.DeliveryAgent != nil && !t.SkipDelivery {
		deliverCtx, deliverCancel := context.WithTimeout(ctx, p.Config.Pipeline.DeliverTimeout)
		defer deliverCancel()
		p.Statuses.Set(key, StageDelivering)
		result, derr := p.DeliveryAgent.Deliver(deliverCtx, delivery.Request{
			RepoOwner:    t.RepoOwner,
			RepoName:     t.RepoName,
			RepoCloneURL: t.RepoCloneURL,
			Token:        t.Token,
			TargetBranch: p.Config.Delivery.TargetBranch,
			DocsRoot:     p.Config.Delivery.DocsRoot,
			CommitSHA:    fetched.CommitSHA,
			Bundle:       finalBundle,
			Summary:      string(finalBundle.Get(core.SummaryPath)),
		})
		if derr != nil {
			p.fail(key, StageDelivering, derr)
			return derr
		}
		if result.Warning != "" {
			p.Statuses.Warn(key, result.Warning)
		}
	}

	p.Statuses.Set(key, StageDone)
	return nil
}

func (p *Pipeline) fail(key string, stage Stage, err error) {
	p.Statuses.Fail(key, stage, gitutil.Sanitize(err.Error()))
}

// generateWithDrift renders the final artifact bundle: a draft pass with
// no drift context, a drift comparison against the project's previous
// version on this branch (if any), then a final pass embedding the drift
// issues into summary.md. A panic anywhere in generation is recovered
// into a degraded bundle per §7's generation_failed handling — the run
// still proceeds to storage/delivery, marked done-with-warnings via the
// returned warning strings.
func (p *Pipeline) generateWithDrift(ctx context.Context, key string, t core.Trigger, report core.ImpactReport) (bundle core.DocumentBundle, warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			genErr := fmt.Errorf("panic during artifact generation: %v", r)
			bundle = artifactgen.GenerateDegraded(report, genErr)
			warnings = append(warnings, "generation_failed: "+genErr.Error())
		}
	}()

	draft := artifactgen.Generate(report, nil)

	p.Statuses.Set(key, StageDrifting)
	var previous core.DocumentBundle
	if p.Store != nil && !t.SkipStore {
		if prevVersion, perr := p.Store.PreviousOnBranch(ctx, t.ProjectID, report.Context.Branch, report.Context.CommitSHA); perr == nil {
			if content, cerr := p.Store.GetContent(ctx, t.ProjectID, prevVersion.CommitIdentifier); cerr == nil {
				previous = core.DocumentBundle{Files: content}
			}
		}
	}

	driftReport := drift.Analyze(report, draft, previous)
	return artifactgen.Generate(report, &driftReport), nil
}

// extractAll reads current and, where needed, prior file content and runs
// the language extractor for every change record, tolerating per-file
// parse failures per §4.3: a syntax failure never aborts the run.
func (p *Pipeline) extractAll(ctx context.Context, repo *git.Repository, workDir string, records []changedetect.Record, parentSHA string, hasParent bool) []impactscore.ChangeInput {
	inputs := make([]impactscore.ChangeInput, 0, len(records))
	for _, r := range records {
		select {
		case <-ctx.Done():
			return inputs
		default:
		}

		var features core.Features
		syntaxErr := false
		if r.SafeToRead {
			content, err := os.ReadFile(filepath.Join(workDir, r.Path))
			if err != nil {
				syntaxErr = true
			} else if !changedetect.IsValidUTF8(content) {
				r.IsBinary = true
			} else {
				features, syntaxErr = p.Parsers.Extract(r.Language, string(content), r.Path)
			}
		}

		var prior core.Features
		if hasParent && r.Kind != core.ChangeAdded {
			if priorContent, err := p.Git.ReadFileAtRevision(repo, parentSHA, r.Path); err == nil {
				prior, _ = p.Parsers.Extract(r.Language, string(priorContent), r.Path)
			}
		}

		inputs = append(inputs, impactscore.NewChangeInput(r.Path, r.Kind, r.Language, r.IsBinary, syntaxErr, features, prior))
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Path < inputs[j].Path })
	return inputs
}

func writeLocalBundle(dir string, bundle core.DocumentBundle) error {
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
