// Package core defines the domain types and interfaces shared across the
// pipeline stages: the documents the pipeline operates on, the reports it
// produces, and the contracts each stage exposes to the orchestrator.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Severity is a per-file or repository-level impact severity.
type Severity string

const (
	SeverityPatch Severity = "PATCH"
	SeverityMinor Severity = "MINOR"
	SeverityMajor Severity = "MAJOR"
)

// rank orders severities for comparison; higher is more severe.
func (s Severity) rank() int {
	switch s {
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// Max returns the more severe of s and other.
func (s Severity) Max(other Severity) Severity {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// ChangeKind classifies how a file changed between two revisions.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "ADDED"
	ChangeModified ChangeKind = "MODIFIED"
	ChangeDeleted  ChangeKind = "DELETED"
)

// DriftSeverity is the severity band for a DriftReport issue. Fixed at
// three bands: high (removal), medium (field drift), low (missing prose).
type DriftSeverity string

const (
	DriftHigh   DriftSeverity = "high"
	DriftMedium DriftSeverity = "medium"
	DriftLow    DriftSeverity = "low"
)

// DriftKind identifies the category of a drift issue.
type DriftKind string

const (
	DriftStaleEndpoint   DriftKind = "STALE_ENDPOINT"
	DriftSchemaDrift     DriftKind = "SCHEMA_DRIFT"
	DriftOutdatedSection DriftKind = "OUTDATED_SECTION"
	DriftMissingDoc      DriftKind = "MISSING_DOC"
)

// Project is the identity for a code repository under management.
type Project struct {
	ID            uuid.UUID `db:"id"`
	DisplayName   string    `db:"display_name"`
	UpstreamURL   string    `db:"upstream_url"`
	OwnerPrincipal string   `db:"owner_principal_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// ProjectSettings holds per-project behavior toggles. Exactly one row per
// project.
type ProjectSettings struct {
	ProjectID         uuid.UUID `db:"project_id"`
	AutoGenerateDocs  bool      `db:"auto_generate_docs"`
	EncryptedUpstreamCredential []byte `db:"encrypted_upstream_credential"`
	DocsRoot          string    `db:"docs_root"`
	LastSourceSHA     string    `db:"last_source_sha"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// DocumentVersion is the index row for a per-commit artifact bundle.
type DocumentVersion struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ProjectID        uuid.UUID `db:"project_id" json:"projectId"`
	CommitIdentifier string    `db:"commit_identifier" json:"commit"`
	Branch           string    `db:"branch" json:"branch"`
	VersionTag       string    `db:"version_tag" json:"version"`
	Title            string    `db:"title" json:"title"`
	Description      string    `db:"description" json:"description"`
	Tags             []string  `db:"tags" json:"tags"`
	SummaryPath      string    `db:"summary_path" json:"-"`
	ReadmePath       string    `db:"readme_path" json:"-"`
	APIDocsPath      string    `db:"api_docs_path" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// Metadata is the JSON shape written to metadata.json for a document
// version, per the artifact store's bit-exact contract.
type Metadata struct {
	Version     string    `json:"version"`
	Branch      string    `json:"branch"`
	Commit      string    `json:"commit"`
	CommitURL   string    `json:"commitUrl"`
	BranchURL   string    `json:"branchUrl"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// Endpoint is a uniform HTTP route record, regardless of which source
// language idiom it was recognized from.
type Endpoint struct {
	Verb  string `json:"verb"`
	Route string `json:"route"`
	Line  int    `json:"line"`
}

// SchemaField is a single field of a detected schema/entity declaration.
type SchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is an ORM entity, SQL DDL table, or document-DB schema builder
// detected in a source file.
type Schema struct {
	Name   string        `json:"name"`
	Line   int           `json:"line"`
	Fields []SchemaField `json:"fields"`
}

// Symbol is a named function, method, class, or annotation detected by a
// language extractor.
type Symbol struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Features is everything a language extractor recovers from one file.
type Features struct {
	Classes     []Symbol   `json:"classes"`
	Methods     []Symbol   `json:"methods"`
	Functions   []Symbol   `json:"functions"`
	Annotations []Symbol   `json:"annotations"`
	Endpoints   []Endpoint `json:"api_endpoints"`
	Schemas     []Schema   `json:"schemas"`
}

// ChangeRecord is a per-file entry in an ImpactReport.
type ChangeRecord struct {
	Path        string     `json:"path"`
	Kind        ChangeKind `json:"change_kind"`
	Language    string     `json:"language"`
	Severity    Severity   `json:"severity"`
	IsBinary    bool       `json:"is_binary"`
	SyntaxError bool       `json:"syntax_error"`
	Features    Features   `json:"features"`
}

// ImpactMeta is the tool/version provenance block of an ImpactReport.
type ImpactMeta struct {
	ToolVersion string    `json:"tool_version"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ImpactContext is the repository/commit provenance block of an
// ImpactReport.
type ImpactContext struct {
	RepoName        string    `json:"repo_name"`
	Branch          string    `json:"branch"`
	CommitSHA       string    `json:"commit_sha"`
	Author          string    `json:"author"`
	CommitMessage   string    `json:"commit_message"`
	CommitTimestamp time.Time `json:"commit_timestamp"`
}

// AnalysisSummary is the rolled-up view of an ImpactReport's changes.
type AnalysisSummary struct {
	FileCount         int      `json:"file_count"`
	HighestSeverity   Severity `json:"highest_severity"`
	BreakingChange    bool     `json:"breaking_changes_detected"`
}

// ImpactReport is the structured description of what changed between two
// revisions, produced by the Change Detector + Parser Set + Impact Scorer
// and consumed by the Artifact Generator. It is the stable interchange
// format between pipeline stages.
type ImpactReport struct {
	Meta            ImpactMeta      `json:"meta"`
	Context         ImpactContext   `json:"context"`
	AnalysisSummary AnalysisSummary `json:"analysis_summary"`
	Changes         []ChangeRecord  `json:"changes"`
}

// DriftIssue is a single discrepancy surfaced by the Drift Analyzer.
type DriftIssue struct {
	Kind        DriftKind     `json:"kind"`
	Path        string        `json:"path"`
	Severity    DriftSeverity `json:"severity"`
	Description string        `json:"description"`
}

// DriftReport is the optional output of the Drift Analyzer, comparing a
// freshly generated artifact set against the previously stored one.
type DriftReport struct {
	Issues []DriftIssue `json:"issues"`
}

// DocumentBundle is the set of in-memory files produced for one commit,
// prior to upload. Keys are paths relative to the commit prefix, e.g.
// "summaries/summary.md".
type DocumentBundle struct {
	Files map[string][]byte
}

// Get returns the bytes for path, or nil if absent.
func (b DocumentBundle) Get(path string) []byte {
	if b.Files == nil {
		return nil
	}
	return b.Files[path]
}

// Set stores content at path, initializing the map if needed.
func (b *DocumentBundle) Set(path string, content []byte) {
	if b.Files == nil {
		b.Files = make(map[string][]byte)
	}
	b.Files[path] = content
}

const (
	SummaryPath = "summaries/summary.md"
	ReadmePath  = "docs/README.generated.md"
	APIDocsPath = "docs/api/api-reference.md"
)
