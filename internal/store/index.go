// Package store persists the artifact index (projects, their settings,
// and the per-commit document version history) and the content-addressed
// object bytes behind it. The relational half follows the reference
// implementation's sqlx Store interface; the object half is new, backed
// by an S3-compatible bucket.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/livingdocs/pipeline/internal/core"
)

// IndexStore is the relational half of the Artifact Store: CRUD over
// projects, their settings, and document version rows.
//
//go:generate mockgen -destination=../../mocks/mock_index_store.go -package=mocks github.com/livingdocs/pipeline/internal/store IndexStore
type IndexStore interface {
	GetProject(ctx context.Context, projectID string) (*core.Project, error)
	GetProjectByUpstreamURL(ctx context.Context, upstreamURL string) (*core.Project, error)
	CreateProject(ctx context.Context, project *core.Project) error

	GetProjectSettings(ctx context.Context, projectID string) (*core.ProjectSettings, error)
	UpsertProjectSettings(ctx context.Context, settings *core.ProjectSettings) error

	ListVersions(ctx context.Context, projectID string) ([]core.DocumentVersion, error)
	GetVersion(ctx context.Context, projectID, commitID string) (*core.DocumentVersion, error)
	CreateVersion(ctx context.Context, version *core.DocumentVersion) error
	UpdateTags(ctx context.Context, projectID, commitID string, tags []string, versionTag string) error
	DeleteVersion(ctx context.Context, projectID, commitID string) error
}

type postgresIndexStore struct {
	db *sqlx.DB
}

// NewIndexStore constructs an IndexStore backed by db.
func NewIndexStore(db *sqlx.DB) IndexStore {
	return &postgresIndexStore{db: db}
}

func (s *postgresIndexStore) GetProject(ctx context.Context, projectID string) (*core.Project, error) {
	var p core.Project
	query := `SELECT id, display_name, upstream_url, owner_principal_id, created_at FROM projects WHERE id = $1`
	if err := s.db.GetContext(ctx, &p, query, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return &p, nil
}

func (s *postgresIndexStore) GetProjectByUpstreamURL(ctx context.Context, upstreamURL string) (*core.Project, error) {
	var p core.Project
	query := `SELECT id, display_name, upstream_url, owner_principal_id, created_at FROM projects WHERE upstream_url = $1`
	if err := s.db.GetContext(ctx, &p, query, upstreamURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get project by upstream url %s: %w", upstreamURL, err)
	}
	return &p, nil
}

func (s *postgresIndexStore) CreateProject(ctx context.Context, project *core.Project) error {
	query := `
		INSERT INTO projects (display_name, upstream_url, owner_principal_id)
		VALUES (:display_name, :upstream_url, :owner_principal_id)
		RETURNING id, created_at`
	stmt, err := s.db.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare create project: %w", err)
	}
	defer stmt.Close()
	return stmt.QueryRowContext(ctx, project).Scan(&project.ID, &project.CreatedAt)
}

func (s *postgresIndexStore) GetProjectSettings(ctx context.Context, projectID string) (*core.ProjectSettings, error) {
	var ps core.ProjectSettings
	query := `
		SELECT project_id, auto_generate_docs, encrypted_upstream_credential, docs_root, last_source_sha, updated_at
		FROM project_settings WHERE project_id = $1`
	if err := s.db.GetContext(ctx, &ps, query, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get project settings %s: %w", projectID, err)
	}
	return &ps, nil
}

func (s *postgresIndexStore) UpsertProjectSettings(ctx context.Context, settings *core.ProjectSettings) error {
	query := `
		INSERT INTO project_settings (project_id, auto_generate_docs, encrypted_upstream_credential, docs_root, last_source_sha, updated_at)
		VALUES (:project_id, :auto_generate_docs, :encrypted_upstream_credential, :docs_root, :last_source_sha, NOW())
		ON CONFLICT (project_id) DO UPDATE SET
			auto_generate_docs = EXCLUDED.auto_generate_docs,
			encrypted_upstream_credential = EXCLUDED.encrypted_upstream_credential,
			docs_root = EXCLUDED.docs_root,
			last_source_sha = EXCLUDED.last_source_sha,
			updated_at = NOW()`
	_, err := s.db.NamedExecContext(ctx, query, settings)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			slog.ErrorContext(ctx, "postgres error during upsert project settings", "code", pqErr.Code, "message", pqErr.Message)
		}
		return fmt.Errorf("upsert project settings %s: %w", settings.ProjectID, err)
	}
	return nil
}

// versionRow mirrors core.DocumentVersion for scanning: database/sql's
// default converter cannot assign a `TEXT[]` column into a plain
// []string field, so `tags` is scanned into a pq.StringArray here and
// copied over afterward.
type versionRow struct {
	ID               uuid.UUID      `db:"id"`
	ProjectID        uuid.UUID      `db:"project_id"`
	CommitIdentifier string         `db:"commit_identifier"`
	Branch           string         `db:"branch"`
	VersionTag       string         `db:"version_tag"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Tags             pq.StringArray `db:"tags"`
	SummaryPath      string         `db:"summary_path"`
	ReadmePath       string         `db:"readme_path"`
	APIDocsPath      string         `db:"api_docs_path"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r versionRow) toDocumentVersion() core.DocumentVersion {
	return core.DocumentVersion{
		ID:               r.ID,
		ProjectID:        r.ProjectID,
		CommitIdentifier: r.CommitIdentifier,
		Branch:           r.Branch,
		VersionTag:       r.VersionTag,
		Title:            r.Title,
		Description:      r.Description,
		Tags:             []string(r.Tags),
		SummaryPath:      r.SummaryPath,
		ReadmePath:       r.ReadmePath,
		APIDocsPath:      r.APIDocsPath,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

const versionColumns = `id, project_id, commit_identifier, branch, version_tag, title, description, tags,
		       summary_path, readme_path, api_docs_path, created_at, updated_at`

func (s *postgresIndexStore) ListVersions(ctx context.Context, projectID string) ([]core.DocumentVersion, error) {
	var rows []versionRow
	query := `SELECT ` + versionColumns + `
		FROM document_versions
		WHERE project_id = $1
		ORDER BY updated_at DESC`
	if err := s.db.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, fmt.Errorf("list versions for project %s: %w", projectID, err)
	}
	versions := make([]core.DocumentVersion, len(rows))
	for i, r := range rows {
		versions[i] = r.toDocumentVersion()
	}
	return versions, nil
}

func (s *postgresIndexStore) GetVersion(ctx context.Context, projectID, commitID string) (*core.DocumentVersion, error) {
	var r versionRow
	query := `SELECT ` + versionColumns + `
		FROM document_versions
		WHERE project_id = $1 AND commit_identifier = $2`
	if err := s.db.GetContext(ctx, &r, query, projectID, commitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("get version %s/%s: %w", projectID, commitID, err)
	}
	v := r.toDocumentVersion()
	return &v, nil
}

// CreateVersion writes the index row for a version. Callers must upload
// the corresponding objects to the bucket first — see Store.Upload, which
// sequences this call after the object writes so partial uploads never
// become visible to ListVersions.
//
// tags goes through pq.Array explicitly rather than a named-param struct
// bind: lib/pq has no driver.Valuer for a plain []string, so binding
// version.Tags straight through a `:tags` placeholder fails against a
// TEXT[] column.
func (s *postgresIndexStore) CreateVersion(ctx context.Context, version *core.DocumentVersion) error {
	query := `
		INSERT INTO document_versions
			(project_id, commit_identifier, branch, version_tag, title, description, tags,
			 summary_path, readme_path, api_docs_path)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (project_id, commit_identifier) DO UPDATE SET
			branch = EXCLUDED.branch,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		version.ProjectID, version.CommitIdentifier, version.Branch, version.VersionTag,
		version.Title, version.Description, pq.Array(version.Tags),
		version.SummaryPath, version.ReadmePath, version.APIDocsPath,
	).Scan(&version.ID, &version.CreatedAt, &version.UpdatedAt)
}

func (s *postgresIndexStore) UpdateTags(ctx context.Context, projectID, commitID string, tags []string, versionTag string) error {
	query := `
		UPDATE document_versions
		SET tags = $3, version_tag = COALESCE(NULLIF($4, ''), version_tag), updated_at = NOW()
		WHERE project_id = $1 AND commit_identifier = $2`
	res, err := s.db.ExecContext(ctx, query, projectID, commitID, pq.Array(tags), versionTag)
	if err != nil {
		return fmt.Errorf("update tags for %s/%s: %w", projectID, commitID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for update tags: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *postgresIndexStore) DeleteVersion(ctx context.Context, projectID, commitID string) error {
	query := `DELETE FROM document_versions WHERE project_id = $1 AND commit_identifier = $2`
	res, err := s.db.ExecContext(ctx, query, projectID, commitID)
	if err != nil {
		return fmt.Errorf("delete version %s/%s: %w", projectID, commitID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for delete version: %w", err)
	}
	if rows == 0 {
		return core.ErrNotFound
	}
	return nil
}
