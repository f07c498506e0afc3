package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/livingdocs/pipeline/internal/config"
	"github.com/livingdocs/pipeline/internal/core"
)

// ObjectClient is the subset of the S3 API the artifact store exercises,
// narrow enough to fake in tests without a live bucket.
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewObjectClient builds an S3 client from cfg, optionally pointed at an
// S3-compatible endpoint (Cloudflare R2, GCS via S3-compat) with static
// credentials and path-style addressing.
func NewObjectClient(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Store is the full Artifact Store surface: the content-addressed object
// bucket plus its relational index, wired together so upload and delete
// honor the ordering guarantees in the storage contract.
type Store struct {
	objects ObjectClient
	index   IndexStore
	bucket  string
}

// New constructs a Store.
func New(objects ObjectClient, index IndexStore, bucket string) *Store {
	return &Store{objects: objects, index: index, bucket: bucket}
}

func keyPrefix(projectID, commitID string) string {
	return fmt.Sprintf("projects/%s/commits/%s", projectID, commitID)
}

func metadataKey(projectID, commitID string) string {
	return keyPrefix(projectID, commitID) + "/metadata.json"
}

// Upload writes every file in bundle, then metadata.json last, then the
// index row, so a reader calling List never observes a partially written
// commit.
func (s *Store) Upload(ctx context.Context, projectID, commitID string, bundle core.DocumentBundle, meta core.Metadata, version core.DocumentVersion) error {
	prefix := keyPrefix(projectID, commitID)

	paths := make([]string, 0, len(bundle.Files))
	for path := range bundle.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := s.putObject(ctx, prefix+"/"+path, bundle.Files[path]); err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.putObject(ctx, metadataKey(projectID, commitID), metaBytes); err != nil {
		return fmt.Errorf("upload metadata: %w", err)
	}

	parsedID, err := uuid.Parse(projectID)
	if err != nil {
		return fmt.Errorf("parse project id %q: %w", projectID, err)
	}
	version.ProjectID = parsedID
	version.CommitIdentifier = commitID
	if err := s.index.CreateVersion(ctx, &version); err != nil {
		return fmt.Errorf("create version index row: %w", err)
	}
	return nil
}

func (s *Store) putObject(ctx context.Context, key string, content []byte) error {
	_, err := s.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(content),
	})
	return err
}

// List returns commit ids for projectID, newest-updated first.
func (s *Store) List(ctx context.Context, projectID string) ([]string, error) {
	versions, err := s.index.ListVersions(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(versions))
	for i, v := range versions {
		ids[i] = v.CommitIdentifier
	}
	return ids, nil
}

// ListVersions returns the full index rows for projectID, newest-updated
// first, for the `/documents` listing endpoint (§6).
func (s *Store) ListVersions(ctx context.Context, projectID string) ([]core.DocumentVersion, error) {
	return s.index.ListVersions(ctx, projectID)
}

// Version returns a single index row.
func (s *Store) Version(ctx context.Context, projectID, commitID string) (*core.DocumentVersion, error) {
	return s.index.GetVersion(ctx, projectID, commitID)
}

// GetMetadata returns the metadata.json contents, or core.ErrNotFound.
func (s *Store) GetMetadata(ctx context.Context, projectID, commitID string) (*core.Metadata, error) {
	body, err := s.getObject(ctx, metadataKey(projectID, commitID))
	if err != nil {
		return nil, err
	}
	var meta core.Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// GetContent lazily returns bytes for every known artifact path under the
// commit prefix.
func (s *Store) GetContent(ctx context.Context, projectID, commitID string) (map[string][]byte, error) {
	content := make(map[string][]byte)
	for _, path := range []string{core.SummaryPath, core.ReadmePath, core.APIDocsPath} {
		body, err := s.getObject(ctx, keyPrefix(projectID, commitID)+"/"+path)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		content[path] = body
	}
	return content, nil
}

// GetSummary returns summaries/summary.md.
func (s *Store) GetSummary(ctx context.Context, projectID, commitID string) ([]byte, error) {
	return s.getObject(ctx, keyPrefix(projectID, commitID)+"/"+core.SummaryPath)
}

// GetReadme returns docs/README.generated.md.
func (s *Store) GetReadme(ctx context.Context, projectID, commitID string) ([]byte, error) {
	return s.getObject(ctx, keyPrefix(projectID, commitID)+"/"+core.ReadmePath)
}

// GetAPIDocs returns docs/api/api-reference.md.
func (s *Store) GetAPIDocs(ctx context.Context, projectID, commitID string) ([]byte, error) {
	return s.getObject(ctx, keyPrefix(projectID, commitID)+"/"+core.APIDocsPath)
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound interface{ HTTPStatusCode() int }
		if errors.As(err, &notFound) && notFound.HTTPStatusCode() == 404 {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	defer out.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	return buf.Bytes(), nil
}

// SearchHit is a single match from Search.
type SearchHit struct {
	CommitID string
	Path     string
	Snippet  string
	Line     int
}

// Search performs a case-insensitive substring search over markdown
// bodies for projectID, optionally filtered by branch/commit/tags before
// the text match is applied.
func (s *Store) Search(ctx context.Context, projectID, query string, branch, commit string, tags []string) ([]SearchHit, error) {
	versions, err := s.index.ListVersions(ctx, projectID)
	if err != nil {
		return nil, err
	}

	lowerQuery := strings.ToLower(query)
	var hits []SearchHit
	for _, v := range versions {
		if branch != "" && v.Branch != branch {
			continue
		}
		if commit != "" && v.CommitIdentifier != commit {
			continue
		}
		if len(tags) > 0 && !hasAllTags(v.Tags, tags) {
			continue
		}

		content, err := s.GetContent(ctx, projectID, v.CommitIdentifier)
		if err != nil {
			return nil, err
		}
		for path, body := range content {
			for lineNo, line := range strings.Split(string(body), "\n") {
				if strings.Contains(strings.ToLower(line), lowerQuery) {
					hits = append(hits, SearchHit{
						CommitID: v.CommitIdentifier,
						Path:     path,
						Snippet:  strings.TrimSpace(line),
						Line:     lineNo + 1,
					})
				}
			}
		}
	}
	return hits, nil
}

func hasAllTags(have, want []string) bool {
	haveSet := make(map[string]bool, len(have))
	for _, t := range have {
		haveSet[t] = true
	}
	for _, t := range want {
		if !haveSet[t] {
			return false
		}
	}
	return true
}

// Project returns the project row for projectID, for handlers that need to
// check membership before serving a documents request.
func (s *Store) Project(ctx context.Context, projectID string) (*core.Project, error) {
	return s.index.GetProject(ctx, projectID)
}

// Filters returns the distinct commits, branches, and tags known for
// projectID, for the `/documents/filters` endpoint (§6).
func (s *Store) Filters(ctx context.Context, projectID string) (commits, branches, tags []string, err error) {
	versions, err := s.index.ListVersions(ctx, projectID)
	if err != nil {
		return nil, nil, nil, err
	}

	branchSet := make(map[string]bool)
	tagSet := make(map[string]bool)
	for _, v := range versions {
		commits = append(commits, v.CommitIdentifier)
		if v.Branch != "" {
			branchSet[v.Branch] = true
		}
		for _, t := range v.Tags {
			tagSet[t] = true
		}
	}
	for b := range branchSet {
		branches = append(branches, b)
	}
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(commits)
	sort.Strings(branches)
	sort.Strings(tags)
	return commits, branches, tags, nil
}

// PreviousOnBranch returns the most recently updated version for
// projectID on branch, excluding excludeCommit, or core.ErrNotFound if
// none exists. Used by the Drift Analyzer to locate the predecessor
// bundle for a branch.
func (s *Store) PreviousOnBranch(ctx context.Context, projectID, branch, excludeCommit string) (*core.DocumentVersion, error) {
	versions, err := s.index.ListVersions(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for i := range versions {
		if versions[i].Branch == branch && versions[i].CommitIdentifier != excludeCommit {
			return &versions[i], nil
		}
	}
	return nil, core.ErrNotFound
}

// UpdateTags rewrites only metadata.json's tags (and optional version)
// plus the index row; object bytes for the commit are untouched.
func (s *Store) UpdateTags(ctx context.Context, projectID, commitID string, tags []string, versionTag string) error {
	meta, err := s.GetMetadata(ctx, projectID, commitID)
	if err != nil {
		return err
	}
	meta.Tags = tags
	if versionTag != "" {
		meta.Version = versionTag
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := s.putObject(ctx, metadataKey(projectID, commitID), metaBytes); err != nil {
		return fmt.Errorf("rewrite metadata: %w", err)
	}

	return s.index.UpdateTags(ctx, projectID, commitID, tags, versionTag)
}

// Delete removes every object under the commit prefix, then the index
// row last, so the row is never an orphan pointing at missing content —
// an observer racing the deletion either sees the full commit or none of
// it.
func (s *Store) Delete(ctx context.Context, projectID, commitID string) error {
	prefix := keyPrefix(projectID, commitID)

	listOut, err := s.objects.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("list objects under %s: %w", prefix, err)
	}

	for _, obj := range listOut.Contents {
		if _, err := s.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    obj.Key,
		}); err != nil {
			return fmt.Errorf("delete object %s: %w", aws.ToString(obj.Key), err)
		}
	}

	return s.index.DeleteVersion(ctx, projectID, commitID)
}
