package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
)

// fakeObjectClient is an in-memory stand-in for ObjectClient so the
// Store's ordering guarantees can be tested without a live bucket.
type fakeObjectClient struct {
	objects map[string][]byte
	puts    []string
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: make(map[string][]byte)}
}

func (f *fakeObjectClient) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Key)
	f.objects[key] = body
	f.puts = append(f.puts, key)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectClient) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &notFoundError{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeObjectClient) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeObjectClient) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	var contents []types.Object
	for key := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			k := key
			contents = append(contents, types.Object{Key: &k})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

type notFoundError struct{}

func (e *notFoundError) Error() string          { return "NotFound: key does not exist" }
func (e *notFoundError) HTTPStatusCode() int     { return 404 }
func (e *notFoundError) ErrorCode() string       { return "NoSuchKey" }
func (e *notFoundError) ErrorMessage() string    { return "key does not exist" }
func (e *notFoundError) ErrorFault() interface{} { return nil }

// fakeIndexStore is an in-memory stand-in for IndexStore.
type fakeIndexStore struct {
	versions map[string]core.DocumentVersion
}

func newFakeIndexStore() *fakeIndexStore {
	return &fakeIndexStore{versions: make(map[string]core.DocumentVersion)}
}

func vkey(projectID, commitID string) string { return projectID + "/" + commitID }

func (f *fakeIndexStore) GetProject(context.Context, string) (*core.Project, error) { return nil, core.ErrNotFound }
func (f *fakeIndexStore) GetProjectByUpstreamURL(context.Context, string) (*core.Project, error) {
	return nil, core.ErrNotFound
}
func (f *fakeIndexStore) CreateProject(context.Context, *core.Project) error { return nil }
func (f *fakeIndexStore) GetProjectSettings(context.Context, string) (*core.ProjectSettings, error) {
	return nil, core.ErrNotFound
}
func (f *fakeIndexStore) UpsertProjectSettings(context.Context, *core.ProjectSettings) error { return nil }

func (f *fakeIndexStore) ListVersions(_ context.Context, projectID string) ([]core.DocumentVersion, error) {
	var out []core.DocumentVersion
	for _, v := range f.versions {
		if v.ProjectID.String() == projectID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeIndexStore) GetVersion(_ context.Context, projectID, commitID string) (*core.DocumentVersion, error) {
	v, ok := f.versions[vkey(projectID, commitID)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &v, nil
}

func (f *fakeIndexStore) CreateVersion(_ context.Context, version *core.DocumentVersion) error {
	f.versions[vkey(version.ProjectID.String(), version.CommitIdentifier)] = *version
	return nil
}

func (f *fakeIndexStore) UpdateTags(_ context.Context, projectID, commitID string, tags []string, versionTag string) error {
	key := vkey(projectID, commitID)
	v, ok := f.versions[key]
	if !ok {
		return core.ErrNotFound
	}
	v.Tags = tags
	if versionTag != "" {
		v.VersionTag = versionTag
	}
	f.versions[key] = v
	return nil
}

func (f *fakeIndexStore) DeleteVersion(_ context.Context, projectID, commitID string) error {
	key := vkey(projectID, commitID)
	if _, ok := f.versions[key]; !ok {
		return core.ErrNotFound
	}
	delete(f.versions, key)
	return nil
}

func TestStore_UploadThenGet(t *testing.T) {
	objects := newFakeObjectClient()
	index := newFakeIndexStore()
	s := New(objects, index, "docs-bucket")

	var bundle core.DocumentBundle
	bundle.Set(core.SummaryPath, []byte("# summary\n"))

	err := s.Upload(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123", bundle, core.Metadata{Version: "v1"}, core.DocumentVersion{CommitIdentifier: "sha123"})
	require.NoError(t, err)

	got, err := s.GetSummary(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123")
	require.NoError(t, err)
	assert.Equal(t, "# summary\n", string(got))

	meta, err := s.GetMetadata(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123")
	require.NoError(t, err)
	assert.Equal(t, "v1", meta.Version)
}

func TestStore_UploadWritesObjectsBeforeMetadata(t *testing.T) {
	objects := newFakeObjectClient()
	index := newFakeIndexStore()
	s := New(objects, index, "docs-bucket")

	var bundle core.DocumentBundle
	bundle.Set(core.SummaryPath, []byte("# summary\n"))

	err := s.Upload(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123", bundle, core.Metadata{}, core.DocumentVersion{CommitIdentifier: "sha123"})
	require.NoError(t, err)

	require.Len(t, objects.puts, 2)
	assert.Contains(t, objects.puts[0], "summary.md")
	assert.Contains(t, objects.puts[1], "metadata.json")
}

func TestStore_GetMissingObjectReturnsErrNotFound(t *testing.T) {
	s := New(newFakeObjectClient(), newFakeIndexStore(), "docs-bucket")
	_, err := s.GetSummary(context.Background(), "11111111-1111-1111-1111-111111111111", "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestStore_DeleteRemovesObjectsAndIndexRow(t *testing.T) {
	objects := newFakeObjectClient()
	index := newFakeIndexStore()
	s := New(objects, index, "docs-bucket")

	var bundle core.DocumentBundle
	bundle.Set(core.SummaryPath, []byte("# summary\n"))
	require.NoError(t, s.Upload(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123", bundle, core.Metadata{}, core.DocumentVersion{CommitIdentifier: "sha123"}))

	require.NoError(t, s.Delete(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123"))

	_, err := s.GetSummary(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123")
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Empty(t, objects.objects)
}

func TestStore_SearchIsCaseInsensitiveSubstring(t *testing.T) {
	objects := newFakeObjectClient()
	index := newFakeIndexStore()
	s := New(objects, index, "docs-bucket")

	var bundle core.DocumentBundle
	bundle.Set(core.SummaryPath, []byte("Breaking Change: endpoint removed\n"))
	require.NoError(t, s.Upload(context.Background(), "11111111-1111-1111-1111-111111111111", "sha123", bundle, core.Metadata{}, core.DocumentVersion{CommitIdentifier: "sha123", Branch: "main"}))

	hits, err := s.Search(context.Background(), "11111111-1111-1111-1111-111111111111", "breaking", "", "", nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "sha123", hits[0].CommitID)
}
