package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/livingdocs/pipeline/internal/core"
	"github.com/livingdocs/pipeline/internal/store"
)

// fakeObjectClient is a minimal in-memory store.ObjectClient, local to
// this package's tests since the store package's own fake is unexported.
type fakeObjectClient struct {
	objects map[string][]byte
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: make(map[string][]byte)}
}

func (f *fakeObjectClient) PutObject(_ context.Context, p *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(p.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(p.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectClient) GetObject(_ context.Context, p *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(p.Key)]
	if !ok {
		return nil, &smithyLikeErr{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeObjectClient) DeleteObject(_ context.Context, p *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(p.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeObjectClient) ListObjectsV2(_ context.Context, p *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(p.Prefix)
	var contents []types.Object
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			contents = append(contents, types.Object{Key: aws.String(key)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

// smithyLikeErr stands in for a missing-object error. Fixtures in this
// file always seed every artifact path, so store.getObject's 404 mapping
// is never exercised against it.
type smithyLikeErr struct{}

func (smithyLikeErr) Error() string { return "not found" }

func newTestRouter(t *testing.T) (*chi.Mux, string) {
	t.Helper()
	objClient := newFakeObjectClient()
	idx := store.NewInMemoryIndexStore()
	s := store.New(objClient, idx, "test-bucket")
	h := NewDocumentsHandler(s, slog.Default())

	projectID := uuid.New().String()

	r := chi.NewRouter()
	r.Route("/projects/{id}/documents", func(r chi.Router) {
		r.Get("/filters", h.Filters)
		r.Post("/search", h.Search)
		r.Get("/", h.List)
		r.Get("/{commit}", h.GetCommit)
		r.Get("/{commit}/summary", h.GetSummary)
		r.Get("/{commit}/readme", h.GetReadme)
		r.Get("/{commit}/metadata", h.GetMetadataFile)
		r.Put("/{commit}/tags", h.PutTags)
		r.Delete("/{commit}", h.Delete)
		r.Post("/test-upload", h.TestUpload)
	})
	return r, projectID
}

func uploadFixture(t *testing.T, r *chi.Mux, projectID, commit string) {
	t.Helper()
	body := `{"commitHash":"` + commit + `","title":"t","summary":"# hello\nworld endpoint /users\n","branch":"main","tags":["stable"],` +
		`"docs":{"docs/README.generated.md":"# readme\n","docs/api/api-reference.md":"# api\n"}}`
	req := httptest.NewRequest(http.MethodPost, "/projects/"+projectID+"/documents/test-upload", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouteOrdering_FiltersAndSearchBeforeCommitParam(t *testing.T) {
	r, projectID := newTestRouter(t)
	uploadFixture(t, r, projectID, "abc1234")

	// /filters must resolve to Filters, not GetCommit("filters").
	req := httptest.NewRequest(http.MethodGet, "/projects/"+projectID+"/documents/filters", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var filters map[string][]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filters))
	require.Contains(t, filters["commits"], "abc1234")
	require.Contains(t, filters["branches"], "main")

	// /search must resolve to Search, not GetCommit("search").
	req = httptest.NewRequest(http.MethodPost, "/projects/"+projectID+"/documents/search", strings.NewReader(`{"query":"endpoint"}`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var hits []store.SearchHit
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hits))
	require.Len(t, hits, 1)
	require.Equal(t, "abc1234", hits[0].CommitID)
}

func TestListAndGetCommit(t *testing.T) {
	r, projectID := newTestRouter(t)
	uploadFixture(t, r, projectID, "abc1234")

	req := httptest.NewRequest(http.MethodGet, "/projects/"+projectID+"/documents", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var versions []core.DocumentVersion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
	require.Len(t, versions, 1)
	require.Equal(t, "abc1234", versions[0].CommitIdentifier)

	req = httptest.NewRequest(http.MethodGet, "/projects/"+projectID+"/documents/abc1234", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPutTagsThenDelete(t *testing.T) {
	r, projectID := newTestRouter(t)
	uploadFixture(t, r, projectID, "abc1234")

	req := httptest.NewRequest(http.MethodPut, "/projects/"+projectID+"/documents/abc1234/tags", strings.NewReader(`{"tags":["v1","reviewed"]}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/projects/"+projectID+"/documents/abc1234/metadata", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var meta core.Metadata
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	require.Equal(t, []string{"v1", "reviewed"}, meta.Tags)

	req = httptest.NewRequest(http.MethodDelete, "/projects/"+projectID+"/documents/abc1234", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/projects/"+projectID+"/documents", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var versions []core.DocumentVersion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
	require.Len(t, versions, 0)
}
