package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/livingdocs/pipeline/internal/core"
)

// memoryIndexStore is a process-lifetime IndexStore with no durable backing,
// for the delivery-agent CLI surface (§6): a CI job has no relational index
// to talk to, but still needs an IndexStore to satisfy Store.Upload's
// object-then-metadata-then-index-row ordering.
type memoryIndexStore struct {
	mu       sync.Mutex
	versions map[string]map[string]core.DocumentVersion
}

// NewInMemoryIndexStore returns an IndexStore backed by an in-process map.
func NewInMemoryIndexStore() IndexStore {
	return &memoryIndexStore{versions: make(map[string]map[string]core.DocumentVersion)}
}

func (m *memoryIndexStore) GetProject(_ context.Context, _ string) (*core.Project, error) {
	return nil, core.ErrNotFound
}

func (m *memoryIndexStore) GetProjectByUpstreamURL(_ context.Context, _ string) (*core.Project, error) {
	return nil, core.ErrNotFound
}

func (m *memoryIndexStore) CreateProject(_ context.Context, project *core.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	return nil
}

func (m *memoryIndexStore) GetProjectSettings(_ context.Context, _ string) (*core.ProjectSettings, error) {
	return nil, core.ErrNotFound
}

func (m *memoryIndexStore) UpsertProjectSettings(_ context.Context, _ *core.ProjectSettings) error {
	return nil
}

func (m *memoryIndexStore) ListVersions(_ context.Context, projectID string) ([]core.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCommit, ok := m.versions[projectID]
	if !ok {
		return nil, nil
	}
	out := make([]core.DocumentVersion, 0, len(byCommit))
	for _, v := range byCommit {
		out = append(out, v)
	}
	return out, nil
}

func (m *memoryIndexStore) GetVersion(_ context.Context, projectID, commitID string) (*core.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCommit, ok := m.versions[projectID]
	if !ok {
		return nil, core.ErrNotFound
	}
	v, ok := byCommit[commitID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &v, nil
}

func (m *memoryIndexStore) CreateVersion(_ context.Context, version *core.DocumentVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	key := version.ProjectID.String()
	if m.versions[key] == nil {
		m.versions[key] = make(map[string]core.DocumentVersion)
	}
	m.versions[key][version.CommitIdentifier] = *version
	return nil
}

func (m *memoryIndexStore) UpdateTags(_ context.Context, projectID, commitID string, tags []string, versionTag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCommit, ok := m.versions[projectID]
	if !ok {
		return core.ErrNotFound
	}
	v, ok := byCommit[commitID]
	if !ok {
		return core.ErrNotFound
	}
	v.Tags = tags
	if versionTag != "" {
		v.VersionTag = versionTag
	}
	byCommit[commitID] = v
	return nil
}

func (m *memoryIndexStore) DeleteVersion(_ context.Context, projectID, commitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCommit, ok := m.versions[projectID]
	if !ok {
		return core.ErrNotFound
	}
	if _, ok := byCommit[commitID]; !ok {
		return core.ErrNotFound
	}
	delete(byCommit, commitID)
	return nil
}
