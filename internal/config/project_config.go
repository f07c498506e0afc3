package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/livingdocs/pipeline/internal/core"
)

var (
	ErrProjectConfigNotFound = errors.New("project config file not found")
	ErrProjectConfigParsing  = errors.New("project config parsing failed")
)

// LoadProjectConfig loads and parses the `.livingdocs.yml` file from a
// project's working tree. A missing file is not an error condition callers
// need to branch hard on: it returns defaults alongside
// ErrProjectConfigNotFound so callers that don't care can ignore the error.
func LoadProjectConfig(repoPath string) (*core.ProjectConfig, error) {
	configPath := filepath.Join(repoPath, ".livingdocs.yml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return core.DefaultProjectConfig(), ErrProjectConfigNotFound
		}
		return nil, fmt.Errorf("failed to read .livingdocs.yml: %w", err)
	}

	cfg := core.DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProjectConfigParsing, err)
	}
	return cfg, nil
}
