package remoteconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"report_catalog/internal/catalog"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Repository is one entry of the repositories file.
type Repository struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	URL         string        `yaml:"url"`
	Login       string        `yaml:"login,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	Active      *bool         `yaml:"active,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// IsActive reports whether the repository takes part in the catalog.
// Entries without an explicit flag are active.
func (r Repository) IsActive() bool {
	return r.Active == nil || *r.Active
}

func (r Repository) definition() catalog.RemoteDefinition {
	return catalog.RemoteDefinition{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		URL:         r.URL,
		Login:       r.Login,
		Password:    r.Password,
		Active:      r.IsActive(),
		Timeout:     r.Timeout,
	}
}

type document struct {
	Repositories []Repository `yaml:"repositories"`
}

// File reads remote repository definitions from a YAML file on every call,
// so edits are picked up by the next reload.
type File struct {
	path   string
	logger *logrus.Logger
}

// NewFile creates a reader for the file at path.
func NewFile(path string, logger *logrus.Logger) *File {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &File{path: path, logger: logger}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Repositories returns every entry in file order. A missing file holds no entries.
func (f *File) Repositories(ctx context.Context) ([]Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.WithField("path", f.path).Debug("Remote repository file not found, no remote sources configured")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read remote repository file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse remote repository file %s: %w", f.path, err)
	}
	return doc.Repositories, nil
}

// ActiveRepositories returns the active entries in file order.
func (f *File) ActiveRepositories(ctx context.Context) ([]catalog.RemoteDefinition, error) {
	repos, err := f.Repositories(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]catalog.RemoteDefinition, 0, len(repos))
	for _, repo := range repos {
		if !repo.IsActive() {
			f.logger.WithField("source_id", repo.ID).Debug("Skipping inactive remote repository")
			continue
		}
		defs = append(defs, repo.definition())
	}
	return defs, nil
}

// Write replaces the file with repos.
func (f *File) Write(repos []Repository) error {
	data, err := yaml.Marshal(document{Repositories: repos})
	if err != nil {
		return fmt.Errorf("encode remote repositories: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write remote repository file: %w", err)
	}
	return nil
}
