// Package cases loads the built-in case library from YAML files.
package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/terra-clan/caseprep/internal/models"
)

// Store is the subset of the repository the library seeds into
type Store interface {
	UpsertCase(ctx context.Context, c *models.Case) error
}

// Library manages loading and caching of library cases
type Library struct {
	mu       sync.RWMutex
	cases    map[string]*models.Case
	validate *validator.Validate
}

// NewLibrary creates an empty case library
func NewLibrary() *Library {
	return &Library{
		cases:    make(map[string]*models.Case),
		validate: validator.New(),
	}
}

// LoadFromDir loads all YAML cases from a directory and its immediate
// subdirectories. A subdirectory named after a case type supplies the
// default case_type for the files inside it.
func (l *Library) LoadFromDir(dir string) error {
	slog.Info("loading cases from directory", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)

		subMatches, err := filepath.Glob(filepath.Join(dir, "*", pattern))
		if err != nil {
			continue
		}
		files = append(files, subMatches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load case", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("cases loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single case from a YAML file
func (l *Library) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var cf caseFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Use id from YAML, fall back to filename without extension
	if cf.ID == "" {
		base := filepath.Base(path)
		cf.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if cf.CaseType == "" {
		cf.CaseType = models.CaseType(filepath.Base(filepath.Dir(path)))
	}

	c, err := cf.toCase()
	if err != nil {
		return err
	}

	req := models.CreateCaseRequest{
		ID:       c.ID,
		Title:    c.Title,
		Prompt:   c.Prompt,
		Context:  c.Context,
		Exhibits: c.Exhibits,
		CaseType: c.CaseType,
	}
	if err := l.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid case %s: %w", c.ID, err)
	}

	l.Add(c)
	slog.Debug("case loaded", "id", c.ID, "title", c.Title, "exhibits", len(c.Exhibits))
	return nil
}

// Get returns a case by ID
func (l *Library) Get(id string) *models.Case {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cases[id]
}

// List returns all loaded cases ordered by ID
func (l *Library) List() []*models.Case {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Case, 0, len(l.cases))
	for _, c := range l.cases {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Add adds or replaces a case in the library
func (l *Library) Add(c *models.Case) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cases[c.ID] = c
}

// Remove removes a case from the library
func (l *Library) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cases, id)
}

// Seed upserts every library case into the store and returns how many were written
func (l *Library) Seed(ctx context.Context, store Store) (int, error) {
	seeded := 0
	for _, c := range l.List() {
		if err := store.UpsertCase(ctx, c); err != nil {
			return seeded, fmt.Errorf("failed to seed case %s: %w", c.ID, err)
		}
		seeded++
	}
	return seeded, nil
}

// --- YAML file structs ---

// caseFile represents the YAML structure of a case file
type caseFile struct {
	ID       string            `yaml:"id"`
	Title    string            `yaml:"title"`
	Prompt   string            `yaml:"prompt"`
	CaseType models.CaseType   `yaml:"case_type"`
	Context  map[string]string `yaml:"context"`
	Exhibits []exhibitFile     `yaml:"exhibits"`
}

// exhibitFile keeps exhibit data as arbitrary YAML; it is stored as JSON
type exhibitFile struct {
	Title string             `yaml:"title"`
	Type  models.ExhibitType `yaml:"type"`
	Data  any                `yaml:"data"`
}

func (cf caseFile) toCase() (*models.Case, error) {
	exhibits := make([]models.Exhibit, 0, len(cf.Exhibits))
	for i, ef := range cf.Exhibits {
		var raw json.RawMessage
		if ef.Data != nil {
			b, err := json.Marshal(ef.Data)
			if err != nil {
				return nil, fmt.Errorf("exhibit %d data: %w", i, err)
			}
			raw = b
		}
		exhibits = append(exhibits, models.Exhibit{Title: ef.Title, Type: ef.Type, Data: raw})
	}

	return &models.Case{
		ID:       cf.ID,
		Title:    cf.Title,
		Prompt:   strings.TrimSpace(cf.Prompt),
		Context:  cf.Context,
		Exhibits: exhibits,
		CaseType: cf.CaseType,
		Source:   "library",
	}, nil
}
