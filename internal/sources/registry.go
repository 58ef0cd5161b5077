package sources

import (
	"context"
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/david/opportunity-radar/internal/models"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

const DefaultPollInterval = 24 * time.Hour

// Registry is the static list of sources the service knows about.
type Registry struct {
	Sources []Entry `yaml:"sources"`
}

// Entry describes one source as declared in sources.yaml.
type Entry struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	SourceType   string        `yaml:"source_type"` // "api", "html", "rss", "webhook"
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	Disabled     bool          `yaml:"disabled,omitempty"`
	Description  string        `yaml:"description,omitempty"`
}

// LoadRegistry reads the registry from path, or the embedded sources.yaml
// when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read source registry: %w", err)
	}

	// Expand environment variables within the YAML content (e.g. ${API_KEY}).
	// An unset variable in a boolean position becomes null and decodes as false.
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) Validate() error {
	seen := map[string]bool{}
	for i, e := range r.Sources {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, id)
		}
		seen[id] = true
		if e.PollInterval < 0 {
			return fmt.Errorf("sources[%d] %q: poll_interval must not be negative", i, id)
		}
	}
	return nil
}

// Configs converts entries to source configs, filling defaults.
func (r *Registry) Configs() []models.SourceConfig {
	out := make([]models.SourceConfig, 0, len(r.Sources))
	for _, e := range r.Sources {
		id := strings.TrimSpace(e.ID)
		poll := e.PollInterval
		if poll == 0 {
			poll = DefaultPollInterval
		}
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = id
		}
		out = append(out, models.SourceConfig{
			ID:           id,
			Name:         name,
			SourceType:   e.SourceType,
			PollInterval: poll,
			IsActive:     !e.Disabled,
		})
	}
	return out
}

// Upserter persists a source config, inserting or updating by id.
type Upserter interface {
	UpsertSource(ctx context.Context, src models.SourceConfig) error
}

// Seed writes every registry entry to the store. It stops at the first
// failure and reports how many were written before it.
func Seed(ctx context.Context, store Upserter, reg *Registry, log *zap.Logger) (int, error) {
	n := 0
	for _, src := range reg.Configs() {
		if err := store.UpsertSource(ctx, src); err != nil {
			return n, fmt.Errorf("seed source %s: %w", src.ID, err)
		}
		n++
	}
	if log != nil {
		log.Info("sources: registry seeded", zap.Int("count", n))
	}
	return n, nil
}
