package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/tempo/pkg/algorithms"
	"github.com/aretw0/tempo/pkg/domain"
)

// ScenarioMetadata is the frontmatter of a scenario document.
// It uses "mapstructure" tags to match standard Frontmatter/YAML keys.
type ScenarioMetadata struct {
	ID          string         `json:"id" mapstructure:"id"`
	Algorithm   string         `json:"algorithm" mapstructure:"algorithm"`
	Description string         `json:"description" mapstructure:"description"`
	Speed       *int           `json:"speed,omitempty" mapstructure:"speed"`
	Input       map[string]any `json:"input" mapstructure:"input"`
}

// Scenario is a ready-to-play preset.
type Scenario struct {
	Name        string
	Algorithm   string
	Description string
	// Speed is nil when the document leaves the caller's speed alone.
	Speed *int
	Input map[string]any
	Notes string
}

// Presets adapts a Loam repository to a scenario catalog.
type Presets struct {
	Repo *loam.TypedRepository[ScenarioMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[ScenarioMetadata]) *Presets {
	return &Presets{Repo: repo}
}

// Open initializes a read-only repository over dir.
func Open(dir string) (*Presets, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numbers as json.Number in every format, so inputs
	// decode the same way from Markdown, YAML and JSON.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[ScenarioMetadata](repo)), nil
}

// Get loads one scenario by name (file name without extension, or its id).
func (p *Presets) Get(ctx context.Context, name string) (Scenario, error) {
	doc, err := p.Repo.Get(ctx, name)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %q: %w", name, err)
	}
	return toScenario(doc.ID, doc.Data, doc.Content), nil
}

// List returns every scenario sorted by name.
func (p *Presets) List(ctx context.Context) ([]Scenario, error) {
	docs, err := p.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]Scenario, 0, len(docs))
	for _, doc := range docs {
		sc := toScenario(doc.ID, doc.Data, doc.Content)
		if existing, ok := seen[sc.Name]; ok {
			return nil, fmt.Errorf("collision detected: scenario '%s' is defined in both '%s' and '%s'", sc.Name, existing, doc.ID)
		}
		seen[sc.Name] = doc.ID
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Validate checks that the scenario names a registered algorithm and that
// its input is accepted.
func (s Scenario) Validate(catalog *algorithms.Catalog) error {
	def, err := catalog.Get(s.Algorithm)
	if err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	_, src, err := def.Prepare(s.Input)
	if err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	src.Stop()
	return nil
}

// SpeedOr returns the scenario speed, or fallback when it sets none.
func (s Scenario) SpeedOr(fallback int) int {
	if s.Speed == nil {
		return fallback
	}
	return domain.ClampSpeed(*s.Speed)
}

func toScenario(docID string, meta ScenarioMetadata, content string) Scenario {
	rawID := meta.ID
	if rawID == "" {
		rawID = docID
	}
	return Scenario{
		Name:        trimExtension(rawID),
		Algorithm:   meta.Algorithm,
		Description: meta.Description,
		Speed:       meta.Speed,
		Input:       meta.Input,
		Notes:       strings.TrimSpace(content),
	}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
