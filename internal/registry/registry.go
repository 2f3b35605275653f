package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"omnisearch/searchservice/internal/domain"
)

// Registry is the immutable provider catalog built once at startup. It holds
// descriptors only; opening connections to the sources it describes is the
// job of provider clients.
type Registry struct {
	byID map[string]domain.ProviderDescriptor
}

// New builds a registry from the given descriptors. Entries without an id are
// dropped; when ids repeat, the later entry wins, so callers can overlay a
// file-based catalog on top of the builtin one.
func New(descriptors ...domain.ProviderDescriptor) *Registry {
	byID := make(map[string]domain.ProviderDescriptor, len(descriptors))
	for _, desc := range descriptors {
		id := NormalizeID(desc.ID)
		if id == "" {
			continue
		}
		desc.ID = id
		byID[id] = desc
	}
	return &Registry{byID: byID}
}

func NormalizeID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func (r *Registry) Len() int {
	return len(r.byID)
}

func (r *Registry) Get(id string) (domain.ProviderDescriptor, bool) {
	desc, ok := r.byID[NormalizeID(id)]
	return desc, ok
}

// All returns every descriptor sorted by id for stable catalog listings.
func (r *Registry) All() []domain.ProviderDescriptor {
	out := make([]domain.ProviderDescriptor, 0, len(r.byID))
	for _, desc := range r.byID {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Select returns the active descriptors matching the filter, sorted by
// priority descending with id ascending as the tie-break. An empty filter
// selects every active provider that does not require credentials. List
// constraints treat an empty descriptor list as a wildcard: a provider with
// no language tags matches any language filter.
func (r *Registry) Select(filter domain.SourceFilter) []domain.ProviderDescriptor {
	wanted := toSet(filter.IDs)

	out := make([]domain.ProviderDescriptor, 0, len(r.byID))
	for _, desc := range r.byID {
		if !desc.Active {
			continue
		}
		if desc.RequiresAuth && !filter.IncludeAuth {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[desc.ID]; !ok {
				continue
			}
		}
		if desc.Priority < filter.MinPriority {
			continue
		}
		if len(filter.Categories) > 0 && !containsFold(filter.Categories, desc.Category) {
			continue
		}
		if !overlapsOrWildcard(filter.Domains, desc.Domains) {
			continue
		}
		if !overlapsOrWildcard(filter.Languages, desc.Languages) {
			continue
		}
		out = append(out, desc)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// LoadFile reads extra catalog entries from a YAML file. The file holds a
// top-level `providers` list of descriptors.
func LoadFile(path string) ([]domain.ProviderDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var file struct {
		Providers []domain.ProviderDescriptor `yaml:"providers"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return file.Providers, nil
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if id := NormalizeID(v); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}

// overlapsOrWildcard reports whether the filter list is empty, the descriptor
// list is empty, or the two intersect (case-insensitive).
func overlapsOrWildcard(filter, tags []string) bool {
	if len(filter) == 0 || len(tags) == 0 {
		return true
	}
	for _, f := range filter {
		if containsFold(tags, strings.TrimSpace(f)) {
			return true
		}
	}
	return false
}
