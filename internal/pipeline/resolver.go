package pipeline

import (
	"sort"
)

// SpecResolver resolves stage keys to specs, enabling cross-registry lookup.
type SpecResolver interface {
	Get(key string) (StageSpec, bool)
	List() []StageSpec
}

// MapResolver is a simple SpecResolver backed by a map keyed by normalized
// stage keys.
type MapResolver struct {
	specs map[string]StageSpec
}

// Get returns the StageSpec for the provided key, if present.
func (r MapResolver) Get(key string) (StageSpec, bool) {
	if len(r.specs) == 0 {
		return StageSpec{}, false
	}
	spec, ok := r.specs[normalizeKey(key)]
	return spec, ok
}

// List returns all registered stage specs.
func (r MapResolver) List() []StageSpec {
	specs := make([]StageSpec, 0, len(r.specs))
	for _, s := range r.specs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Key < specs[j].Key })
	return specs
}

// MergeRegistries flattens multiple stage registries into a single resolver.
// It also computes downstream dependencies automatically from Requires.
func MergeRegistries(regs ...map[string]StageSpec) SpecResolver {
	merged := make(map[string]StageSpec, 16)
	downstream := make(map[string][]string)

	for _, reg := range regs {
		for k, v := range reg {
			nk := normalizeKey(k)
			merged[nk] = v
			for _, req := range v.Requires {
				nr := normalizeKey(req)
				downstream[nr] = append(downstream[nr], nk)
			}
		}
	}

	// Update downstream fields in specs
	for k, v := range merged {
		if ds, ok := downstream[k]; ok {
			// Sort for determinism
			sort.Strings(ds)
			v.Downstream = ds
			merged[k] = v
		}
	}

	return MapResolver{specs: merged}
}
