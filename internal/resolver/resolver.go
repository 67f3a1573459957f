package resolver

import (
	"context"

	"github.com/af-corp/pricewatch/internal/pricing"
	"github.com/af-corp/pricewatch/internal/search"
)

// Resolver resolves pricing for a model from one source. A nil observation
// with a nil error means the source has nothing for this model; the chain
// moves on.
type Resolver interface {
	Slug() string
	Resolve(ctx context.Context, modelName, modelSlug string) (*pricing.Observation, error)
}

// Registry maps provider slugs to their resolvers, with a generic web-search
// fallback for providers without a specific one. It is built once in main and
// passed down — there is no package-level registry.
type Registry struct {
	resolvers map[string]Resolver
	generic   Resolver
}

// NewRegistry builds the full resolver set wired to the given searcher.
func NewRegistry(searcher search.Searcher) *Registry {
	r := &Registry{
		resolvers: make(map[string]Resolver),
		generic:   NewGenericResolver(searcher),
	}
	for _, pr := range providerResolvers(searcher) {
		r.Register(pr)
	}
	return r
}

func (r *Registry) Register(res Resolver) {
	r.resolvers[res.Slug()] = res
}

// Get returns the resolver for a provider slug, falling back to the generic
// web resolver when no specific one is registered.
func (r *Registry) Get(providerSlug string) Resolver {
	if res, ok := r.resolvers[providerSlug]; ok {
		return res
	}
	return r.generic
}

// Specific reports whether a provider-specific resolver is registered for
// the slug, as opposed to the generic web fallback.
func (r *Registry) Specific(providerSlug string) bool {
	_, ok := r.resolvers[providerSlug]
	return ok
}

// Slugs lists all registered provider slugs.
func (r *Registry) Slugs() []string {
	out := make([]string, 0, len(r.resolvers))
	for slug := range r.resolvers {
		out = append(out, slug)
	}
	return out
}
