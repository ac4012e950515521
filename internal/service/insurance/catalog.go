package insurance

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/jwalitptl/ed-intake/internal/gateway"
	"github.com/jwalitptl/ed-intake/internal/model"
)

const providersKey = "providers"

type Remote interface {
	Do(ctx context.Context, req gateway.Request, out interface{}) (*gateway.Response, error)
}

// Catalog is the reference list of insurance providers, fetched once per
// session and matched by name.
type Catalog struct {
	remote Remote
	cache  *cache.Cache
	group  singleflight.Group
}

// NewCatalog caches the list for ttl; zero keeps it until Invalidate.
func NewCatalog(remote Remote, ttl time.Duration) *Catalog {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 2 * ttl
	}
	return &Catalog{
		remote: remote,
		cache:  cache.New(expiration, cleanup),
	}
}

func (c *Catalog) Providers(ctx context.Context) ([]model.InsuranceProvider, error) {
	if cached, ok := c.cache.Get(providersKey); ok {
		return cached.([]model.InsuranceProvider), nil
	}

	v, err, _ := c.group.Do(providersKey, func() (interface{}, error) {
		if cached, ok := c.cache.Get(providersKey); ok {
			return cached, nil
		}
		var providers []model.InsuranceProvider
		if _, err := c.remote.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/obras-sociales"}, &providers); err != nil {
			return nil, err
		}
		if providers == nil {
			providers = []model.InsuranceProvider{}
		}
		c.cache.Set(providersKey, providers, cache.DefaultExpiration)
		return providers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.InsuranceProvider), nil
}

// Match finds the provider whose name equals name, ignoring case and
// surrounding space.
func (c *Catalog) Match(ctx context.Context, name string) (*model.InsuranceProvider, bool, error) {
	providers, err := c.Providers(ctx)
	if err != nil {
		return nil, false, err
	}
	name = strings.TrimSpace(name)
	for _, p := range providers {
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			match := p
			return &match, true, nil
		}
	}
	return nil, false, nil
}

// Search returns providers whose name contains query.
func (c *Catalog) Search(ctx context.Context, query string) ([]model.InsuranceProvider, error) {
	providers, err := c.Providers(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return providers, nil
	}
	var out []model.InsuranceProvider
	for _, p := range providers {
		if strings.Contains(strings.ToLower(p.Name), query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Catalog) Invalidate() {
	c.cache.Flush()
}
