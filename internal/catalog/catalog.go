package catalog

import (
	"sort"
	"sync/atomic"

	"github.com/recurware/billing-backend/pkg/config"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

// Catalog is the immutable, ordered product index the rest of the service
// reads from. It is built once by Load; reloading replaces the whole value
// through Store, never mutates in place.
type Catalog struct {
	order  []string
	byName map[string]Product
}

// Load builds a catalog from the registry according to the configured shape:
//
//   - explicit product names: listed order is preserved;
//   - group plus product names: names resolved within the group;
//   - group alone: every product in the group, sorted by base price ascending.
//
// Any reference to an unregistered product or group is a configuration
// error surfaced at startup.
func Load(reg *Registry, cfg config.CatalogConfig) (*Catalog, error) {
	if reg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "product registry is required")
	}

	var names []string
	switch {
	case len(cfg.Products) > 0 && cfg.Group != "":
		group, err := reg.Group(cfg.Group)
		if err != nil {
			return nil, err
		}
		members := map[string]bool{}
		for _, name := range group {
			members[name] = true
		}
		for _, name := range cfg.Products {
			if !members[name] {
				return nil, pkgerrors.New(pkgerrors.CodeConfiguration,
					"product "+name+" is not part of group "+cfg.Group)
			}
		}
		names = cfg.Products

	case len(cfg.Products) > 0:
		names = cfg.Products

	case cfg.Group != "":
		group, err := reg.Group(cfg.Group)
		if err != nil {
			return nil, err
		}
		sorted := make([]Product, 0, len(group))
		for _, name := range group {
			product, err := reg.Lookup(name)
			if err != nil {
				return nil, err
			}
			sorted = append(sorted, product)
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].BasePrice.LessThan(sorted[j].BasePrice)
		})
		names = make([]string, len(sorted))
		for i, product := range sorted {
			names[i] = product.Name
		}

	default:
		// No selection configured: an empty catalog is legal (early setups).
		return &Catalog{byName: map[string]Product{}}, nil
	}

	cat := &Catalog{byName: make(map[string]Product, len(names))}
	for _, name := range names {
		product, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		// Duplicate names keep the first position and the latest value.
		if _, seen := cat.byName[name]; !seen {
			cat.order = append(cat.order, name)
		}
		cat.byName[name] = product
	}
	return cat, nil
}

// Get returns the product with the given name.
func (c *Catalog) Get(name string) (Product, error) {
	product, ok := c.byName[name]
	if !ok {
		return Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "unknown product "+name)
	}
	return product, nil
}

// Has reports whether the catalog contains the named product.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// List returns the products in catalog order. Hidden products are filtered
// out unless includeHidden is set.
func (c *Catalog) List(includeHidden bool) []Product {
	products := make([]Product, 0, len(c.order))
	for _, name := range c.order {
		product := c.byName[name]
		if product.Hidden && !includeHidden {
			continue
		}
		products = append(products, product)
	}
	return products
}

// Len returns the number of products, hidden included.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Store hands out the current catalog and swaps in replacements atomically,
// so readers iterating an old catalog are never exposed to a partial reload.
type Store struct {
	current atomic.Pointer[Catalog]
}

func NewStore(cat *Catalog) *Store {
	s := &Store{}
	if cat == nil {
		cat = &Catalog{byName: map[string]Product{}}
	}
	s.current.Store(cat)
	return s
}

// Current returns the catalog in effect.
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Swap replaces the catalog in one step.
func (s *Store) Swap(cat *Catalog) {
	if cat == nil {
		return
	}
	s.current.Store(cat)
}
