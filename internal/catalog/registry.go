package catalog

import (
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

// Registry holds every product definition known to the process, grouped by
// an application-chosen group name. Registration happens once at startup;
// there is no runtime scanning or discovery. Registering the same product
// name twice keeps the first-seen position and the most recent value.
type Registry struct {
	groups map[string][]string
	byName map[string]Product
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{
		groups: map[string][]string{},
		byName: map[string]Product{},
	}
}

// Register adds products to a group. Later registrations of an existing name
// replace the stored definition without changing its position.
func (r *Registry) Register(group string, products ...Product) {
	for _, product := range products {
		if _, seen := r.byName[product.Name]; !seen {
			r.order = append(r.order, product.Name)
			r.groups[group] = append(r.groups[group], product.Name)
		}
		r.byName[product.Name] = product
	}
}

// Lookup returns the registered product definition.
func (r *Registry) Lookup(name string) (Product, error) {
	product, ok := r.byName[name]
	if !ok {
		return Product{}, pkgerrors.New(pkgerrors.CodeConfiguration, "product "+name+" is not registered")
	}
	return product, nil
}

// Group returns the registered names of a group in registration order.
func (r *Registry) Group(name string) ([]string, error) {
	names, ok := r.groups[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "product group "+name+" is not registered")
	}
	return append([]string(nil), names...), nil
}
