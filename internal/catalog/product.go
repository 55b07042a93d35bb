package catalog

import "github.com/shopspring/decimal"

// Product is a flat, data-driven plan definition. Plans are values built at
// configuration time; there is no runtime plan hierarchy. FeatureSpecs is
// opaque to the billing core and consumed by the pricing engine.
type Product struct {
	Name                   string
	BasePrice              decimal.Decimal
	RequiresPaymentDetails bool
	Hidden                 bool
	FeatureSpecs           []string
}

// Derive returns a copy of the product with overrides applied by fn. It is
// the configuration-time replacement for plan inheritance: a derived plan
// starts as an explicit copy of its base.
func (p Product) Derive(name string, fn func(*Product)) Product {
	derived := p
	derived.Name = name
	derived.FeatureSpecs = append([]string(nil), p.FeatureSpecs...)
	if fn != nil {
		fn(&derived)
	}
	return derived
}
