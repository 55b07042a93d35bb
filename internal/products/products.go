// Package products defines the plans this deployment sells. The billing core
// is product-agnostic; everything specific to the lineup lives here.
package products

import (
	"github.com/shopspring/decimal"

	"github.com/recurware/billing-backend/internal/catalog"
)

// Group is the registry group every standard plan belongs to.
const Group = "saas"

// DefaultRegistry builds the product registry for this deployment.
func DefaultRegistry() *catalog.Registry {
	reg := catalog.NewRegistry()

	free := catalog.Product{
		Name:         "FreePlan",
		BasePrice:    decimal.Zero,
		FeatureSpecs: []string{"projects:1", "support:community"},
	}
	bronze := catalog.Product{
		Name:                   "BronzePlan",
		BasePrice:              decimal.NewFromInt(25),
		RequiresPaymentDetails: true,
		FeatureSpecs:           []string{"projects:5", "support:email"},
	}
	silver := catalog.Product{
		Name:                   "SilverPlan",
		BasePrice:              decimal.NewFromInt(75),
		RequiresPaymentDetails: true,
		FeatureSpecs:           []string{"projects:25", "support:email", "sla:business-hours"},
	}
	gold := catalog.Product{
		Name:                   "GoldPlan",
		BasePrice:              decimal.NewFromInt(250),
		RequiresPaymentDetails: true,
		FeatureSpecs:           []string{"projects:unlimited", "support:phone", "sla:24x7"},
	}

	reg.Register(Group, free, bronze, silver, gold)

	// Invitation-only plans: hidden from the public listing, visible to
	// accounts that have subscribed at least once.
	reg.Register(Group,
		free.Derive("SecretFreePlan", func(p *catalog.Product) {
			p.Hidden = true
			p.FeatureSpecs = append(p.FeatureSpecs, "projects:3")
		}),
		gold.Derive("SecretPlan", func(p *catalog.Product) {
			p.Hidden = true
			p.BasePrice = decimal.NewFromInt(100)
		}),
	)

	// Negotiated plans: priced per contract, never self-serve.
	reg.Register(Group,
		gold.Derive("EnterprisePlan", func(p *catalog.Product) {
			p.Hidden = true
			p.FeatureSpecs = append(p.FeatureSpecs, "support:dedicated")
		}),
		gold.Derive("CustomPlan", func(p *catalog.Product) {
			p.Hidden = true
			p.BasePrice = decimal.Zero
			p.RequiresPaymentDetails = false
		}),
	)

	return reg
}
