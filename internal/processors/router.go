package processors

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/recurware/billing-backend/internal/catalog"
	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

// Route carries the facts a strategy may route on.
type Route struct {
	AccountID uuid.UUID
	Product   catalog.Product
}

// Strategy inspects a route and names a processor, or returns "" to pass the
// decision down the chain. Strategies must be side-effect free.
type Strategy func(ctx context.Context, route Route) (string, error)

// Router resolves the processor for a route by walking an ordered strategy
// chain. The first strategy that names a processor wins; when none does, the
// route falls through to DefaultName.
type Router struct {
	registry   *Registry
	strategies []Strategy
}

func NewRouter(registry *Registry, strategies ...Strategy) (*Router, error) {
	if registry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "processor registry is required")
	}
	return &Router{registry: registry, strategies: strategies}, nil
}

// Resolve returns the processor responsible for the route.
func (r *Router) Resolve(ctx context.Context, route Route) (Processor, error) {
	for _, strategy := range r.strategies {
		name, err := strategy(ctx, route)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "processor routing strategy")
		}
		if name != "" {
			return r.registry.Get(name)
		}
	}
	return r.registry.Get(DefaultName)
}

// FreeProductStrategy routes products with no payment requirement to the
// named processor. Products that do require payment fall through.
func FreeProductStrategy(name string) Strategy {
	return func(_ context.Context, route Route) (string, error) {
		if route.Product.RequiresPaymentDetails {
			return "", nil
		}
		return name, nil
	}
}

// StrategiesFromConfig parses configured router entries into an ordered
// strategy chain. Each entry is "key=processor": the literal key "free"
// routes products that need no payment details, any other key routes a
// product by name. Entry order is chain order.
func StrategiesFromConfig(entries []string) ([]Strategy, error) {
	strategies := make([]Strategy, 0, len(entries))
	for _, entry := range entries {
		key, processor, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || key == "" || processor == "" {
			return nil, pkgerrors.New(pkgerrors.CodeConfiguration,
				fmt.Sprintf("malformed router entry %q, want key=processor", entry))
		}
		if strings.EqualFold(key, "free") {
			strategies = append(strategies, FreeProductStrategy(processor))
			continue
		}
		strategies = append(strategies, ProductNameStrategy(processor, key))
	}
	return strategies, nil
}

// ProductNameStrategy routes specific product names to a processor.
func ProductNameStrategy(processor string, productNames ...string) Strategy {
	routed := make(map[string]bool, len(productNames))
	for _, name := range productNames {
		routed[name] = true
	}
	return func(_ context.Context, route Route) (string, error) {
		if routed[route.Product.Name] {
			return processor, nil
		}
		return "", nil
	}
}
