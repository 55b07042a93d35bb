package processors

import (
	"sync"

	pkgerrors "github.com/recurware/billing-backend/pkg/errors"
)

// DefaultName is the reserved routing name every chain falls back to. Wiring
// aliases it to the configured default processor at startup.
const DefaultName = "default"

// Factory builds a processor instance. Factories run at most once per name;
// the registry caches the instance for the life of the process.
type Factory func() (Processor, error)

// Registry maps routing names to processor factories. Names are registered at
// startup and resolved during approval; resolution of an unregistered name is
// a configuration error, not a runtime fallback.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	aliases   map[string]string
	instances map[string]Processor
}

func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		aliases:   map[string]string{},
		instances: map[string]Processor{},
	}
}

// Register binds a routing name to a processor factory. Registering an
// existing name replaces the factory and drops any cached instance.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
	delete(r.instances, name)
}

// Alias makes name resolve to target. Used to pin DefaultName to the
// configured default processor.
func (r *Registry) Alias(name, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = target
}

// Get resolves a routing name to its processor, building it on first use.
func (r *Registry) Get(name string) (Processor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if target, ok := r.aliases[name]; ok {
		name = target
	}
	if instance, ok := r.instances[name]; ok {
		return instance, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConfiguration, "payment processor "+name+" is not registered")
	}
	instance, err := factory()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConfiguration, err, "build payment processor "+name)
	}
	r.instances[name] = instance
	return instance, nil
}

// Names returns every registered routing name, aliases excluded.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
