package packaging

import "sync"

// Registry is the immutable, ordered strategy list used for one loader.
type Registry struct {
	loader     *Loader
	strategies []Strategy
	cache      *Cache
}

type registryEntry struct {
	once sync.Once
	reg  *Registry
}

// registries maps loader identity to its registry. Entries live until
// ReleaseRegistry is called, so loaders passed to RegistryFor are expected
// to be long-lived.
var registries sync.Map // *Loader -> *registryEntry

// RegistryFor returns the registry for l, detecting its strategies on first
// use. A nil loader means the process loader. Short-lived loaders should use
// NewRegistry or call ReleaseRegistry when done.
func RegistryFor(l *Loader) *Registry {
	if l == nil {
		l = ProcessLoader()
	}
	v, _ := registries.LoadOrStore(l, &registryEntry{})
	entry := v.(*registryEntry)
	entry.once.Do(func() {
		entry.reg = NewRegistry(l, Detect(l)...)
	})
	return entry.reg
}

// ReleaseRegistry drops the registry recorded for l, along with its cache.
// The process loader is never released.
func ReleaseRegistry(l *Loader) {
	if l == nil || l == ProcessLoader() {
		return
	}
	registries.Delete(l)
}

// NewRegistry builds a registry with an explicit strategy list. It is not
// recorded in the process-wide mapping.
func NewRegistry(l *Loader, strategies ...Strategy) *Registry {
	list := make([]Strategy, len(strategies))
	copy(list, strategies)
	return &Registry{loader: l, strategies: list, cache: NewCache()}
}

// Detect probes the loader chain and returns the usable strategies in order.
// It never panics: a failing probe omits its strategy.
func Detect(l *Loader) []Strategy {
	var out []Strategy
	if probeModules(l) {
		out = append(out, ModuleStrategy{})
	}
	return append(out, PathStrategy{})
}

func probeModules(l *Loader) (present bool) {
	defer func() {
		if r := recover(); r != nil {
			present = false
		}
	}()
	return l.HasModules()
}

// Loader returns the loader the registry was built for.
func (r *Registry) Loader() *Loader { return r.loader }

// Strategies returns a copy of the ordered strategy list.
func (r *Registry) Strategies() []Strategy {
	out := make([]Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// StrategyNames lists strategy names in order.
func (r *Registry) StrategyNames() []string {
	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// Cache returns the resolution cache shared by users of this registry.
func (r *Registry) Cache() *Cache { return r.cache }

// Each calls fn for every strategy in order until fn returns false. It does
// not copy the list.
func (r *Registry) Each(fn func(Strategy) bool) {
	for _, s := range r.strategies {
		if !fn(s) {
			return
		}
	}
}
