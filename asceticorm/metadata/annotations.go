package metadata

import "sync"

const (
	NavigationCandidatesAnnotation = "RelationshipDiscovery:NavigationCandidates"
	AmbiguousNavigationsAnnotation = "RelationshipDiscovery:AmbiguousNavigations"
	DiscriminatorAnnotation        = "Discriminator"
)

// Annotatable is embedded into metadata objects. It is safe for concurrent use.
type Annotatable struct {
	mu          sync.RWMutex
	annotations map[string]any
}

func (a *Annotatable) FindAnnotation(name string) (any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.annotations[name]
	return v, ok
}

func (a *Annotatable) SetAnnotation(name string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.annotations == nil {
		a.annotations = make(map[string]any)
	}
	a.annotations[name] = value
}

func (a *Annotatable) RemoveAnnotation(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.annotations, name)
}

// GetOrAddAnnotation returns the stored annotation, computing and storing it
// once when absent. The factory runs under the write lock.
func (a *Annotatable) GetOrAddAnnotation(name string, factory func() any) any {
	if v, ok := a.FindAnnotation(name); ok {
		return v
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.annotations[name]; ok {
		return v
	}
	if a.annotations == nil {
		a.annotations = make(map[string]any)
	}
	v := factory()
	a.annotations[name] = v
	return v
}
