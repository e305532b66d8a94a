// Package tracking keeps the state of the entities loaded by tracking
// queries.
package tracking

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/entity"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session/identitymap"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/signals"
)

type EntityState int

const (
	Detached EntityState = iota
	Unchanged
	Added
	Modified
	Deleted
)

func (s EntityState) String() string {
	switch s {
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	}
	return "Detached"
}

// Entry is the tracking record of one entity instance.
type Entry struct {
	Entity   *entity.Entity
	state    EntityState
	snapshot map[string]any
}

func (e *Entry) State() EntityState {
	return e.state
}

// OriginalValues returns the property values as of the last snapshot.
func (e *Entry) OriginalValues() map[string]any {
	return e.snapshot
}

// ModifiedProperties returns the names of the properties changed since the
// last snapshot, sorted.
func (e *Entry) ModifiedProperties() []string {
	if e.state == Added {
		return nil
	}
	return e.Entity.Changed(e.snapshot)
}

type StateChangedEvent struct {
	Entry    *Entry
	OldState EntityState
	NewState EntityState
}

// StateManager resolves identities of tracked entities and detects their
// changes. Owned entities are tracked with their owner but never resolved
// by key.
type StateManager struct {
	mu             sync.Mutex
	identities     *identitymap.IdentityMap
	entries        map[*entity.Entity]*Entry
	order          []*Entry
	logger         logrus.FieldLogger
	onStateChanged *signals.SignalImp[StateChangedEvent]
}

func NewStateManager(logger logrus.FieldLogger) *StateManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StateManager{
		identities:     identitymap.New(0, identitymap.Serializable),
		entries:        make(map[*entity.Entity]*Entry),
		logger:         logger,
		onStateChanged: signals.NewSignal[StateChangedEvent](),
	}
}

func (m *StateManager) OnStateChanged() signals.Signal[StateChangedEvent] {
	return m.onStateChanged
}

// Attach tracks the graph rooted at e as Unchanged and returns the tracked
// instance for it. When an entity with the same key is already tracked, that
// instance wins and only the navigations it has not loaded are taken from
// the new one.
func (m *StateManager) Attach(e *entity.Entity) *entity.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attach(e, Unchanged)
}

// Add tracks the graph rooted at e, marking e as Added.
func (m *StateManager) Add(e *entity.Entity) *entity.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attach(e, Added)
}

func (m *StateManager) attach(e *entity.Entity, state EntityState) *entity.Entity {
	if e == nil {
		return nil
	}
	if _, ok := m.entries[e]; ok {
		return e
	}
	if e.Type == nil {
		m.logger.WithField("entity", e.String()).Warn("entity without a type is not tracked")
		return e
	}
	if !e.Type.IsOwned() {
		if key, ok := identitymap.KeyOf(e); ok {
			if tracked, err := identitymap.Get[*entity.Entity](m.identities, key); err == nil {
				m.merge(tracked, e)
				return tracked
			}
			identitymap.Add[*entity.Entity](m.identities, key, e)
		}
	}
	entry := &Entry{Entity: e, state: state, snapshot: e.Snapshot()}
	m.entries[e] = entry
	m.order = append(m.order, entry)
	m.logger.WithFields(logrus.Fields{"entity": e.String(), "state": state.String()}).Debug("entity tracked")
	m.onStateChanged.Notify(StateChangedEvent{Entry: entry, OldState: Detached, NewState: state})
	m.attachNavigations(e, state)
	return e
}

func (m *StateManager) attachNavigations(e *entity.Entity, state EntityState) {
	childState := Unchanged
	if state == Added {
		childState = Added
	}
	for name, ref := range e.References {
		e.References[name] = m.attach(ref, m.navigationState(ref, childState))
	}
	for name, items := range e.Collections {
		resolved := make([]*entity.Entity, len(items))
		for i, item := range items {
			resolved[i] = m.attach(item, m.navigationState(item, childState))
		}
		e.Collections[name] = dedupe(resolved)
	}
}

// navigationState keeps owned entities in the state of their owner.
func (m *StateManager) navigationState(e *entity.Entity, state EntityState) EntityState {
	if e != nil && e.Type != nil && e.Type.IsOwned() {
		return state
	}
	return Unchanged
}

func (m *StateManager) merge(tracked, e *entity.Entity) {
	for name, ref := range e.References {
		if _, loaded := tracked.References[name]; !loaded {
			tracked.References[name] = m.attach(ref, Unchanged)
		}
	}
	for name, items := range e.Collections {
		existing, loaded := tracked.Collections[name]
		if loaded && len(existing) > 0 {
			continue
		}
		resolved := make([]*entity.Entity, len(items))
		for i, item := range items {
			resolved[i] = m.attach(item, Unchanged)
		}
		tracked.Collections[name] = dedupe(resolved)
	}
}

func dedupe(items []*entity.Entity) []*entity.Entity {
	seen := make(map[*entity.Entity]bool, len(items))
	result := items[:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}

// Remove marks e as Deleted, or detaches it when it was Added.
func (m *StateManager) Remove(e *entity.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[e]
	if !ok {
		return
	}
	if entry.state == Added {
		m.detach(entry)
		return
	}
	m.setState(entry, Deleted)
}

// Entry returns the tracking entry of e.
func (m *StateManager) Entry(e *entity.Entity) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[e]
	return entry, ok
}

// Find returns the tracked instance of the entity type with the given key.
func (m *StateManager) Find(typeName, key string) (*entity.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := identitymap.Get[*entity.Entity](m.identities, identitymap.EntityKey{Type: typeName, Key: key})
	return e, err == nil
}

// Entries returns the entries in tracking order.
func (m *StateManager) Entries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Entry(nil), m.order...)
}

// DetectChanges marks Unchanged entries whose values differ from their
// snapshot as Modified and returns how many there are.
func (m *StateManager) DetectChanges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := 0
	for _, entry := range m.order {
		if entry.state != Unchanged && entry.state != Modified {
			continue
		}
		if len(entry.Entity.Changed(entry.snapshot)) > 0 {
			m.setState(entry, Modified)
			changed++
		} else {
			m.setState(entry, Unchanged)
		}
	}
	return changed
}

// AcceptChanges takes new snapshots, detaches Deleted entries and marks the
// rest Unchanged.
func (m *StateManager) AcceptChanges() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range append([]*Entry(nil), m.order...) {
		if entry.state == Deleted {
			m.detach(entry)
			continue
		}
		entry.snapshot = entry.Entity.Snapshot()
		m.setState(entry, Unchanged)
	}
}

func (m *StateManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities.Clear()
	m.entries = make(map[*entity.Entity]*Entry)
	m.order = nil
}

func (m *StateManager) setState(entry *Entry, state EntityState) {
	if entry.state == state {
		return
	}
	old := entry.state
	entry.state = state
	m.onStateChanged.Notify(StateChangedEvent{Entry: entry, OldState: old, NewState: state})
}

func (m *StateManager) detach(entry *Entry) {
	delete(m.entries, entry.Entity)
	for i, e := range m.order {
		if e == entry {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if key, ok := identitymap.KeyOf(entry.Entity); ok && !entry.Entity.Type.IsOwned() {
		identitymap.Remove[*entity.Entity](m.identities, key)
	}
	m.setState(entry, Detached)
}
