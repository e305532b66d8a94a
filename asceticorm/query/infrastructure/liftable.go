package query

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

const defaultLiftedName = "__lifted"

// LiftedConstant is a parameter whose value is resolved per execution.
type LiftedConstant struct {
	Parameter q.ParameterNode
	Key       string
	Original  any
	Resolver  q.Resolver
}

// Resolve computes the value for an execution. Constants without a
// resolver keep their original value.
func (c LiftedConstant) Resolve(ctx *q.LiftContext) (any, error) {
	if c.Resolver == nil {
		return c.Original, nil
	}
	value, err := c.Resolver(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", c.Parameter.Name())
	}
	return value, nil
}

// LiftableConstantProcessor turns liftable constants into literals or
// parameters.
type LiftableConstantProcessor struct {
	mu     sync.Mutex
	lifted []LiftedConstant
	byKey  map[string]int
}

func NewLiftableConstantProcessor() *LiftableConstantProcessor {
	return &LiftableConstantProcessor{byKey: make(map[string]int)}
}

// LiftedConstants returns the lifted constants in the order they were
// first met.
func (p *LiftableConstantProcessor) LiftedConstants() []LiftedConstant {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := make([]LiftedConstant, len(p.lifted))
	copy(result, p.lifted)
	return result
}

// InlineConstants replaces constants with literals. When precompiled
// queries are supported only constants without a resolver and with a
// scalar value are inlined, otherwise all of them are.
func (p *LiftableConstantProcessor) InlineConstants(expr q.Visitable, supportsPrecompiledQuery bool) (q.Visitable, error) {
	return q.Rewrite(expr, func(n q.Visitable) (q.Visitable, error) {
		c, ok := n.(q.LiftableConstantNode)
		if !ok {
			return n, nil
		}
		if supportsPrecompiledQuery && (c.Resolver() != nil || !isScalar(c.Original())) {
			return n, nil
		}
		return q.Value(c.Original()), nil
	})
}

// LiftConstants replaces constants with parameters. Names are derived from
// the hints and made unique against variableNames, which is updated.
// Constants with equal keys share a parameter, and a constant keeps its
// name across calls.
func (p *LiftableConstantProcessor) LiftConstants(expr q.Visitable, contextParameter string, variableNames map[string]bool) (q.Visitable, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if variableNames != nil && contextParameter != "" {
		variableNames[contextParameter] = true
	}
	return q.Rewrite(expr, func(n q.Visitable) (q.Visitable, error) {
		c, ok := n.(q.LiftableConstantNode)
		if !ok {
			return n, nil
		}
		if i, ok := p.byKey[c.Key()]; ok {
			return p.lifted[i].Parameter, nil
		}
		name := uniqueName(c.Hint(), contextParameter, variableNames)
		param := q.Parameter(name).WithTypeName(c.TypeName())
		p.byKey[c.Key()] = len(p.lifted)
		p.lifted = append(p.lifted, LiftedConstant{
			Parameter: param,
			Key:       c.Key(),
			Original:  c.Original(),
			Resolver:  c.Resolver(),
		})
		return param, nil
	})
}

func uniqueName(hint, contextParameter string, taken map[string]bool) string {
	base := hint
	if base == "" {
		base = defaultLiftedName
	}
	free := func(name string) bool {
		return name != contextParameter && !taken[name]
	}
	name := base
	for i := 0; !free(name); i++ {
		name = base + "_" + strconv.Itoa(i)
	}
	if taken != nil {
		taken[name] = true
	}
	return name
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, bool, string, int, int32, int64, float32, float64, time.Time, []byte, uuid.UUID:
		return true
	}
	return false
}

// Slots are the resolved values of the lifted constants of one execution.
type Slots struct {
	table       *SlotTable
	fingerprint string
	names       []string
	values      []any
}

func (s *Slots) Names() []string {
	return s.names
}

func (s *Slots) Values() []any {
	return s.values
}

// Lookup returns the value bound to the parameter name.
func (s *Slots) Lookup(name string) (any, bool) {
	for i, n := range s.names {
		if n == name {
			return s.values[i], true
		}
	}
	return nil, false
}

// Release returns the slots to their table. They must not be used after.
func (s *Slots) Release() {
	if s == nil || s.table == nil {
		return
	}
	s.table.release(s)
}

// SlotTable reuses the slots of a plan across executions.
type SlotTable struct {
	mu        sync.Mutex
	free      map[string][]*Slots
	allocated int
}

func NewSlotTable() *SlotTable {
	return &SlotTable{free: make(map[string][]*Slots)}
}

// Bind resolves lifted against ctx into slots of the plan fingerprint.
func (t *SlotTable) Bind(fingerprint string, lifted []LiftedConstant, ctx *q.LiftContext) (*Slots, error) {
	s := t.acquire(fingerprint, len(lifted))
	for i, c := range lifted {
		value, err := c.Resolve(ctx)
		if err != nil {
			s.Release()
			return nil, err
		}
		s.names[i] = c.Parameter.Name()
		s.values[i] = value
	}
	return s, nil
}

// Allocated is the number of slot sets ever created.
func (t *SlotTable) Allocated() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocated
}

func (t *SlotTable) acquire(fingerprint string, size int) *Slots {
	t.mu.Lock()
	defer t.mu.Unlock()
	pool := t.free[fingerprint]
	if n := len(pool); n > 0 {
		s := pool[n-1]
		t.free[fingerprint] = pool[:n-1]
		if cap(s.values) >= size {
			s.names = s.names[:size]
			s.values = s.values[:size]
			return s
		}
	}
	t.allocated++
	return &Slots{
		table:       t,
		fingerprint: fingerprint,
		names:       make([]string, size),
		values:      make([]any, size),
	}
}

func (t *SlotTable) release(s *Slots) {
	for i := range s.values {
		s.values[i] = nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.free[s.fingerprint] = append(t.free[s.fingerprint], s)
}
