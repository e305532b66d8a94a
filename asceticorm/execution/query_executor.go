// Package execution runs compiled queries on a session and materializes
// their rows.
package execution

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/entity"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
	query "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/infrastructure"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/session/identitymap"
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/tracking"
)

type Option func(*QueryExecutor)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *QueryExecutor) {
		e.logger = logger
	}
}

func WithStateManager(states *tracking.StateManager) Option {
	return func(e *QueryExecutor) {
		e.states = states
	}
}

// QueryExecutor compiles queries, runs them and tracks the results.
type QueryExecutor struct {
	compiler *query.Compiler
	slots    *query.SlotTable
	states   *tracking.StateManager
	logger   logrus.FieldLogger
}

func NewQueryExecutor(compiler *query.Compiler, opts ...Option) *QueryExecutor {
	e := &QueryExecutor{
		compiler: compiler,
		slots:    query.NewSlotTable(),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.states == nil {
		e.states = tracking.NewStateManager(e.logger)
	}
	return e
}

func (e *QueryExecutor) StateManager() *tracking.StateManager {
	return e.states
}

// ToList returns the entities of the query in row order.
func (e *QueryExecutor) ToList(ctx context.Context, s session.DbSession, qry *q.Query, params map[string]any) ([]*entity.Entity, error) {
	compiled, err := e.compiler.Compile(ctx, qry, params)
	if err != nil {
		return nil, err
	}
	rows, err := e.read(ctx, s, compiled)
	if err != nil {
		return nil, err
	}
	entities, err := compiled.Shaper.Shape(rows)
	if err != nil {
		return nil, err
	}
	entities = e.track(compiled.Tracking, entities)
	e.logger.WithFields(logrus.Fields{
		"fingerprint": compiled.Fingerprint[:12],
		"rows":        len(rows),
		"entities":    len(entities),
		"tracking":    compiled.Tracking.String(),
	}).Debug("query executed")
	return entities, nil
}

// FirstOrDefault returns the first entity of the query or nil.
func (e *QueryExecutor) FirstOrDefault(ctx context.Context, s session.DbSession, qry *q.Query, params map[string]any) (*entity.Entity, error) {
	entities, err := e.ToList(ctx, s, qry, params)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	return entities[0], nil
}

func (e *QueryExecutor) read(ctx context.Context, s session.DbSession, compiled *query.CompiledQuery) (result [][]any, err error) {
	args, release, err := compiled.Bind(e.slots)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.Connection().Query(compiled.SQL, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	width := compiled.Shaper.Width()
	for rows.Next() {
		values := make([]any, width)
		dest := make([]any, width)
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "scan failed")
		}
		result = append(result, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (e *QueryExecutor) track(behavior q.TrackingBehavior, entities []*entity.Entity) []*entity.Entity {
	switch behavior {
	case q.TrackAll:
		for i, item := range entities {
			entities[i] = e.states.Attach(item)
		}
	case q.NoTrackingWithIdentityResolution:
		identities := identitymap.New(0, identitymap.Serializable)
		visited := make(map[*entity.Entity]bool)
		for i, item := range entities {
			entities[i] = resolve(identities, visited, item)
		}
	}
	return entities
}

// resolve replaces the entities of the graph rooted at e by the first
// instance materialized with the same key.
func resolve(identities *identitymap.IdentityMap, visited map[*entity.Entity]bool, e *entity.Entity) *entity.Entity {
	if e == nil {
		return nil
	}
	if !e.Type.IsOwned() {
		var found bool
		e, found = identitymap.Resolve(identities, e)
		if found {
			return e
		}
	}
	if visited[e] {
		return e
	}
	visited[e] = true
	for name, ref := range e.References {
		e.References[name] = resolve(identities, visited, ref)
	}
	for name, items := range e.Collections {
		for i, item := range items {
			items[i] = resolve(identities, visited, item)
		}
		e.Collections[name] = items
	}
	return e
}
