package query

import (
	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
	q "github.com/krew-solutions/ascetic-orm-go/asceticorm/query/domain"
)

// TableExpression is a table of the FROM clause or of a join.
type TableExpression struct {
	EntityType *metadata.EntityType
	Table      string
	Alias      string
	Temporal   q.TemporalOperation
	// TemporalArguments are the bounds of Temporal, as liftable constants
	// before lifting and parameters after.
	TemporalArguments []q.Visitable
}

type JoinExpression struct {
	Table     TableExpression
	Condition q.Visitable
}

// ProjectionColumn is a selected column. Path is the navigation path of
// the entity the column belongs to, empty for the root entity.
type ProjectionColumn struct {
	Expression q.Visitable
	Path       []string
	Property   *metadata.Property
	// Collection is set for the JSON column of an owned collection.
	Collection *metadata.Navigation
}

// SelectExpression is a bound SELECT statement.
type SelectExpression struct {
	Projection []ProjectionColumn
	Table      TableExpression
	Joins      []JoinExpression
	Predicate  q.Visitable
	Orderings  []q.Ordering
	Skip       q.Visitable
	Take       q.Visitable
	// Document is set when the projection is the whole document.
	Document bool
}

// Rewrite applies fn to every expression of the statement.
func (s *SelectExpression) Rewrite(fn q.RewriteFunc) error {
	var err error
	for i := range s.Projection {
		if s.Projection[i].Expression, err = q.Rewrite(s.Projection[i].Expression, fn); err != nil {
			return err
		}
	}
	if s.Table.TemporalArguments, err = rewriteNodes(s.Table.TemporalArguments, fn); err != nil {
		return err
	}
	for i := range s.Joins {
		if s.Joins[i].Table.TemporalArguments, err = rewriteNodes(s.Joins[i].Table.TemporalArguments, fn); err != nil {
			return err
		}
		if s.Joins[i].Condition, err = q.Rewrite(s.Joins[i].Condition, fn); err != nil {
			return err
		}
	}
	if s.Predicate, err = q.Rewrite(s.Predicate, fn); err != nil {
		return err
	}
	for i := range s.Orderings {
		if s.Orderings[i].Expression, err = q.Rewrite(s.Orderings[i].Expression, fn); err != nil {
			return err
		}
	}
	if s.Skip, err = q.Rewrite(s.Skip, fn); err != nil {
		return err
	}
	if s.Take, err = q.Rewrite(s.Take, fn); err != nil {
		return err
	}
	return nil
}

// Expressions returns every expression of the statement in rendering order.
func (s *SelectExpression) Expressions() []q.Visitable {
	var result []q.Visitable
	for _, c := range s.Projection {
		result = append(result, c.Expression)
	}
	result = append(result, s.Table.TemporalArguments...)
	for _, j := range s.Joins {
		result = append(result, j.Table.TemporalArguments...)
		result = append(result, j.Condition)
	}
	if s.Predicate != nil {
		result = append(result, s.Predicate)
	}
	for _, o := range s.Orderings {
		result = append(result, o.Expression)
	}
	if s.Skip != nil {
		result = append(result, s.Skip)
	}
	if s.Take != nil {
		result = append(result, s.Take)
	}
	return result
}

func rewriteNodes(nodes []q.Visitable, fn q.RewriteFunc) ([]q.Visitable, error) {
	for i := range nodes {
		r, err := q.Rewrite(nodes[i], fn)
		if err != nil {
			return nil, err
		}
		nodes[i] = r
	}
	return nodes, nil
}
