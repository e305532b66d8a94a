package query

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-orm-go/asceticorm/metadata"
)

var (
	ErrTemporalAlreadyApplied = errors.New("a temporal operation has already been applied to the query root")
	ErrTemporalTracking       = errors.New("temporal queries can't be tracked")
	ErrNoRoot                 = errors.New("query has no root")
	ErrNegativeBound          = errors.New("skip and take must not be negative")
)

type TrackingBehavior int

const (
	TrackAll TrackingBehavior = iota
	NoTracking
	NoTrackingWithIdentityResolution
)

func (t TrackingBehavior) String() string {
	switch t {
	case TrackAll:
		return "TrackAll"
	case NoTracking:
		return "NoTracking"
	case NoTrackingWithIdentityResolution:
		return "NoTrackingWithIdentityResolution"
	}
	return "Unknown"
}

type Ordering struct {
	Expression Visitable
	Descending bool
}

// Query is a composed logical query.
type Query struct {
	root      QueryRoot
	predicate Visitable
	includes  [][]string
	orderings []Ordering
	skip      Visitable
	take      Visitable
	tracking  TrackingBehavior
}

func (q *Query) Root() QueryRoot {
	return q.root
}

// Predicate returns nil when the query is not filtered.
func (q *Query) Predicate() Visitable {
	return q.predicate
}

// Includes returns the navigation paths that are loaded eagerly.
func (q *Query) Includes() [][]string {
	return q.includes
}

func (q *Query) Orderings() []Ordering {
	return q.orderings
}

func (q *Query) Skip() Visitable {
	return q.skip
}

func (q *Query) Take() Visitable {
	return q.take
}

func (q *Query) Tracking() TrackingBehavior {
	return q.tracking
}

// With returns a copy of the query with the given parts replaced. It is
// used by rewriting passes.
func (q *Query) With(predicate Visitable, orderings []Ordering, skip, take Visitable) *Query {
	c := *q
	c.predicate = predicate
	c.orderings = orderings
	c.skip = skip
	c.take = take
	return &c
}

func (q *Query) WithRoot(root QueryRoot) *Query {
	c := *q
	c.root = root
	return &c
}

// QueryBuilder composes a Query. Errors accumulate and are returned by Build.
type QueryBuilder struct {
	query          Query
	temporalCalled bool
	trackingCalled bool
	errs           *multierror.Error
}

func From(entityType *metadata.EntityType) *QueryBuilder {
	return &QueryBuilder{query: Query{root: Root(entityType)}}
}

// Where filters the query. Several calls are combined with AND.
func (b *QueryBuilder) Where(predicate Visitable) *QueryBuilder {
	if b.query.predicate == nil {
		b.query.predicate = predicate
	} else {
		b.query.predicate = And(b.query.predicate, predicate)
	}
	return b
}

func (b *QueryBuilder) Include(path ...string) *QueryBuilder {
	b.query.includes = append(b.query.includes, path)
	return b
}

func (b *QueryBuilder) OrderBy(expr Visitable) *QueryBuilder {
	b.query.orderings = append(b.query.orderings, Ordering{Expression: expr})
	return b
}

func (b *QueryBuilder) OrderByDescending(expr Visitable) *QueryBuilder {
	b.query.orderings = append(b.query.orderings, Ordering{Expression: expr, Descending: true})
	return b
}

func (b *QueryBuilder) Skip(n int) *QueryBuilder {
	if n < 0 {
		b.errs = multierror.Append(b.errs, ErrNegativeBound)
		return b
	}
	b.query.skip = Value(n)
	return b
}

func (b *QueryBuilder) Take(n int) *QueryBuilder {
	if n < 0 {
		b.errs = multierror.Append(b.errs, ErrNegativeBound)
		return b
	}
	b.query.take = Value(n)
	return b
}

func (b *QueryBuilder) AsNoTracking() *QueryBuilder {
	b.query.tracking = NoTracking
	return b
}

func (b *QueryBuilder) AsNoTrackingWithIdentityResolution() *QueryBuilder {
	b.query.tracking = NoTrackingWithIdentityResolution
	return b
}

func (b *QueryBuilder) AsTracking() *QueryBuilder {
	if b.temporalCalled {
		b.errs = multierror.Append(b.errs, ErrTemporalTracking)
		return b
	}
	b.trackingCalled = true
	b.query.tracking = TrackAll
	return b
}

func (b *QueryBuilder) TemporalAsOf(pointInTime time.Time) *QueryBuilder {
	return b.temporal(AsOf{PointInTime: pointInTime})
}

func (b *QueryBuilder) TemporalFromTo(from, to time.Time) *QueryBuilder {
	return b.temporal(FromTo(from, to))
}

func (b *QueryBuilder) TemporalBetween(from, to time.Time) *QueryBuilder {
	return b.temporal(Between(from, to))
}

func (b *QueryBuilder) TemporalContainedIn(from, to time.Time) *QueryBuilder {
	return b.temporal(ContainedIn(from, to))
}

func (b *QueryBuilder) TemporalAll() *QueryBuilder {
	return b.temporal(All{})
}

// Temporal operations force no-tracking.
func (b *QueryBuilder) temporal(op TemporalOperation) *QueryBuilder {
	if b.temporalCalled {
		b.errs = multierror.Append(b.errs, errors.Wrap(ErrTemporalAlreadyApplied, op.String()))
		return b
	}
	if b.trackingCalled {
		b.errs = multierror.Append(b.errs, ErrTemporalTracking)
		return b
	}
	b.temporalCalled = true
	b.query.root = b.query.root.WithTemporal(op)
	if b.query.tracking == TrackAll {
		b.query.tracking = NoTracking
	}
	return b
}

func (b *QueryBuilder) Build() (*Query, error) {
	if b.query.root.IsZero() {
		b.errs = multierror.Append(b.errs, ErrNoRoot)
	}
	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	q := b.query
	return &q, nil
}
