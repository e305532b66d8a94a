package query

import (
	"fmt"
	"time"
)

type TemporalKind string

const (
	TemporalAsOf        TemporalKind = "AsOf"
	TemporalFromTo      TemporalKind = "FromTo"
	TemporalBetween     TemporalKind = "Between"
	TemporalContainedIn TemporalKind = "ContainedIn"
	TemporalAllKind     TemporalKind = "All"
)

// TemporalOperation qualifies a query root with a time dimension. It is
// one of AsOf, Range or All.
type TemporalOperation interface {
	Kind() TemporalKind
	String() string
	temporal()
}

type AsOf struct {
	PointInTime time.Time
}

func (AsOf) Kind() TemporalKind {
	return TemporalAsOf
}

func (o AsOf) String() string {
	return fmt.Sprintf("TemporalAsOf(%s)", formatTime(o.PointInTime))
}

func (AsOf) temporal() {}

// Range covers FromTo, Between and ContainedIn. Bounds are not validated.
type Range struct {
	RangeKind TemporalKind
	From      time.Time
	To        time.Time
}

func FromTo(from, to time.Time) Range {
	return Range{RangeKind: TemporalFromTo, From: from, To: to}
}

func Between(from, to time.Time) Range {
	return Range{RangeKind: TemporalBetween, From: from, To: to}
}

func ContainedIn(from, to time.Time) Range {
	return Range{RangeKind: TemporalContainedIn, From: from, To: to}
}

func (o Range) Kind() TemporalKind {
	return o.RangeKind
}

func (o Range) String() string {
	return fmt.Sprintf("Temporal%s(%s, %s)", o.RangeKind, formatTime(o.From), formatTime(o.To))
}

func (Range) temporal() {}

type All struct{}

func (All) Kind() TemporalKind {
	return TemporalAllKind
}

func (All) String() string {
	return "TemporalAll()"
}

func (All) temporal() {}

// TemporalEqual compares two operations by kind and bounds. A nil
// operation equals only nil.
func TemporalEqual(a, b TemporalOperation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case AsOf:
		y, ok := b.(AsOf)
		return ok && x.PointInTime.Equal(y.PointInTime)
	case Range:
		y, ok := b.(Range)
		return ok && x.RangeKind == y.RangeKind && x.From.Equal(y.From) && x.To.Equal(y.To)
	case All:
		_, ok := b.(All)
		return ok
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
