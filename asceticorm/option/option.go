package option

import "fmt"

// Option is a value that may be absent. Metadata uses it for tri-state flags
// (a nil bool in the model is "not configured"); temporal roots use it for
// the timestamps an operation does not carry.
type Option[T any] struct {
	val   T
	valid bool
}

func Some[T any](val T) Option[T] {
	return Option[T]{val: val, valid: true}
}

func Nothing[T any]() Option[T] {
	return Option[T]{}
}

// FromPtr maps nil to Nothing.
func FromPtr[T any](p *T) Option[T] {
	if p == nil {
		return Nothing[T]()
	}
	return Some(*p)
}

func (o Option[T]) IsSome() bool {
	return o.valid
}

func (o Option[T]) IsNothing() bool {
	return !o.valid
}

// Unwrap panics on Nothing.
func (o Option[T]) Unwrap() T {
	if !o.valid {
		panic("called Unwrap on a Nothing Option")
	}
	return o.val
}

func (o Option[T]) UnwrapOr(def T) T {
	if o.valid {
		return o.val
	}
	return def
}

// Get follows the comma-ok idiom.
func (o Option[T]) Get() (T, bool) {
	return o.val, o.valid
}

// Ptr returns nil for Nothing and a pointer to a copy otherwise.
func (o Option[T]) Ptr() *T {
	if !o.valid {
		return nil
	}
	v := o.val
	return &v
}

func Map[T any, U any](o Option[T], f func(T) U) Option[U] {
	if o.valid {
		return Some(f(o.val))
	}
	return Nothing[U]()
}

// Equal reports whether both options are Nothing, or both are Some with
// values accepted by eq.
func Equal[T any](a, b Option[T], eq func(T, T) bool) bool {
	if a.valid != b.valid {
		return false
	}
	if !a.valid {
		return true
	}
	return eq(a.val, b.val)
}

func (o Option[T]) String() string {
	if o.valid {
		return fmt.Sprintf("Some(%v)", o.val)
	}
	return "Nothing"
}
