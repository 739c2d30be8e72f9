// Package lazy provides a deferred, memoized value.
//
// A Lazy is either resolved, holding a value, or unresolved, holding the
// loader that produces it. It does no locking: a table has a single writer,
// and that writer is the only goroutine that touches its lazy references.
package lazy

// Lazy is a value that is loaded at most once, on first access.
type Lazy[T any] struct {
	loader   func() (T, error)
	value    T
	err      error
	resolved bool
}

// Of returns an already resolved value.
func Of[T any](v T) *Lazy[T] {
	return &Lazy[T]{value: v, resolved: true}
}

// Defer returns an unresolved value that calls loader on first Get.
func Defer[T any](loader func() (T, error)) *Lazy[T] {
	return &Lazy[T]{loader: loader}
}

// Get resolves the value, calling the loader only the first time. A loader
// error is memoized as well.
func (l *Lazy[T]) Get() (T, error) {
	if !l.resolved {
		l.value, l.err = l.loader()
		l.loader = nil
		l.resolved = true
	}
	return l.value, l.err
}

// Resolved reports whether Get would return without loading.
func (l *Lazy[T]) Resolved() bool {
	return l.resolved
}
