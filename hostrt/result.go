package hostrt

// Result is the Go form of result<T, E>. Functions returning a result
// report the guest's error case here, not through the Go error.
type Result[T, E any] struct {
	OK    T
	Err   E
	IsErr bool
}

// Ok builds a successful result.
func Ok[T, E any](v T) Result[T, E] {
	return Result[T, E]{OK: v}
}

// Fail builds an error result.
func Fail[T, E any](e E) Result[T, E] {
	return Result[T, E]{Err: e, IsErr: true}
}

// Unwrap returns the value and whether the result succeeded.
func (r Result[T, E]) Unwrap() (T, bool) {
	return r.OK, !r.IsErr
}
