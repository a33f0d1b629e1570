package generic

// Result pairs a value with the error that may have prevented it, so (T, error) returns can be collected and passed
// through channels.
type Result[T any] struct {
	Value T
	Error error
}

// NewResult wraps a (T, error) return value from another function call as a Result[T].
func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

func (r *Result[T]) IsErr() bool {
	return r.Error != nil
}

func (r *Result[T]) IsOk() bool {
	return r.Error == nil
}

func Err[T any](err error) Result[T] {
	return Result[T]{Error: err}
}
