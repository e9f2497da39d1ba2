package pointer

// Ref returns a pointer to t. Handy for optional struct fields built
// from expressions.
func Ref[T any](t T) *T {
	return &t
}
