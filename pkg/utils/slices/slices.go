package slices

// Map returns a new slice holding mapper(v) for each v in sli, keeping order.
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for i, v := range sli {
		ret[i] = mapper(v)
	}
	return ret
}

// MapUntilError maps each element with mapper, stopping at the first error.
//
// On error it returns the partial result built so far and that error.
func MapUntilError[T any, R any](sli []T, mapper func(v T) (R, error)) ([]R, error) {
	ret := make([]R, 0, len(sli))
	for _, v := range sli {
		r, err := mapper(v)
		if err != nil {
			return ret, err
		}
		ret = append(ret, r)
	}
	return ret, nil
}

// RefOf converts []T to []*T, pointing into the original backing array.
func RefOf[T any](sli []T) []*T {
	ret := make([]*T, len(sli))
	for i := range sli {
		ret[i] = &sli[i]
	}
	return ret
}

// ToMap converts a slice to a map keyed with getkey(element).
//
// When two elements share a key, the later one wins.
func ToMap[T any, K comparable](sli []T, getkey func(v T) K) map[K]T {
	ret := make(map[K]T, len(sli))
	for _, v := range sli {
		ret[getkey(v)] = v
	}
	return ret
}

// KeysOf lists keys of a map. Ordering is not defined.
func KeysOf[K comparable, T any](m map[K]T) []K {
	ret := make([]K, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}

// ValuesOf lists values of a map. Ordering is not defined.
func ValuesOf[K comparable, T any](m map[K]T) []T {
	ret := make([]T, 0, len(m))
	for _, v := range m {
		ret = append(ret, v)
	}
	return ret
}

// Filter returns elements for which predicator returns true, keeping order.
func Filter[T any](sli []T, predicator func(T) bool) []T {
	ret := []T{}
	for _, v := range sli {
		if predicator(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// First returns the first element matching predicator.
//
// The second return value is false when nothing matches.
func First[T any](sli []T, predicator func(T) bool) (T, bool) {
	for _, v := range sli {
		if predicator(v) {
			return v, true
		}
	}
	return *new(T), false
}

// Concat joins slices into one, keeping order.
func Concat[T any](sli ...[]T) []T {
	total := 0
	for _, s := range sli {
		total += len(s)
	}
	ret := make([]T, 0, total)
	for _, s := range sli {
		ret = append(ret, s...)
	}
	return ret
}
