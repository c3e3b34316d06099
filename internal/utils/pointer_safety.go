package utils

func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Clone returns a pointer to a copy of *v, or nil.
func Clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
