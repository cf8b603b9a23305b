package optional

import (
	"bytes"
	"encoding/json"
)

// Field is a JSON value that may be absent. Unlike a pointer it never fails decoding:
// null, a missing key or a value of the wrong type all leave it undefined.
type Field[T any] struct {
	Value   T
	Defined bool
}

func Of[T any](v T) Field[T] {
	return Field[T]{Value: v, Defined: true}
}

func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Defined
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	var zero T
	f.Value, f.Defined = zero, false

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}

	f.Value, f.Defined = v, true
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Defined {
		return []byte("null"), nil
	}

	return json.Marshal(f.Value)
}
