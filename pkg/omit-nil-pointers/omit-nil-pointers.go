package omitnilpointers

import (
	"reflect"
	"sort"
)

// Split separates hash fields into values to write and field names to unset.
// Nil values and nil pointers are unset; other pointers are dereferenced.
// Unset names are sorted so callers issue deletes in a stable order.
func Split(fields map[string]any) (set map[string]any, unset []string) {
	set = make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			unset = append(unset, key)
			continue
		}

		v := reflect.ValueOf(value)
		switch {
		case v.Kind() != reflect.Ptr:
			set[key] = value
		case v.IsNil():
			unset = append(unset, key)
		default:
			set[key] = v.Elem().Interface()
		}
	}

	sort.Strings(unset)
	return set, unset
}
