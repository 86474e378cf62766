package omitnilpointers

import (
	"reflect"
)

// OmitNilPointers drops nil entries and dereferences non-nil pointers so the result
// can be passed straight to a redis HSET.
func OmitNilPointers(fields map[string]any) map[string]any {
	omitted := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}

		v := reflect.ValueOf(value)
		if v.Kind() != reflect.Ptr {
			omitted[key] = value
			continue
		}

		if v.IsNil() {
			continue
		}

		omitted[key] = v.Elem().Interface()
	}

	return omitted
}
