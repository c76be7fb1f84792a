package validator

import (
	"fmt"
	"reflect"
)

// Validate returns an error naming the component if any dep is nil or the
// zero value of its type.
func Validate(name string, deps ...any) error {
	for i, dep := range deps {
		if missing(dep) {
			return fmt.Errorf("missing required deps for component: %s (dep %d)", name, i)
		}
	}

	return nil
}

func missing(dep any) bool {
	if dep == nil {
		return true
	}

	v := reflect.ValueOf(dep)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
