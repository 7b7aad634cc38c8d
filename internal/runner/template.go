package runner

import (
	"errors"
	"fmt"
	"os"
	"reflect"
)

// ExpandTemplates expands ${VAR} references in place throughout the job
// pointed to by in, which must be a *struct or a *[]struct.
//
// Strings are only expanded when their field carries a `template` tag
// (`template:"-"` opts out). This covers string, *string and []string fields.
// map[string]string values are always expanded. Structs, struct pointers and
// slices of either are walked recursively. Nil values and unexported fields
// are left alone.
func ExpandTemplates[T any](in *T, variables map[string]string) error {
	if in == nil {
		return nil
	}

	v := reflect.ValueOf(in).Elem()
	if v.Kind() != reflect.Struct && v.Kind() != reflect.Slice {
		return fmt.Errorf("ExpandTemplates expects *struct or *[]struct; got *%s", v.Type())
	}

	e := expander{variables: variables}
	return e.walk(v, false)
}

type expander struct {
	variables map[string]string
}

// walk expands v. tagged reports whether the field holding v asked for expansion.
func (e expander) walk(v reflect.Value, tagged bool) error {
	switch v.Kind() {
	case reflect.String:
		if !tagged {
			return nil
		}
		expanded, err := Expand(v.String(), e.variables)
		if err != nil {
			return err
		}
		v.SetString(expanded)
		return nil

	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		elem := v.Elem()
		if elem.Kind() == reflect.String {
			if !tagged {
				return nil
			}
			// Swap in a new pointer so strings shared with the caller stay untouched.
			expanded, err := Expand(elem.String(), e.variables)
			if err != nil {
				return err
			}
			ptr := reflect.New(elem.Type())
			ptr.Elem().SetString(expanded)
			v.Set(ptr)
			return nil
		}
		if elem.Kind() == reflect.Struct {
			return e.walk(elem, tagged)
		}
		return nil

	case reflect.Struct:
		return e.walkStruct(v)

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		for i := range v.Len() {
			if err := e.walk(v.Index(i), tagged); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String || v.Type().Elem().Kind() != reflect.String {
			return nil
		}
		values, ok := v.Interface().(map[string]string)
		if !ok {
			return nil
		}
		expanded, err := ExpandMap(values, e.variables)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(expanded))
		return nil

	default:
		return nil
	}
}

func (e expander) walkStruct(v reflect.Value) error {
	typ := v.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		tag, ok := field.Tag.Lookup("template")
		if err := e.walk(v.Field(i), ok && tag != "-"); err != nil {
			return fmt.Errorf("%s: %w", field.Name, err)
		}
	}
	return nil
}

// Expand replaces ${VAR} references in value. Every referenced variable must
// be present in variables.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("variable %q is not defined or not in the allowed list", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}
	return result, nil
}

// ExpandMap expands every value of values into a new map.
func ExpandMap(values map[string]string, variables map[string]string) (map[string]string, error) {
	if values == nil {
		return nil, nil
	}

	result := make(map[string]string, len(values))
	var errs error
	for k, v := range values {
		expanded, err := Expand(v, variables)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		result[k] = expanded
	}

	if errs != nil {
		return nil, errs
	}
	return result, nil
}
