package datasource

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Vars maps placeholder names to substitution values.
type Vars map[string]any

// Args builds positional variables named {0}, {1} and so on.
func Args(values ...any) Vars {
	vars := make(Vars, len(values))
	for i, v := range values {
		vars[strconv.Itoa(i)] = v
	}
	return vars
}

// render substitutes {name} placeholders with escaped values in one sweep, so
// values that look like placeholders are never substituted again. Map values
// fill {name#key} placeholders only when expand is set. Values whose kind is
// not scalar render as the empty string.
func render(query string, vars Vars, escape func(string) string, expand bool) string {
	if len(vars) == 0 {
		return query
	}
	pairs := make([]string, 0, 2*len(vars))
	for _, name := range sortedKeys(vars) {
		value := vars[name]
		if sub, ok := subMap(value); ok {
			if !expand {
				continue
			}
			for _, key := range sortedKeys(sub) {
				pairs = append(pairs, "{"+name+"#"+key+"}", literal(sub[key], escape))
			}
			continue
		}
		pairs = append(pairs, "{"+name+"}", literal(value, escape))
	}
	return strings.NewReplacer(pairs...).Replace(query)
}

// literal renders one scalar: strings are escaped, numbers and booleans are
// written as is and nil is NULL.
func literal(value any, escape func(string) string) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return escape(v)
	case []byte:
		return escape(string(v))
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case func() any:
		return literal(v(), escape)
	}
	return namedLiteral(reflect.ValueOf(value), escape)
}

// namedLiteral renders named types whose underlying kind is scalar, such as
// time.Duration.
func namedLiteral(rv reflect.Value, escape func(string) string) string {
	switch rv.Kind() {
	case reflect.Bool:
		return literal(rv.Bool(), escape)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.String:
		return escape(rv.String())
	}
	return ""
}

func subMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case Vars:
		return v, true
	case map[string]any:
		return v, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	case []any:
		out := make(map[string]any, len(v))
		for i, s := range v {
			out[strconv.Itoa(i)] = s
		}
		return out, true
	case []string:
		out := make(map[string]any, len(v))
		for i, s := range v {
			out[strconv.Itoa(i)] = s
		}
		return out, true
	}
	return nil, false
}

// keyOf renders a field value as a map key.
func keyOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	}
	return fmt.Sprint(value)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	return slices.Sorted(maps.Keys(m))
}
