package validator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitechdev/CrudSpec/pkg/schema"
)

// TransformFunc coerces one raw input value into the canonical Go value
// for a base field type.
type TransformFunc func(value interface{}) (interface{}, error)

// transforms maps base field types to their coercion. Types without an
// entry fall through to the trimmed-string default.
var transforms = map[string]TransformFunc{
	schema.TypeInteger: transformInteger,
	schema.TypeFloat:   transformFloat,
	schema.TypeDecimal: transformFloat,
	schema.TypeBoolean: transformBoolean,
	schema.TypeJSON:    transformJSON,
}

// Transform coerces value according to the field's base type. nil is
// passed through untouched so explicit nulls survive.
func Transform(field *schema.FieldSpec, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if fn, ok := transforms[field.BaseType]; ok {
		return fn(value)
	}
	return transformString(value)
}

func transformString(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v)), nil
	}
}

func transformInteger(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("not a whole number")
		}
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer")
		}
		return n, nil
	default:
		return nil, fmt.Errorf("not an integer")
	}
}

func transformFloat(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number")
		}
		return n, nil
	default:
		return nil, fmt.Errorf("not a number")
	}
}

func transformBoolean(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case float64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return nil, fmt.Errorf("not a boolean")
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true, nil
		case "0", "false", "no", "off":
			return false, nil
		}
		return nil, fmt.Errorf("not a boolean")
	default:
		return nil, fmt.Errorf("not a boolean")
	}
}

// transformJSON stores structured values as their canonical JSON
// encoding so any driver can persist them in a text column.
func transformJSON(value interface{}) (interface{}, error) {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		if !json.Valid([]byte(s)) {
			return nil, fmt.Errorf("not valid JSON")
		}
		return s, nil
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("not valid JSON")
	}
	return string(out), nil
}
