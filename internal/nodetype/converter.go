package nodetype

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/roach88/contentgraph/internal/ir"
)

// ConversionError reports a value that does not fit its declared type.
type ConversionError struct {
	Property string
	Type     string
	Value    any
}

func (e *ConversionError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("property %q: value %v (%T) cannot be converted to %s", e.Property, e.Value, e.Value, e.Type)
	}
	return fmt.Sprintf("value %v (%T) cannot be converted to %s", e.Value, e.Value, e.Type)
}

// ConvertValue normalizes a raw value to its declared property type.
//
// Integers are stored as int64, floats as float64. DateTime accepts an
// RFC 3339 string or a time.Time and is stored as an RFC 3339 string in UTC.
func ConvertValue(propertyType string, value any) (any, error) {
	fail := &ConversionError{Type: propertyType, Value: value}
	switch propertyType {
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case TypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			if v == math.Trunc(v) && !math.IsInf(v, 0) {
				return int64(v), nil
			}
		}
	case TypeFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		}
	case TypeBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case TypeDateTime:
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
		}
	case TypeArray:
		switch v := value.(type) {
		case []any:
			return v, nil
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return out, nil
		}
	case TypeObject:
		switch v := value.(type) {
		case map[string]any:
			return v, nil
		case map[string]string:
			out := make(map[string]any, len(v))
			for k, s := range v {
				out[k] = s
			}
			return out, nil
		}
	default:
		return nil, fmt.Errorf("unknown property type %q", propertyType)
	}
	return nil, fail
}

// SerializeProperties converts values against declared properties.
//
// A nil value means "unset": its name is returned in the second result and
// it is not serialized. Undeclared names are rejected.
func SerializeProperties(declared map[string]PropertyDefinition, values map[string]any) (ir.SerializedPropertyValues, []string, error) {
	serialized := ir.SerializedPropertyValues{}
	var unset []string

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def, ok := declared[name]
		if !ok {
			return nil, nil, fmt.Errorf("property %q is not declared", name)
		}
		value := values[name]
		if value == nil {
			unset = append(unset, name)
			continue
		}
		converted, err := ConvertValue(def.Type, value)
		if err != nil {
			var convErr *ConversionError
			if errors.As(err, &convErr) {
				convErr.Property = name
			}
			return nil, nil, err
		}
		serialized[name] = ir.SerializedPropertyValue{Value: converted, Type: def.Type}
	}
	return serialized, unset, nil
}

// DefaultValues returns the serialized defaults of a node type's
// properties. Defaults are validated at load time.
func (nt *NodeType) DefaultValues() ir.SerializedPropertyValues {
	defaults := ir.SerializedPropertyValues{}
	for name, def := range nt.Properties {
		if def.Default == nil {
			continue
		}
		converted, err := ConvertValue(def.Type, def.Default)
		if err != nil {
			continue
		}
		defaults[name] = ir.SerializedPropertyValue{Value: converted, Type: def.Type}
	}
	return defaults
}
