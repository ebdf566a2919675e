package ir

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SerializedPropertyValue is a property value after node-type conversion,
// tagged with the declared type it was converted to.
type SerializedPropertyValue struct {
	Value any    `json:"value"`
	Type  string `json:"type"`
}

// SerializedPropertyValues maps property names to serialized values.
// Stored as JSON in the node table; read-side criteria address
// "$.<name>.value".
type SerializedPropertyValues map[string]SerializedPropertyValue

// Merge returns a copy of p with the values of other written over it.
func (p SerializedPropertyValues) Merge(other SerializedPropertyValues) SerializedPropertyValues {
	merged := make(SerializedPropertyValues, len(p)+len(other))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Unset returns a copy of p without the given names.
func (p SerializedPropertyValues) Unset(names []string) SerializedPropertyValues {
	result := make(SerializedPropertyValues, len(p))
	for k, v := range p {
		result[k] = v
	}
	for _, name := range names {
		delete(result, name)
	}
	return result
}

// Names returns the property names in sorted order.
func (p SerializedPropertyValues) Names() []string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Value returns the raw value of a property, or nil if unset.
func (p SerializedPropertyValues) Value(name string) any {
	if v, ok := p[name]; ok {
		return v.Value
	}
	return nil
}

// MarshalProperties encodes properties for storage. Never returns "null".
func MarshalProperties(p SerializedPropertyValues) (string, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

// UnmarshalProperties decodes stored properties. Numbers decode as float64
// unless the declared type is "int", in which case they are restored to int64.
func UnmarshalProperties(data string) (SerializedPropertyValues, error) {
	result := SerializedPropertyValues{}
	if data == "" {
		return result, nil
	}
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	return result.NormalizeNumbers(), nil
}

// NormalizeNumbers restores int64 for "int" typed values that went through a
// JSON round trip and came back as float64.
func (p SerializedPropertyValues) NormalizeNumbers() SerializedPropertyValues {
	for name, v := range p {
		if f, ok := v.Value.(float64); ok && v.Type == "int" {
			p[name] = SerializedPropertyValue{Value: int64(f), Type: v.Type}
		}
	}
	return p
}
