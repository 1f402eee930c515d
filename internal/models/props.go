package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// PropertyMap maps metadata keys to either a string or a nested map.
// Keys keep their first insertion position; setting an existing key
// replaces its value in place. The zero value is an empty map.
type PropertyMap struct {
	m *orderedmap.OrderedMap[string, PropertyValue]
}

// PropertyValue is a leaf string or a nested PropertyMap.
type PropertyValue struct {
	Text  string
	Props *PropertyMap
}

// Text wraps s as a leaf value.
func Text(s string) PropertyValue {
	return PropertyValue{Text: s}
}

// Nested wraps pm as a nested value.
func Nested(pm *PropertyMap) PropertyValue {
	return PropertyValue{Props: pm}
}

// IsNested reports whether v holds a nested map.
func (v PropertyValue) IsNested() bool {
	return v.Props != nil
}

// NewPropertyMap returns an empty map.
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{m: orderedmap.New[string, PropertyValue]()}
}

func (pm *PropertyMap) init() {
	if pm.m == nil {
		pm.m = orderedmap.New[string, PropertyValue]()
	}
}

// Set stores v under key.
func (pm *PropertyMap) Set(key string, v PropertyValue) {
	pm.init()
	pm.m.Set(key, v)
}

// Get returns the value stored under key.
func (pm *PropertyMap) Get(key string) (PropertyValue, bool) {
	if pm == nil || pm.m == nil {
		return PropertyValue{}, false
	}
	return pm.m.Get(key)
}

// Len returns the number of keys.
func (pm *PropertyMap) Len() int {
	if pm == nil || pm.m == nil {
		return 0
	}
	return pm.m.Len()
}

// Keys returns the keys in insertion order.
func (pm *PropertyMap) Keys() []string {
	if pm == nil || pm.m == nil {
		return nil
	}
	keys := make([]string, 0, pm.m.Len())
	for pair := pm.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Flatten returns every leaf as "a.b.c" → value, in insertion order.
// Used for indexing and search.
func (pm *PropertyMap) Flatten() [][2]string {
	var out [][2]string
	var walk func(prefix string, m *PropertyMap)
	walk = func(prefix string, m *PropertyMap) {
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if v.IsNested() {
				walk(key, v.Props)
				continue
			}
			out = append(out, [2]string{key, v.Text})
		}
	}
	walk("", pm)
	return out
}

// MarshalJSON emits keys in insertion order without HTML escaping.
func (pm *PropertyMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range pm.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v, _ := pm.Get(k)
		vb, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, preserving key order.
func (pm *PropertyMap) UnmarshalJSON(data []byte) error {
	pm.m = orderedmap.New[string, PropertyValue]()
	return pm.m.UnmarshalJSON(data)
}

// MarshalJSON emits a JSON string or a nested object.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	if v.Props != nil {
		return v.Props.MarshalJSON()
	}
	return marshalNoEscape(v.Text)
}

// UnmarshalJSON accepts a JSON string or object.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("models: empty property value")
	}
	switch data[0] {
	case '"':
		v.Props = nil
		return json.Unmarshal(data, &v.Text)
	case '{':
		v.Text = ""
		v.Props = &PropertyMap{}
		return v.Props.UnmarshalJSON(data)
	default:
		return fmt.Errorf("models: property value must be a string or an object, got %s", data)
	}
}

func marshalNoEscape(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
