package graph

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	schema "github.com/hanpama/topograph/internal/schema"
)

// encodeFields serializes a field map as a JSON object typed by the effective
// field declarations of typeName. Returns nil for field-less types.
func encodeFields(reg *schema.Registry, typeName string, fields map[string]cty.Value) ([]byte, error) {
	defs := reg.EffectiveFields(typeName)
	if len(defs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]cty.Type, len(defs))
	vals := make(map[string]cty.Value, len(defs))
	for _, def := range defs {
		attrs[def.Name] = def.Type
		if v, ok := fields[def.Name]; ok {
			vals[def.Name] = v
		} else {
			vals[def.Name] = cty.NullVal(def.Type)
		}
	}
	data, err := ctyjson.Marshal(cty.ObjectVal(vals), cty.Object(attrs))
	if err != nil {
		return nil, fmt.Errorf("encoding %s fields: %w", typeName, err)
	}
	return data, nil
}

// decodeFields is the inverse of encodeFields.
func decodeFields(reg *schema.Registry, typeName string, data []byte) (map[string]cty.Value, error) {
	defs := reg.EffectiveFields(typeName)
	fields := make(map[string]cty.Value, len(defs))
	if len(data) == 0 {
		for _, def := range defs {
			fields[def.Name] = cty.NullVal(def.Type)
		}
		return fields, nil
	}
	attrs := make(map[string]cty.Type, len(defs))
	for _, def := range defs {
		attrs[def.Name] = def.Type
	}
	obj, err := ctyjson.Unmarshal(data, cty.Object(attrs))
	if err != nil {
		return nil, fmt.Errorf("decoding %s fields: %w", typeName, err)
	}
	for name, v := range obj.AsValueMap() {
		fields[name] = v
	}
	return fields, nil
}
