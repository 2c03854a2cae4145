package ocr

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ValidateData checks extracted structured data against a JSON Schema.
//
// The schema may be bare or wrapped as {"name":..,"schema":{..}} or
// {"type":"json_schema","json_schema":{"schema":{..}}}.
func ValidateData(schemaRaw json.RawMessage, data any) error {
	if len(bytes.TrimSpace(schemaRaw)) == 0 {
		return nil
	}

	core, err := unwrapSchema(schemaRaw)
	if err != nil {
		return err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(core)); err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	// Round-trip so typed Go values validate the same way decoded JSON does.
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode data for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode data for validation: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("extracted data does not match schema: %w", err)
	}
	return nil
}

func unwrapSchema(schemaRaw json.RawMessage) (json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(schemaRaw, &root); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}

	if inner, ok := root["schema"]; ok {
		return inner, nil
	}
	if wrapped, ok := root["json_schema"]; ok {
		var js struct {
			Schema json.RawMessage `json:"schema"`
		}
		if err := json.Unmarshal(wrapped, &js); err == nil && len(js.Schema) > 0 {
			return js.Schema, nil
		}
	}
	return schemaRaw, nil
}
