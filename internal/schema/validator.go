package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks model responses against JSON schemas.
// Compiled schemas are cached by their JSON text.
type Validator struct {
	cache sync.Map // map[string]*gojsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that doc matches schemaData. The schema can be a
// map[string]any, a JSON string or anything that marshals to a schema.
func (v *Validator) Validate(schemaData any, doc string) error {
	schema, err := v.compile(schemaData)
	if err != nil {
		return fmt.Errorf("invalid schema definition: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("validation execution failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var errs []string
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return fmt.Errorf("schema validation failed:\n- %s", dumpErrors(errs))
}

func (v *Validator) compile(schemaData any) (*gojsonschema.Schema, error) {
	var jsonBytes []byte
	if s, ok := schemaData.(string); ok {
		jsonBytes = []byte(s)
	} else {
		b, err := json.Marshal(schemaData)
		if err != nil {
			return nil, err
		}
		jsonBytes = b
	}
	key := string(jsonBytes)

	if val, ok := v.cache.Load(key); ok {
		return val.(*gojsonschema.Schema), nil
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(jsonBytes))
	if err != nil {
		return nil, err
	}
	v.cache.Store(key, schema)
	return schema, nil
}

func dumpErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	// first 3 only
	truncated := ""
	if len(errs) > 3 {
		truncated = fmt.Sprintf("\n... and %d more", len(errs)-3)
		errs = errs[:3]
	}
	return strings.Join(errs, "\n- ") + truncated
}
