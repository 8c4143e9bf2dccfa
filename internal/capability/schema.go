package capability

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks tool arguments against a compiled input schema.
type Validator interface {
	// Validate returns nil when args satisfy the schema, otherwise an
	// error describing every violation.
	Validate(args map[string]interface{}) error
}

// Compiler turns a raw inputSchema into a reusable Validator. Compilation
// failures are per-capability: the caller skips the offending tool instead
// of failing the whole set.
type Compiler interface {
	Compile(schema map[string]interface{}) (Validator, error)
}

// NewCompiler returns the default JSON Schema compiler.
func NewCompiler() Compiler {
	return &jsonSchemaCompiler{}
}

type jsonSchemaCompiler struct{}

func (c *jsonSchemaCompiler) Compile(schema map[string]interface{}) (Validator, error) {
	// Marshal first: a schema map with a cyclic reference makes the loader
	// recurse forever, while json.Marshal rejects it cleanly.
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("schema is not serializable: %w", err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema compilation failed: %w", err)
	}
	return &jsonSchemaValidator{schema: compiled}, nil
}

type jsonSchemaValidator struct {
	schema *gojsonschema.Schema
}

func (v *jsonSchemaValidator) Validate(args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return fmt.Errorf("%s", strings.Join(violations, "; "))
}
