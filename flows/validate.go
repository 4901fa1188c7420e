package flows

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	paymcp "github.com/paymcp/paymcp-go"
)

// argValidator checks call arguments against a tool's input schema so that a
// malformed call is rejected before anyone is asked to pay for it
type argValidator struct {
	schema *gojsonschema.Schema
}

// newArgValidator compiles schema. A nil schema, or one that does not compile,
// yields a validator that accepts everything.
func newArgValidator(schema interface{}) (*argValidator, error) {
	if schema == nil {
		return &argValidator{}, nil
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return &argValidator{}, fmt.Errorf("failed to marshal input schema: %w", err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return &argValidator{}, fmt.Errorf("failed to compile input schema: %w", err)
	}
	return &argValidator{schema: compiled}, nil
}

func (v *argValidator) validate(args json.RawMessage) error {
	if v == nil || v.schema == nil {
		return nil
	}
	doc := args
	if len(doc) == 0 {
		doc = json.RawMessage(`{}`)
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return paymcp.NewValidationError("arguments", fmt.Sprintf("are not valid JSON: %v", err))
	}
	if result.Valid() {
		return nil
	}
	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return paymcp.NewValidationError("arguments", "are invalid: "+strings.Join(problems, "; "))
}
