// Package tools wires the task, search, UI, and history tools into the
// Tool Dispatcher's registry. Each tool's JSON schema is compiled once at
// registration time via santhosh-tekuri/jsonschema/v5 and re-validated on
// every call before the raw params are unmarshaled into the tool's typed
// input struct. Every tool carries an explicit schema; unknown shapes
// are rejected at dispatch, not at the client.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles a tool's JSON schema string once, at registration
// time, so a malformed schema fails fast on startup rather than on the
// first call.
func CompileSchema(name string, schema json.RawMessage) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal(schema, &doc); err != nil {
		panic(fmt.Sprintf("tools: %s: invalid schema json: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".json", bytes.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("tools: %s: add schema resource: %v", name, err))
	}
	compiled, err := c.Compile(name + ".json")
	if err != nil {
		panic(fmt.Sprintf("tools: %s: compile schema: %v", name, err))
	}
	return compiled
}

// ValidateParams checks raw params against a compiled schema, returning a
// human-readable error suitable for a failed ToolEnvelope's Message.
func ValidateParams(schema *jsonschema.Schema, params json.RawMessage) error {
	if len(params) == 0 {
		params = json.RawMessage(`{}`)
	}
	var doc any
	if err := json.Unmarshal(params, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}
	return nil
}
