// Package schema validates the Entry and sync-envelope wire formats
// against JSON Schema before they reach the apply engine, so a
// malformed peer payload fails fast with a clear reason instead of
// corrupting local state.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const entrySchemaURL = "https://tidalsync.dev/schema/entry.schema.json"
const syncRequestSchemaURL = "https://tidalsync.dev/schema/sync_request.schema.json"

const entrySchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["dataset", "row", "column", "timestamp"],
  "properties": {
    "dataset": {"type": "string", "minLength": 1},
    "row": {"type": "string", "minLength": 1},
    "column": {"type": "string"},
    "timestamp": {"type": "string", "minLength": 46, "maxLength": 46}
  }
}`

const syncRequestSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["group_id", "client_id", "messages"],
  "properties": {
    "group_id": {"type": "string", "minLength": 1},
    "client_id": {"type": "string", "minLength": 1},
    "messages": {"type": "array", "items": {"$ref": "https://tidalsync.dev/schema/entry.schema.json"}}
  }
}`

// Validator holds compiled JSON Schemas for the wire envelopes this
// module exchanges with peers.
type Validator struct {
	entry       *jsonschema.Schema
	syncRequest *jsonschema.Schema
}

// New compiles the built-in Entry and sync-request schemas.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	if err := c.AddResource(entrySchemaURL, strings.NewReader(entrySchemaJSON)); err != nil {
		return nil, fmt.Errorf("schema: load entry schema: %w", err)
	}
	if err := c.AddResource(syncRequestSchemaURL, strings.NewReader(syncRequestSchemaJSON)); err != nil {
		return nil, fmt.Errorf("schema: load sync request schema: %w", err)
	}

	entry, err := c.Compile(entrySchemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema: compile entry schema: %w", err)
	}
	syncRequest, err := c.Compile(syncRequestSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema: compile sync request schema: %w", err)
	}

	return &Validator{entry: entry, syncRequest: syncRequest}, nil
}

// ValidateEntry checks raw JSON bytes against the Entry schema.
func (v *Validator) ValidateEntry(raw []byte) error {
	return validate(v.entry, raw)
}

// ValidateSyncRequest checks raw JSON bytes against the sync envelope schema.
func (v *Validator) ValidateSyncRequest(raw []byte) error {
	return validate(v.syncRequest, raw)
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema: invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema: validation failed: %w", err)
	}
	return nil
}
