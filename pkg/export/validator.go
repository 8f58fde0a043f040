package export

import (
	"embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaFS embed.FS

// Validator checks documents against the embedded CUE schema. A field
// missing from the schema or a value of the wrong shape is an error, so a
// change to Document that is not mirrored in schema.cue fails loudly.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	schemaBytes, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("loading embedded schema: %w", err)
	}
	schema := ctx.CompileBytes(schemaBytes)
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate checks doc against #Document
func (v *Validator) Validate(doc *Document) error {
	jsonBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling document to JSON: %w", err)
	}
	return v.ValidateJSON(jsonBytes)
}

// ValidateJSON checks raw JSON against #Document
func (v *Validator) ValidateJSON(jsonBytes []byte) error {
	data := v.ctx.CompileBytes(jsonBytes)
	if data.Err() != nil {
		return fmt.Errorf("compiling JSON as CUE: %w", data.Err())
	}
	def := v.schema.LookupPath(cue.ParsePath("#Document"))
	if def.Err() != nil {
		return fmt.Errorf("looking up #Document definition: %w", def.Err())
	}
	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}
