package sigfile

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed signature-schema.json
var schemaJSON []byte

// maxReportedViolations caps the violations quoted in one error.
const maxReportedViolations = 3

var (
	schemaOnce   sync.Once
	schemaLoaded *gojsonschema.Schema
	schemaErr    error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemaLoaded, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})

	return schemaLoaded, schemaErr
}

// validate checks an uncompressed document against the embedded schema.
func validate(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile signature schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if result.Valid() {
		return nil
	}

	violations := result.Errors()
	msgs := make([]string, 0, min(len(violations), maxReportedViolations))

	for _, v := range violations[:min(len(violations), maxReportedViolations)] {
		msgs = append(msgs, v.String())
	}

	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}
