package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed manifest.schema.json
var schemaFS embed.FS

var (
	manifestSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

// compileSchema compiles the embedded manifest schema once.
func compileSchema() error {
	compileOnce.Do(func() {
		data, err := schemaFS.ReadFile("manifest.schema.json")
		if err != nil {
			compileErr = fmt.Errorf("read manifest schema: %w", err)
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal manifest schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("manifest.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add manifest schema resource: %w", err)
			return
		}

		manifestSchema, compileErr = compiler.Compile("manifest.schema.json")
	})

	return compileErr
}

// validateManifest validates a decoded manifest document against the
// embedded JSON schema. The document is round-tripped through JSON so the
// validator sees canonical value types regardless of the YAML decoder.
func validateManifest(doc any) error {
	if err := compileSchema(); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize manifest: %w", err)
	}
	normalized, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("normalize manifest: %w", err)
	}

	if err := manifestSchema.Validate(normalized); err != nil {
		return fmt.Errorf("manifest schema validation failed: %w", err)
	}
	return nil
}
