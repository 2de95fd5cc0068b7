package testvars

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/drivetest/packages/core/failure"
	"github.com/xeipuuv/gojsonschema"
)

type loader struct {
	schemaPath string
}

type Option func(*loader)

// WithSchema validates every testvars file against the JSON schema at path.
func WithSchema(path string) Option {
	return func(l *loader) {
		l.schemaPath = path
	}
}

// Load reads each file in paths and merges them into one mapping.
// A missing file fails with failure.NotFound, a file that is not a JSON
// object (or violates the schema) with failure.FormatError.
func Load(paths []string, opts ...Option) (map[string]any, error) {
	l := &loader{}
	for _, opt := range opts {
		opt(l)
	}

	docs, err := l.read(paths)
	if err != nil {
		return nil, err
	}
	return MergeAll(docs...), nil
}

func (l *loader) read(paths []string) ([]map[string]any, error) {
	var schema *gojsonschema.Schema
	if l.schemaPath != "" && len(paths) > 0 {
		var err error
		schema, err = loadSchema(l.schemaPath)
		if err != nil {
			return nil, err
		}
	}

	docs := make([]map[string]any, 0, len(paths))
	for _, path := range paths {
		doc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if schema != nil {
			if err := validate(schema, path, doc); err != nil {
				return nil, err
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.NotFoundf(path, "testvars file")
		}
		return nil, fmt.Errorf("reading testvars file: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, failure.Wrap(failure.FormatError, path, err, "JSON file (%s) is not properly formatted", path)
	}
	if doc == nil {
		return nil, failure.New(failure.FormatError, path, "JSON file (%s) is not properly formatted: top level must be an object", path)
	}
	return doc, nil
}

func loadSchema(path string) (*gojsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, failure.NotFoundf(path, "testvars schema")
		}
		return nil, fmt.Errorf("reading testvars schema: %w", err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, failure.Wrap(failure.FormatError, path, err, "testvars schema %s is invalid", path)
	}
	return schema, nil
}

func validate(schema *gojsonschema.Schema, path string, doc map[string]any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return failure.Wrap(failure.FormatError, path, err, "validating %s", path)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return failure.New(failure.FormatError, path, "testvars file %s does not match schema: %s", path, strings.Join(problems, "; "))
}
