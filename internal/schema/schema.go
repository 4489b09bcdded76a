// Package schema validates manifest options against an embedded JSON schema.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed options.schema.yaml
var optionsSchemaYAML []byte

// Item is a single schema violation
type Item struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Errors collects every violation found in a document
type Errors struct {
	Items []Item
}

func (e *Errors) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, item.Path+": "+item.Message)
	}
	return "options failed schema validation: " + strings.Join(parts, "; ")
}

var (
	compileOnce   sync.Once
	optionsSchema *gojsonschema.Schema
	compileErr    error
)

// OptionsSchema returns the raw options schema as JSON
func OptionsSchema() ([]byte, error) {
	var data any
	if err := yaml.Unmarshal(optionsSchemaYAML, &data); err != nil {
		return nil, fmt.Errorf("parse options schema: %w", err)
	}
	return json.Marshal(data)
}

func compiled() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := OptionsSchema()
		if err != nil {
			compileErr = err
			return
		}
		optionsSchema, compileErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if compileErr != nil {
			compileErr = fmt.Errorf("compile options schema: %w", compileErr)
		}
	})
	return optionsSchema, compileErr
}

// ValidateOptions checks doc, a snake_case options document, against the
// options schema. Violations are returned as *Errors.
func ValidateOptions(doc any) error {
	s, err := compiled()
	if err != nil {
		return err
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate options: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := &Errors{}
	for _, verr := range result.Errors() {
		field := verr.Field()
		if field == "" || field == "(root)" {
			field = "root"
		}
		errs.Items = append(errs.Items, Item{Path: field, Message: verr.Description()})
	}
	return errs
}
