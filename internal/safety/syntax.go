package safety

import (
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"

	"gopkg.in/yaml.v3"
)

// validateGoSyntax parses content as a Go source file.
func validateGoSyntax(content []byte) error {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "delivery.go", content, parser.AllErrors)
	if err != nil {
		return fmt.Errorf("go parse: %w", err)
	}
	return nil
}

// validateJSONSyntax checks that content is well-formed JSON.
func validateJSONSyntax(content []byte) error {
	var v interface{}
	if err := json.Unmarshal(content, &v); err != nil {
		return fmt.Errorf("json parse: %w", err)
	}
	return nil
}

// validateYAMLSyntax checks that content is well-formed YAML.
func validateYAMLSyntax(content []byte) error {
	var v interface{}
	if err := yaml.Unmarshal(content, &v); err != nil {
		return fmt.Errorf("yaml parse: %w", err)
	}
	return nil
}
