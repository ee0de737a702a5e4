// Package oapi loads the OpenAPI document used to validate API requests.
package oapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/onkernel/devattach"
)

// GetSwagger parses and validates the embedded OpenAPI document.
// Each call returns a fresh document that the caller may modify.
func GetSwagger() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(devattach.OpenAPIYAML)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// RequestSpec returns the document prepared for request validation.
// Servers are cleared so requests are matched on path alone.
func RequestSpec() (*openapi3.T, error) {
	doc, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	doc.Servers = nil
	return doc, nil
}
