// Package devattach holds the API definition served by cmd/api.
package devattach

import _ "embed"

// OpenAPIYAML is the OpenAPI document for the devattach API.
//
//go:embed openapi.yaml
var OpenAPIYAML []byte
