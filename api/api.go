// Package api holds the OpenAPI contract of the HTTP adapter.
package api

import _ "embed"

// Spec is openapi.yaml.
//
//go:embed openapi.yaml
var Spec []byte
