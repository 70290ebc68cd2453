// Package openapi embeds the OpenAPI description of the roster HTTP API.
package openapi

import _ "embed"

// RosterSpec is the OpenAPI 3 document served at /openapi.yaml.
//
//go:embed roster.yaml
var RosterSpec []byte

// Spec returns a copy of the embedded document.
func Spec() []byte {
	return append([]byte(nil), RosterSpec...)
}
