// Package api holds the OpenAPI description served under /swagger.
package api

import _ "embed"

//go:embed openapi.json
var OpenAPISpec []byte
