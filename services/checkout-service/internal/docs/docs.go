// Package docs embeds the checkout service's OpenAPI document.
package docs

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
