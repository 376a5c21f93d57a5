// Package schemas embeds the JSON Schemas for keysmith's YAML inputs.
package schemas

import _ "embed"

//go:embed run.schema.json
var RunSchemaJSON string

//go:embed geometry.schema.json
var GeometrySchemaJSON string
