// Package api 内嵌的 OpenAPI 文档
package api

import _ "embed"

// OpenAPISpec LibriGo API 文档（OpenAPI 3.0）
//
//go:embed openapi/librigo.yaml
var OpenAPISpec []byte
