package api

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(OpenAPISpec)
	require.NoError(t, err)
	return doc
}

func TestOpenAPISpec_Valid(t *testing.T) {
	doc := loadSpec(t)
	require.NoError(t, doc.Validate(context.Background()))
	assert.Equal(t, "1.0.0", doc.Info.Version)
}

func TestOpenAPISpec_CoversRoutes(t *testing.T) {
	doc := loadSpec(t)

	routes := map[string][]string{
		"/api/auth/register":               {"POST"},
		"/api/auth/login":                  {"POST"},
		"/api/auth/me":                     {"GET"},
		"/api/books":                       {"GET", "POST"},
		"/api/books/{id}":                  {"GET", "PUT", "DELETE"},
		"/api/books/{id}/cover":            {"PUT"},
		"/api/borrowing/request":           {"POST"},
		"/api/borrowing/my-books":          {"GET"},
		"/api/borrowing/history":           {"GET"},
		"/api/borrowing/my-requests":       {"GET"},
		"/api/borrowing/return/{id}":       {"POST"},
		"/api/admin/requests":              {"GET"},
		"/api/admin/requests/{id}/approve": {"PUT"},
		"/api/admin/requests/{id}/reject":  {"PUT"},
		"/api/admin/borrowings":            {"GET"},
		"/api/admin/stats":                 {"GET"},
	}
	for path, methods := range routes {
		item := doc.Paths.Find(path)
		require.NotNil(t, item, path)
		for _, m := range methods {
			assert.NotNil(t, item.GetOperation(m), "%s %s", m, path)
		}
	}
}
