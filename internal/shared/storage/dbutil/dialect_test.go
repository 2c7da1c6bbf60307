package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebindToQuestion(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"single", "SELECT * FROM books WHERE book_id = $1", "SELECT * FROM books WHERE book_id = ?"},
		{"multiple", "UPDATE books SET title = $1 WHERE book_id = $2", "UPDATE books SET title = ? WHERE book_id = ?"},
		{"double digit", "VALUES ($9, $10, $11)", "VALUES (?, ?, ?)"},
		{"none", "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RebindToQuestion(tt.query))
		})
	}
}

func TestStripPgCasts(t *testing.T) {
	assert.Equal(t, "SELECT $1", StripPgCasts("SELECT $1::text"))
}

func TestParseDriverType(t *testing.T) {
	tests := []struct {
		in      string
		want    DriverType
		wantErr bool
	}{
		{"sqlite", DriverSQLite, false},
		{"SQLite3", DriverSQLite, false},
		{"postgres", DriverPostgres, false},
		{"postgresql", DriverPostgres, false},
		{"mysql", DriverMySQL, false},
		{"mongodb", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDriverType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- books
CREATE TABLE a (id INT);

-- 只有注释
;
CREATE INDEX idx ON a(id);
`
	stmts := SplitStatements(script)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", stmts[0])
	assert.Equal(t, "CREATE INDEX idx ON a(id)", stmts[1])
}
