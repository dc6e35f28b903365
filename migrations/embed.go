// migrations/embed.go
package migrations

import "embed"

// FS holds the schema migrations, applied in order by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
