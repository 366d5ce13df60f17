// Package migrations embeds the SQL schema migrations applied by golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
