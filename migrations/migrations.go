// Package migrations embeds the goose SQL migrations so the migrate
// binary carries its schema with it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
