// Package migrations embeds the goose SQL migrations for the vault database,
// one directory per supported dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS
