// Package migrations embeds the PostgreSQL schema migrations and exposes
// them as a golang-migrate source. The SQLite backend creates its schema
// inline instead; these files are postgres dialect only.
package migrations

import (
	"embed"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var files embed.FS

// Source returns the embedded migrations as a migrate source driver.
func Source() (source.Driver, error) {
	return iofs.New(files, ".")
}
