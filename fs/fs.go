// Package appfs embeds the files shipped with the binaries.
package appfs

import "embed"

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	CommonPasswords   = "assets/common-passwords.txt"
)

//go:embed migrations/*.sql templates/email/* assets/*.txt
var FS embed.FS
