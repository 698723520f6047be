package auth

import (
	"embed"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the SQL migrations for the local_users and
// auth_sessions tables.
func GetMigrationsFS() embed.FS {
	return migrationsFS
}
