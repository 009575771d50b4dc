package db

import (
	"embed"
)

// Migrations holds the schema migration files, embedded so the serve binary
// and the test harness can run them without a checkout
//go:embed migrations
var Migrations embed.FS
