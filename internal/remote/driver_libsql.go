//go:build cgo

package remote

import (
	_ "github.com/tursodatabase/go-libsql" // libsql driver (embedded/remote Turso)
)
