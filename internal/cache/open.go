package cache

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Open builds the standard chain: SQLite at dbPath, then files under dir
// (the system temp dir when empty), then process memory. A database that
// cannot be opened is logged and left out.
func Open(dbPath, dir string) (*Chain, func()) {
	var tiers []Tier
	closeFn := func() {}
	if dbPath != "" {
		db, err := OpenSQLite(dbPath)
		if err != nil {
			slog.Warn("sqlite cache unavailable", "path", dbPath, "error", err)
		} else {
			tiers = append(tiers, db)
			closeFn = func() { db.Close() }
		}
	}
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "doodlekiosk-cache")
	}
	tiers = append(tiers, NewDir(dir), Memory{})
	return NewChain(tiers...), closeFn
}
