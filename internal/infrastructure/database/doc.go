// Package database provides SQLite connectivity for the Night Watch journal.
//
// This package manages:
//   - Connection setup with WAL mode so status reads never block journal writes
//   - Forward-only schema migrations embedded in the binary
//   - Health checks and lifecycle management
//
// The database file is created with 0600 permissions. All queries used by
// callers are expected to be parameterised.
//
// Usage:
//
//	db, err := database.Open(ctx, database.FromConfig(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. Down files
// are kept alongside for manual recovery and are never applied automatically.
package database
