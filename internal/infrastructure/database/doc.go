// Package database provides SQLite connectivity and schema migrations for the
// accessory registry.
//
// The connection runs in WAL mode with a busy timeout and a single pooled
// connection. Migrations are plain SQL files registered through MigrationsFS
// and recorded in schema_migrations; each one applies in its own transaction.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
