// Package database provides SQLite connectivity and schema migrations.
//
// The publisher can replay readings from an SQLite dataset instead of a
// CSV file; plantgen writes that dataset. Both open the database through
// this package and apply the embedded migrations before use.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional .down.sql partner and are applied in version order.
package database
