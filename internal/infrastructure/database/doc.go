// Package database opens the SQLite file that stores play history and
// applies its schema migrations.
//
// Migrations are forward-only *.up.sql files named
// YYYYMMDD_HHMMSS_description.up.sql, usually embedded by the migrations
// package:
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
package database
