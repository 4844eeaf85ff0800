// Package database provides SQLite connectivity for the station store.
//
// It opens the database with WAL mode and a busy timeout, and applies
// versioned migrations from an fs.FS registered by the migrations package.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
