package store

import "database/sql"

// Store holds all sub-stores used by the application.
type Store struct {
	DB          *sql.DB
	Collections CollectionStore
	Records     RecordStore
	Exports     ExportStore
}

// New creates a Store with all sub-stores initialized.
func New(db *sql.DB) *Store {
	collections := NewSQLiteCollectionStore(db)
	return &Store{
		DB:          db,
		Collections: collections,
		Records:     NewSQLiteRecordStore(db, collections),
		Exports:     NewSQLiteExportStore(db),
	}
}
