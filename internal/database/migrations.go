package database

// migrations is an ordered list of SQL migration groups. Each entry is a slice
// of SQL statements that are executed together in a single transaction. The
// version number is the 1-based index into this slice.
var migrations = [][]string{
	// Migration 1: record store
	{
		`CREATE TABLE collections (
			name TEXT PRIMARY KEY,
			label_singular TEXT NOT NULL,
			label_plural TEXT NOT NULL,
			display_field TEXT NOT NULL DEFAULT 'name',
			audited BOOLEAN NOT NULL DEFAULT TRUE,
			read_only BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE field_definitions (
			collection TEXT NOT NULL,
			name TEXT NOT NULL,
			label TEXT NOT NULL,
			type TEXT NOT NULL,
			required BOOLEAN NOT NULL DEFAULT FALSE,
			immutable BOOLEAN NOT NULL DEFAULT FALSE,
			options TEXT,
			display_order INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (collection, name),
			FOREIGN KEY (collection) REFERENCES collections(name)
		)`,

		`CREATE TABLE records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			archived BOOLEAN NOT NULL DEFAULT FALSE,
			archived_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (collection) REFERENCES collections(name)
		)`,
		`CREATE INDEX idx_records_collection ON records(collection, archived)`,
		`CREATE INDEX idx_records_collection_created ON records(collection, created_at)`,

		`CREATE TABLE record_values (
			record_id INTEGER NOT NULL,
			field TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'string',
			value TEXT,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (record_id, field),
			FOREIGN KEY (record_id) REFERENCES records(id)
		)`,
		`CREATE INDEX idx_record_values_value ON record_values(field, value)`,

		`CREATE TABLE exports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			state TEXT NOT NULL DEFAULT 'ENQUEUED',
			format TEXT NOT NULL,
			collection TEXT NOT NULL,
			filters TEXT,
			result_data BLOB,
			record_count INTEGER DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE request_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			request_body TEXT,
			response_body TEXT,
			duration_ms INTEGER,
			correlation_id TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX idx_request_log_time ON request_log(created_at)`,
	},
}
