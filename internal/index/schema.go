package index

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY,
	path TEXT UNIQUE NOT NULL,
	title TEXT,
	hash TEXT,
	mtime_unix INTEGER,
	size INTEGER,
	completed INTEGER NOT NULL DEFAULT 0,
	total INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER
);

CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY,
	doc_id INTEGER NOT NULL,
	line_no INTEGER NOT NULL,
	label TEXT NOT NULL,
	checked INTEGER NOT NULL DEFAULT 0,
	level INTEGER NOT NULL,
	parent_line INTEGER,
	section TEXT
);

CREATE INDEX IF NOT EXISTS tasks_doc_idx ON tasks(doc_id);
CREATE INDEX IF NOT EXISTS tasks_open_idx ON tasks(checked, doc_id);
`
