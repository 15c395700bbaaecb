package store

// schema creates every table the importer writes. Statements are
// idempotent so Open can run them against an existing database.
const schema = `
CREATE TABLE IF NOT EXISTS editions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	slug         TEXT    NOT NULL UNIQUE,
	name         TEXT,
	current      INTEGER NOT NULL DEFAULT 0,
	date_created TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS structure (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier   TEXT    NOT NULL,
	name         TEXT,
	label        TEXT    NOT NULL,
	edition_id   INTEGER NOT NULL REFERENCES editions(id),
	depth        INTEGER NOT NULL DEFAULT 1,
	order_by     TEXT,
	parent_id    INTEGER REFERENCES structure(id),
	metadata     TEXT,
	date_created TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS structure_identity
	ON structure (identifier, edition_id, IFNULL(parent_id, 0));

CREATE TABLE IF NOT EXISTS laws (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	structure_id INTEGER REFERENCES structure(id),
	edition_id   INTEGER NOT NULL REFERENCES editions(id),
	section      TEXT    NOT NULL,
	catch_line   TEXT    NOT NULL,
	text         TEXT,
	history      TEXT,
	order_by     TEXT,
	date_created TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS laws_structure ON laws (structure_id, order_by, section);

CREATE TABLE IF NOT EXISTS laws_meta (
	law_id     INTEGER NOT NULL REFERENCES laws(id),
	meta_key   TEXT    NOT NULL,
	meta_value TEXT
);

CREATE INDEX IF NOT EXISTS laws_meta_key ON laws_meta (law_id, meta_key);

CREATE TABLE IF NOT EXISTS text (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	law_id       INTEGER NOT NULL REFERENCES laws(id),
	sequence     INTEGER NOT NULL,
	type         TEXT    NOT NULL,
	text         TEXT,
	date_created TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS text_sections (
	text_id      INTEGER NOT NULL REFERENCES text(id),
	identifier   TEXT    NOT NULL,
	sequence     INTEGER NOT NULL,
	date_created TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS laws_references (
	law_id                INTEGER NOT NULL REFERENCES laws(id),
	target_section_number TEXT    NOT NULL,
	mentions              INTEGER NOT NULL DEFAULT 1,
	date_created          TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (law_id, target_section_number)
);

CREATE TABLE IF NOT EXISTS dictionary (
	law_id            INTEGER NOT NULL REFERENCES laws(id),
	term              TEXT    NOT NULL,
	definition        TEXT    NOT NULL,
	scope             TEXT    NOT NULL,
	scope_specificity INTEGER,
	structure_id      INTEGER REFERENCES structure(id),
	date_created      TEXT    NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS dictionary_term ON dictionary (term);

CREATE TABLE IF NOT EXISTS laws_history (
	law_id   INTEGER NOT NULL REFERENCES laws(id),
	sequence INTEGER NOT NULL,
	year     TEXT    NOT NULL,
	chapters TEXT    NOT NULL,
	section  TEXT
);

CREATE TABLE IF NOT EXISTS permalinks (
	object_type   TEXT    NOT NULL,
	relational_id INTEGER NOT NULL,
	identifier    TEXT,
	token         TEXT    NOT NULL,
	url           TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS permalinks_url ON permalinks (url);

CREATE TABLE IF NOT EXISTS import_runs (
	id         TEXT    PRIMARY KEY,
	edition_id INTEGER NOT NULL REFERENCES editions(id),
	started    TEXT    NOT NULL,
	finished   TEXT,
	files      INTEGER NOT NULL DEFAULT 0,
	laws       INTEGER NOT NULL DEFAULT 0,
	skipped    INTEGER NOT NULL DEFAULT 0
);
`
