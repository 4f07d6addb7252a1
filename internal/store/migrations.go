package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	folder      TEXT NOT NULL,
	sender      TEXT NOT NULL DEFAULT '',
	recipient   TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	date        DATETIME NOT NULL,
	attachments TEXT NOT NULL DEFAULT '[]',
	read        INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	fetched_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS analyses (
	id              TEXT PRIMARY KEY,
	message_id      TEXT NOT NULL,
	message_count   INTEGER NOT NULL DEFAULT 1,
	sentiment       REAL,
	topics          TEXT NOT NULL DEFAULT '[]',
	entities        TEXT NOT NULL DEFAULT '[]',
	summary         TEXT NOT NULL DEFAULT '',
	confidence      REAL NOT NULL DEFAULT 0,
	has_attachments INTEGER NOT NULL DEFAULT 0 CHECK(has_attachments IN (0, 1)),
	analyzed_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_folder ON messages(folder);
CREATE INDEX IF NOT EXISTS idx_messages_read ON messages(read);
CREATE INDEX IF NOT EXISTS idx_messages_date ON messages(date);
CREATE INDEX IF NOT EXISTS idx_analyses_message_id ON analyses(message_id);
CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses(analyzed_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
