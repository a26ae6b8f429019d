package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create messages",
		SQL: `
			CREATE TABLE messages (
				id               TEXT PRIMARY KEY,
				conversation_id  TEXT NOT NULL,
				role             TEXT NOT NULL,
				parts            TEXT NOT NULL,
				metadata         TEXT NOT NULL,
				original_id      TEXT NOT NULL DEFAULT '',
				created_at       TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_conversation ON messages (conversation_id, created_at);
			CREATE INDEX idx_messages_original ON messages (original_id) WHERE original_id != '';
		`,
	},
	{
		Version: 2,
		Name:    "create offline queue",
		SQL: `
			CREATE TABLE offline_messages (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				receiver_id  TEXT NOT NULL,
				session_id   TEXT NOT NULL,
				sender_id    TEXT NOT NULL,
				sender_name  TEXT NOT NULL DEFAULT '',
				body         TEXT NOT NULL,
				attachment   TEXT,
				created_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_offline_receiver ON offline_messages (receiver_id, id);
		`,
	},
}
