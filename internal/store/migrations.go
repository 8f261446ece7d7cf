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

CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL UNIQUE,
	provider       TEXT NOT NULL DEFAULT 'custom',
	imap_host      TEXT NOT NULL DEFAULT '',
	imap_port      TEXT NOT NULL DEFAULT '993',
	smtp_host      TEXT NOT NULL DEFAULT '',
	smtp_port      TEXT NOT NULL DEFAULT '465',
	credential_ref TEXT NOT NULL DEFAULT '',
	signature      TEXT NOT NULL DEFAULT '',
	active         INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id          TEXT NOT NULL UNIQUE,
	in_reply_to         TEXT NOT NULL DEFAULT '',
	refs                TEXT NOT NULL DEFAULT '[]',
	subject             TEXT NOT NULL DEFAULT '',
	subject_normalized  TEXT NOT NULL DEFAULT '',
	body                TEXT NOT NULL DEFAULT '',
	body_html           TEXT NOT NULL DEFAULT '',
	account_id          TEXT NOT NULL DEFAULT '',
	user_email          TEXT NOT NULL DEFAULT '',
	from_addr           TEXT NOT NULL DEFAULT '',
	from_name           TEXT NOT NULL DEFAULT '',
	to_addr             TEXT NOT NULL DEFAULT '',
	direction           TEXT NOT NULL DEFAULT 'inbound',
	status              TEXT NOT NULL,
	decision            TEXT NOT NULL DEFAULT '',
	requires_reply      INTEGER NOT NULL DEFAULT 1,
	classifier_raw      TEXT NOT NULL DEFAULT '',
	classifier_fallback INTEGER NOT NULL DEFAULT 0,
	category            TEXT NOT NULL DEFAULT '',
	urgency             INTEGER NOT NULL DEFAULT 0,
	tags                TEXT NOT NULL DEFAULT '[]',
	task                TEXT NOT NULL DEFAULT '',
	insight             TEXT NOT NULL DEFAULT '',
	is_proposal         INTEGER NOT NULL DEFAULT 0,
	reply_draft         TEXT NOT NULL DEFAULT '',
	forced              INTEGER NOT NULL DEFAULT 0,
	attachments         TEXT NOT NULL DEFAULT '[]',
	embedding           TEXT NOT NULL DEFAULT '[]',
	created_at          DATETIME NOT NULL,
	handled_at          DATETIME
);

CREATE TABLE IF NOT EXISTS contacts (
	email              TEXT PRIMARY KEY,
	name               TEXT NOT NULL DEFAULT '',
	default_tone       TEXT NOT NULL DEFAULT 'formal',
	relationship_score INTEGER NOT NULL DEFAULT 50,
	mail_count         INTEGER NOT NULL DEFAULT 0,
	ai_notes           TEXT NOT NULL DEFAULT '[]',
	last_contact_at    DATETIME,
	accounts           TEXT NOT NULL DEFAULT '[]',
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tags (
	slug        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	color       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL DEFAULT '',
	user_email  TEXT NOT NULL DEFAULT '',
	sender      TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	due_date    DATETIME,
	urgency     INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	is_approved INTEGER NOT NULL DEFAULT 0,
	message_id  TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_user_email ON messages(user_email);
CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status);
CREATE INDEX IF NOT EXISTS idx_messages_in_reply_to ON messages(in_reply_to);
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_tasks_message_id ON tasks(message_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_status_created
	ON messages(status, created_at, seq);

CREATE INDEX IF NOT EXISTS idx_messages_subject_normalized
	ON messages(user_email, subject_normalized);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
