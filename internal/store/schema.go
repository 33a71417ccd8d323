package store

const Schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	feed_url TEXT NOT NULL,
	artist TEXT NOT NULL DEFAULT '',
	artwork_url TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	genre TEXT NOT NULL DEFAULT '',
	subscribed_at DATETIME NOT NULL,
	last_refreshed_at DATETIME
);

CREATE TABLE IF NOT EXISTS episodes (
	id TEXT PRIMARY KEY,
	podcast_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	-- ISO 8601 UTC, compared lexically
	publish_date TEXT NOT NULL,
	duration INTEGER,
	audio_url TEXT NOT NULL,
	artwork_url TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL,

	FOREIGN KEY (podcast_id) REFERENCES subscriptions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_episodes_podcast ON episodes(podcast_id, publish_date);

CREATE TABLE IF NOT EXISTS processing_records (
	episode_id TEXT PRIMARY KEY,
	processed_path TEXT,
	status TEXT NOT NULL DEFAULT 'none'
		CHECK (status IN ('none', 'queued', 'processing', 'ready', 'error')),
	original_duration REAL,
	processed_duration REAL,
	ads_removed REAL,
	error TEXT,
	queued_at DATETIME,
	started_at DATETIME,
	completed_at DATETIME,

	FOREIGN KEY (episode_id) REFERENCES episodes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_processing_records_status ON processing_records(status);

CREATE TABLE IF NOT EXISTS queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id TEXT NOT NULL UNIQUE,
	priority INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,

	FOREIGN KEY (episode_id) REFERENCES episodes(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_queue_priority ON queue(priority DESC, created_at ASC);

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
