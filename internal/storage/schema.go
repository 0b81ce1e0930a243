package storage

// Schema defines the persisted crawl state. The layout must stay readable by
// a restart of the same program pointed at the same database path.
const Schema = `
CREATE TABLE IF NOT EXISTS pages (
	url TEXT PRIMARY KEY,
	status INTEGER,
	content_type TEXT,
	title TEXT,
	description TEXT,
	text TEXT,
	depth INTEGER,
	crawled_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS frontier (
	url TEXT PRIMARY KEY,
	depth INTEGER
);

CREATE TABLE IF NOT EXISTS links (
	from_url TEXT,
	to_url TEXT,
	UNIQUE(from_url, to_url)
);

CREATE INDEX IF NOT EXISTS idx_frontier_depth ON frontier(depth);
CREATE INDEX IF NOT EXISTS idx_links_from ON links(from_url);
`
