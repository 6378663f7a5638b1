package sqlite

const pragmas = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA busy_timeout = 5000;
`

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS reviews (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	source_url TEXT NOT NULL,
	review_text TEXT NOT NULL,
	rating REAL,
	reviewer TEXT NOT NULL DEFAULT '',
	review_date TEXT NOT NULL DEFAULT '',
	fingerprint TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (product_id, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_reviews_product ON reviews(product_id, created_at DESC);

CREATE TABLE IF NOT EXISTS analyses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	positive INTEGER NOT NULL,
	negative INTEGER NOT NULL,
	neutral INTEGER NOT NULL,
	key_insights TEXT NOT NULL DEFAULT '[]',
	pros TEXT NOT NULL DEFAULT '[]',
	cons TEXT NOT NULL DEFAULT '[]',
	themes TEXT NOT NULL DEFAULT '[]',
	recommendations TEXT NOT NULL DEFAULT '[]',
	star_counts TEXT NOT NULL DEFAULT '[0,0,0,0,0]',
	total_reviews INTEGER NOT NULL,
	average_rating REAL NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analyses_product ON analyses(product_id, created_at DESC);
`
