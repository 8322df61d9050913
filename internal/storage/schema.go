package storage

const schemaSQL = `
-- Current listings, one row per URL. Updated in place on re-observation;
-- never deleted, only flagged inactive when a full re-crawl no longer
-- discovers the URL.
CREATE TABLE IF NOT EXISTS listings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    title TEXT,
    snippet TEXT,
    image_url TEXT,
    price REAL,
    currency TEXT,
    date_posted DATETIME,
    scraped_at DATETIME NOT NULL,
    first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    site TEXT NOT NULL,
    category TEXT,
    is_active INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_listings_url ON listings(url);
CREATE INDEX IF NOT EXISTS idx_listings_site ON listings(site);
CREATE INDEX IF NOT EXISTS idx_listings_scraped ON listings(scraped_at);
CREATE INDEX IF NOT EXISTS idx_listings_active ON listings(is_active);

-- Append-only price change log. A row is inserted only when the observed
-- price differs from the previously stored one; rows are never updated.
CREATE TABLE IF NOT EXISTS price_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    listing_id INTEGER,
    url TEXT NOT NULL,
    price REAL,
    currency TEXT,
    recorded_at DATETIME NOT NULL,
    FOREIGN KEY (listing_id) REFERENCES listings(id)
);

CREATE INDEX IF NOT EXISTS idx_price_history_url ON price_history(url);
CREATE INDEX IF NOT EXISTS idx_price_history_recorded ON price_history(recorded_at);

-- Content-addressed version log: one row per distinct observed state of a
-- listing. The (url, fingerprint) pair is unique across all sessions, so
-- re-observing an unchanged record is a no-op.
CREATE TABLE IF NOT EXISTS listing_versions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT NOT NULL,
    title TEXT,
    price REAL,
    currency TEXT,
    image_url TEXT,
    site TEXT,
    category TEXT,
    session_id TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    recorded_at DATETIME NOT NULL,
    UNIQUE(url, fingerprint)
);

CREATE INDEX IF NOT EXISTS idx_versions_url ON listing_versions(url);
CREATE INDEX IF NOT EXISTS idx_versions_session ON listing_versions(session_id);

-- Point-in-time view over the version log: the latest recorded state per URL.
CREATE VIEW IF NOT EXISTS listing_versions_current AS
SELECT v1.url, v1.title, v1.price, v1.currency, v1.image_url,
       v1.site, v1.category, v1.session_id, v1.fingerprint, v1.recorded_at
FROM listing_versions v1
WHERE v1.recorded_at = (
    SELECT MAX(v2.recorded_at)
    FROM listing_versions v2
    WHERE v2.url = v1.url
);

-- Per-run accounting, one row per crawl invocation against one source.
CREATE TABLE IF NOT EXISTS scrape_sessions (
    session_id TEXT PRIMARY KEY NOT NULL,
    site TEXT NOT NULL,
    start_time DATETIME NOT NULL,
    end_time DATETIME,
    pages_scraped INTEGER NOT NULL DEFAULT 0,
    products_found INTEGER NOT NULL DEFAULT 0,
    errors_count INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running' CHECK (status IN ('running', 'completed', 'failed'))
);

CREATE INDEX IF NOT EXISTS idx_sessions_site ON scrape_sessions(site);
CREATE INDEX IF NOT EXISTS idx_sessions_start ON scrape_sessions(start_time);
`
