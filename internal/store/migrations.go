package store

const schema = `
CREATE TABLE IF NOT EXISTS funds (
    code          TEXT PRIMARY KEY,
    name          TEXT NOT NULL DEFAULT '',
    type          TEXT NOT NULL DEFAULT '',
    category      TEXT NOT NULL DEFAULT '',
    plan          TEXT NOT NULL DEFAULT '',
    scheme        TEXT NOT NULL DEFAULT '',
    aum           REAL NOT NULL DEFAULT 0,
    rating        INTEGER NOT NULL DEFAULT 0,
    ret_1w        REAL,
    ret_1y        REAL,
    ret_3y        REAL,
    ret_5y        REAL,
    ret_inception REAL,
    raw_score     REAL,
    final_score   REAL,
    scored_at     DATETIME,
    alerted       BOOLEAN NOT NULL DEFAULT 0,
    updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_funds_category ON funds(category);
CREATE INDEX IF NOT EXISTS idx_funds_type ON funds(type);
CREATE INDEX IF NOT EXISTS idx_funds_final_score ON funds(final_score);

CREATE TABLE IF NOT EXISTS category_averages (
    category      TEXT PRIMARY KEY,
    ret_1w        REAL,
    ret_1y        REAL,
    ret_3y        REAL,
    ret_5y        REAL,
    ret_inception REAL,
    report_date   DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS announcements (
    id           TEXT PRIMARY KEY,
    feed         TEXT NOT NULL,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL DEFAULT '',
    published_at DATETIME NOT NULL,
    collected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_announcements_published ON announcements(published_at);

CREATE TABLE IF NOT EXISTS sync_runs (
    id             TEXT PRIMARY KEY,
    kind           TEXT NOT NULL,
    started_at     DATETIME NOT NULL,
    finished_at    DATETIME,
    funds_seen     INTEGER NOT NULL DEFAULT 0,
    funds_eligible INTEGER NOT NULL DEFAULT 0,
    funds_scored   INTEGER NOT NULL DEFAULT 0,
    failures       INTEGER NOT NULL DEFAULT 0,
    error          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);
`
