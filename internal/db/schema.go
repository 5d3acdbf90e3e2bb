package db

// Schema for cached catalog listings. A listing is the root page ("") or a
// month page ("202306.html"); entries and months keep their listing order.
const createListingsTable = `
CREATE TABLE IF NOT EXISTS catalog_listings (
    listing TEXT PRIMARY KEY,
    fetched_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_entries (
    listing TEXT NOT NULL,
    position INTEGER NOT NULL,
    entry_date INTEGER NOT NULL,
    locator TEXT NOT NULL,
    PRIMARY KEY (listing, position)
);

CREATE TABLE IF NOT EXISTS catalog_months (
    listing TEXT NOT NULL,
    position INTEGER NOT NULL,
    year_month INTEGER NOT NULL,
    locator TEXT NOT NULL,
    PRIMARY KEY (listing, position)
);
`

const upsertListing = `
INSERT OR REPLACE INTO catalog_listings (listing, fetched_at) VALUES (?, ?)
`

const deleteListingEntries = `
DELETE FROM catalog_entries WHERE listing = ?
`

const deleteListingMonths = `
DELETE FROM catalog_months WHERE listing = ?
`

const insertListingEntry = `
INSERT INTO catalog_entries (listing, position, entry_date, locator) VALUES (?, ?, ?, ?)
`

const insertListingMonth = `
INSERT INTO catalog_months (listing, position, year_month, locator) VALUES (?, ?, ?, ?)
`

const selectListingFetchedAt = `
SELECT fetched_at FROM catalog_listings WHERE listing = ?
`

const selectListingEntries = `
SELECT entry_date, locator FROM catalog_entries
WHERE listing = ?
ORDER BY position ASC
`

const selectListingMonths = `
SELECT year_month, locator FROM catalog_months
WHERE listing = ?
ORDER BY position ASC
`

const deleteAllListings = `
DELETE FROM catalog_listings;
DELETE FROM catalog_entries;
DELETE FROM catalog_months;
`

// Schema for the retrieval log (which archive was matched to which session)
const createRetrievalsTable = `
CREATE TABLE IF NOT EXISTS retrievals (
    id TEXT PRIMARY KEY,
    subject TEXT NOT NULL,
    session_date INTEGER NOT NULL,
    entry_date INTEGER NOT NULL,
    locator TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_retrievals_subject ON retrievals(subject);
`

const insertRetrieval = `
INSERT INTO retrievals (id, subject, session_date, entry_date, locator, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const selectRetrievals = `
SELECT id, subject, session_date, entry_date, locator, status, created_at
FROM retrievals
WHERE subject = ?
ORDER BY created_at DESC, rowid DESC
`

const selectAllRetrievals = `
SELECT id, subject, session_date, entry_date, locator, status, created_at
FROM retrievals
ORDER BY created_at DESC, rowid DESC
`
