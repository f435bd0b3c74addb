package db

// Schema creates the demo shop tables. Every statement is idempotent so Open
// can run it against an existing file.
const Schema = `
-- Accounts: one row per registered shopper
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL COLLATE NOCASE,
    name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    birth_day INTEGER NOT NULL DEFAULT 0,
    birth_month INTEGER NOT NULL DEFAULT 0,
    birth_year INTEGER NOT NULL DEFAULT 0,
    newsletter INTEGER NOT NULL DEFAULT 0,
    optin INTEGER NOT NULL DEFAULT 0,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    address1 TEXT NOT NULL DEFAULT '',
    address2 TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    zipcode TEXT NOT NULL DEFAULT '',
    mobile_number TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

-- Sessions: token is stored as sha3-256(token), computed in SQL
CREATE TABLE IF NOT EXISTS sessions (
    token_hash BLOB PRIMARY KEY,
    account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    expires_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_account_id ON sessions(account_id);
CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

-- Products: the read-only catalog served by /products and /api/productsList
CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    price TEXT NOT NULL,
    brand TEXT NOT NULL,
    usertype TEXT NOT NULL,
    category TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_products_brand ON products(brand);

-- Subscriptions: footer newsletter sign-ups
CREATE TABLE IF NOT EXISTS subscriptions (
    email TEXT PRIMARY KEY COLLATE NOCASE,
    created_at INTEGER NOT NULL
);
`
