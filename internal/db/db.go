// Package db is the demo shop's SQLite storage: accounts, sessions, the
// product catalog and newsletter subscriptions.
package db

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kuitang/shop-e2e/internal/errs"
)

const (
	// MaxOpenConns is the maximum number of open connections for a file database.
	// SQLite is single-writer, so high connection counts are counterproductive.
	MaxOpenConns = 10

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns = 2

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"
)

// DB wraps the sql.DB connection for the shop tables.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Account is a registered shopper.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Title        string // "Mr" or "Mrs"
	BirthDay     int
	BirthMonth   int
	BirthYear    int
	Newsletter   bool
	Optin        bool
	FirstName    string
	LastName     string
	Company      string
	Address1     string
	Address2     string
	Country      string
	State        string
	City         string
	Zipcode      string
	MobileNumber string
	CreatedAt    int64
}

// Product is one catalog entry.
type Product struct {
	ID          int64
	Name        string
	Price       string // display price, e.g. "Rs. 500"
	Brand       string
	UserType    string // Women, Men, Kids
	Category    string
	Description string // markdown
}

// Open opens (creating if needed) the shop database at path. A non-empty key
// enables SQLCipher encryption and must be 32 bytes.
func Open(path string, key []byte) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if len(key) != 0 && len(key) != 32 {
		return nil, fmt.Errorf("database key must be exactly 32 bytes, got %d", len(key))
	}

	var dsn string
	if path == MemoryPath {
		dsn = MemoryPath
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = path
	}
	if len(key) > 0 {
		// Format: file.db?_pragma_key=x'HEX_KEY'&_pragma_cipher_page_size=4096
		dsn = appendSQLiteParams(dsn, fmt.Sprintf("_pragma_key=x'%s'&_pragma_cipher_page_size=4096", hex.EncodeToString(key)))
	}
	dsn = appendSQLiteParams(dsn, sqliteCommonParams())

	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open shop database: %w", err)
	}

	if path == MemoryPath {
		// Each connection to :memory: is its own database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(MaxOpenConns)
		sqlDB.SetMaxIdleConns(MaxIdleConns)
	}

	// A wrong key only shows up on first read.
	var sqliteVersion string
	if err := sqlDB.QueryRow("SELECT sqlite_version()").Scan(&sqliteVersion); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to verify shop database connection: %w", err)
	}

	if _, err := sqlDB.Exec(Schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize shop schema: %w", err)
	}

	return &DB{db: sqlDB, now: time.Now}, nil
}

// DB returns the underlying sql.DB for direct access when needed
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close closes the connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

const accountColumns = `id, email, name, password_hash, title, birth_day, birth_month, birth_year,
	newsletter, optin, first_name, last_name, company, address1, address2, country, state, city,
	zipcode, mobile_number, created_at`

// CreateAccount inserts a new account. A duplicate email yields errs.Conflict.
func (d *DB) CreateAccount(ctx context.Context, a *Account) error {
	if a.ID == "" || strings.TrimSpace(a.Email) == "" {
		return errs.New(errs.InvalidArgument, "account id and email are required")
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = d.now().Unix()
	}
	_, err := d.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Title, a.BirthDay, a.BirthMonth, a.BirthYear,
		boolToInt(a.Newsletter), boolToInt(a.Optin), a.FirstName, a.LastName, a.Company,
		a.Address1, a.Address2, a.Country, a.State, a.City, a.Zipcode, a.MobileNumber, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Wrap(errs.Conflict, "Email Address already exist!", err)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// AccountByEmail looks up an account case-insensitively. Missing yields errs.NotFound.
func (d *DB) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, strings.TrimSpace(email))
	return scanAccount(row)
}

// AccountByID looks up an account by ID. Missing yields errs.NotFound.
func (d *DB) AccountByID(ctx context.Context, id string) (*Account, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// EmailExists reports whether an account is registered under email.
func (d *DB) EmailExists(ctx context.Context, email string) (bool, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE email = ?`, strings.TrimSpace(email)).Scan(&n); err != nil {
		return false, fmt.Errorf("count accounts: %w", err)
	}
	return n > 0, nil
}

// DeleteAccount removes an account and its sessions. Missing yields errs.NotFound.
func (d *DB) DeleteAccount(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete account: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = ?`, id); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.NotFound, "Account not found!")
	}
	return tx.Commit()
}

// CountAccounts returns the number of registered accounts.
func (d *DB) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// CreateSession stores a session for accountID. Only sha3-256(token) is persisted.
func (d *DB) CreateSession(ctx context.Context, token, accountID string, ttl time.Duration) error {
	now := d.now()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, account_id, expires_at, created_at) VALUES (sha3(?, 256), ?, ?, ?)`,
		token, accountID, now.Add(ttl).Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// AccountBySession resolves a live session token to its account. Unknown or
// expired tokens yield errs.Unauthenticated.
func (d *DB) AccountBySession(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, errs.New(errs.Unauthenticated, "no session")
	}
	row := d.db.QueryRowContext(ctx, `SELECT `+prefixed("a.", accountColumns)+`
		FROM sessions s JOIN accounts a ON a.id = s.account_id
		WHERE s.token_hash = sha3(?, 256) AND s.expires_at > ?`, token, d.now().Unix())
	acct, err := scanAccount(row)
	if errs.Is(err, errs.NotFound) {
		return nil, errs.New(errs.Unauthenticated, "session expired or unknown")
	}
	return acct, err
}

// DeleteSession removes a session token. Unknown tokens are not an error.
func (d *DB) DeleteSession(ctx context.Context, token string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = sha3(?, 256)`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes expired sessions and returns how many were dropped.
func (d *DB) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, d.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// UpsertProducts replaces the catalog rows with the given products.
func (d *DB) UpsertProducts(ctx context.Context, products []Product) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert products: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO products
		(id, name, price, brand, usertype, category, description) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare product insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Price, p.Brand, p.UserType, p.Category, p.Description); err != nil {
			return fmt.Errorf("insert product %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// ListProducts returns the catalog ordered by ID.
func (d *DB) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, price, brand, usertype, category, description FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Brand, &p.UserType, &p.Category, &p.Description); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProductByID returns one product. Missing yields errs.NotFound.
func (d *DB) ProductByID(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, price, brand, usertype, category, description FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Brand, &p.UserType, &p.Category, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "This product does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &p, nil
}

// ListBrands returns distinct brand names in catalog order of first appearance.
func (d *DB) ListBrands(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT brand FROM products GROUP BY brand ORDER BY MIN(id)`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Subscribe records a newsletter sign-up. Repeats are idempotent.
func (d *DB) Subscribe(ctx context.Context, email string) error {
	_, err := d.db.ExecContext(ctx, `INSERT OR IGNORE INTO subscriptions (email, created_at) VALUES (?, ?)`,
		strings.TrimSpace(email), d.now().Unix())
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// IsSubscribed reports whether email is on the newsletter list.
func (d *DB) IsSubscribed(ctx context.Context, email string) (bool, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions WHERE email = ?`, strings.TrimSpace(email)).Scan(&n); err != nil {
		return false, fmt.Errorf("count subscriptions: %w", err)
	}
	return n > 0, nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	var newsletter, optin int
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Title, &a.BirthDay, &a.BirthMonth, &a.BirthYear,
		&newsletter, &optin, &a.FirstName, &a.LastName, &a.Company, &a.Address1, &a.Address2, &a.Country,
		&a.State, &a.City, &a.Zipcode, &a.MobileNumber, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "Account not found with this email, try another email!")
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Newsletter = newsletter != 0
	a.Optin = optin != 0
	return &a, nil
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteCommonParams() string {
	// WAL + NORMAL provides good throughput while preserving safety.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}
