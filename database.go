package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// AccountRow represents an account record in the database
type AccountRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// ChatEntry is one persisted chat line
type ChatEntry struct {
	AccountID int64
	Username  string
	Team      string
	Message   string
	CreatedAt time.Time
}

// sqlitePragmas are applied by the driver to every pooled connection
const sqlitePragmas = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+sqlitePragmas)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS purchases (
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		item_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id, item_id)
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER,
		username TEXT NOT NULL,
		team TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_messages(created_at);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateAccount creates a new account (returns account ID)
func (db *DB) CreateAccount(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO accounts (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const accountColumns = "id, username, pass_hash, created_at"

// scanAccount reads one account row, nil if there is none
func scanAccount(row *sql.Row) (*AccountRow, error) {
	a := &AccountRow{}
	err := row.Scan(&a.ID, &a.Username, &a.PassHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

// GetAccountByUsername returns an account by username, nil if none
func (db *DB) GetAccountByUsername(username string) (*AccountRow, error) {
	return scanAccount(db.conn.QueryRow("SELECT "+accountColumns+" FROM accounts WHERE username = ?", username))
}

// GetAccountByID returns an account by ID, nil if none
func (db *DB) GetAccountByID(id int64) (*AccountRow, error) {
	return scanAccount(db.conn.QueryRow("SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM accounts WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// UpdatePassword replaces an account's password hash
func (db *DB) UpdatePassword(id int64, passHash string) error {
	_, err := db.conn.Exec("UPDATE accounts SET pass_hash = ? WHERE id = ?", passHash, id)
	return err
}

// AddPurchase records an item for an account. Returns false if it was
// already owned.
func (db *DB) AddPurchase(accountID int64, itemID string) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT OR IGNORE INTO purchases (account_id, item_id) VALUES (?, ?)",
		accountID, itemID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PurchasedItems returns the item ids owned by an account, oldest first
func (db *DB) PurchasedItems(accountID int64) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT item_id FROM purchases WHERE account_id = ? ORDER BY created_at, item_id",
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

// InsertChatBatch writes chat lines in one transaction
func (db *DB) InsertChatBatch(entries []ChatEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO chat_messages (account_id, username, team, message, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		aid := sql.NullInt64{Int64: e.AccountID, Valid: e.AccountID > 0}
		if _, err := stmt.Exec(aid, e.Username, e.Team, e.Message, e.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentChat returns up to limit latest chat lines, oldest first
func (db *DB) RecentChat(limit int) ([]ChatEntry, error) {
	rows, err := db.conn.Query(`
		SELECT account_id, username, team, message, created_at FROM (
			SELECT id, account_id, username, team, message, created_at FROM chat_messages
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ChatEntry
	for rows.Next() {
		var e ChatEntry
		var aid sql.NullInt64
		var created string
		if err := rows.Scan(&aid, &e.Username, &e.Team, &e.Message, &created); err != nil {
			return nil, err
		}
		e.AccountID = aid.Int64
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		result = append(result, e)
	}
	return result, rows.Err()
}

// GetSetting returns a setting value, "" if unset
func (db *DB) GetSetting(key string) string {
	var v string
	if err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v); err != nil {
		return ""
	}
	return v
}

// SetSetting stores a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}
