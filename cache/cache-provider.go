package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// CacheProvider is an interface for a cache provider.
// It stores and retrieves []byte payloads, which are either response bodies
// or redirect targets, along with the expiration time of each entry.
// Providers never judge freshness: expired entries are returned like any other,
// the Store decides whether they may be used.
//
// Implementations must be thread-safe!
type CacheProvider interface {
	// Get returns the entry stored under the given key.
	// The boolean is false if there is no such entry.
	// If the stored payload does not match its checksum, ErrCorruptEntry is returned.
	Get(key string) (CacheEntry, bool, error)
	// Put stores the entry under its key, replacing any previous entry.
	Put(CacheEntry) error
	// Purge removes the cache entry for the given key.
	Purge(key string) error
	// Has checks if the specified key exists in the cache.
	Has(key string) bool
	// AllKeys calls the given callback for each key with the given prefix.
	AllKeys(prefix string, cb func(string))
}

// ErrCorruptEntry is returned by disk providers when a stored payload
// does not match the checksum written with it.
var ErrCorruptEntry = errors.New("cache entry checksum mismatch")

type CacheEntry struct {
	Key string
	// Zero means the entry never expires.
	Expires time.Time
	Payload []byte
}

func encodeExpires(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeExpires(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

type SQLiteCache struct {
	db         *sql.DB
	table      string
	writeMutex *sync.Mutex
}

// openSQLite opens the database with the given file name.
// If file name is empty, a private in-memory db is opened.
func openSQLite(filename string) (*sql.DB, error) {
	memory := filename == ""
	if memory {
		filename = ":memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, err
	}
	if memory {
		// every connection would get its own empty database otherwise
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteCache creates a cache in the given table of db, creating the table if needed.
func NewSQLiteCache(db *sql.DB, table string) (SQLiteCache, error) {
	_, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		expires INTEGER,
		checksum INTEGER,
		bytes BLOB
	)`, table))
	if err != nil {
		return SQLiteCache{}, err
	}
	return SQLiteCache{
		db:         db,
		table:      table,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteCache) Get(key string) (CacheEntry, bool, error) {
	var expires, sum int64
	var bytes []byte
	err := s.db.QueryRow(
		fmt.Sprintf("SELECT expires, checksum, bytes FROM %s WHERE key = ?", s.table), key,
	).Scan(&expires, &sum, &bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}
	if checksum(bytes) != uint64(sum) {
		return CacheEntry{}, false, ErrCorruptEntry
	}
	return CacheEntry{Key: key, Expires: decodeExpires(expires), Payload: bytes}, true, nil
}

func (s SQLiteCache) Put(ce CacheEntry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(
		fmt.Sprintf("INSERT OR REPLACE INTO %s (key, expires, checksum, bytes) VALUES (?, ?, ?, ?)", s.table),
		ce.Key, encodeExpires(ce.Expires), int64(checksum(ce.Payload)), ce.Payload)
	return err
}

func (s SQLiteCache) Purge(key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE key = ?", s.table), key)
	return err
}

func (s SQLiteCache) Has(key string) bool {
	var one int
	err := s.db.QueryRow(fmt.Sprintf("SELECT 1 FROM %s WHERE key = ?", s.table), key).Scan(&one)
	return err == nil
}

func (s SQLiteCache) AllKeys(prefix string, cb func(string)) {
	// keys compare bytewise, so all keys with the prefix directly follow the prefix itself
	rows, err := s.db.Query(fmt.Sprintf("SELECT key FROM %s WHERE key >= ? ORDER BY key", s.table), prefix)
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return
		}
		if !strings.HasPrefix(key, prefix) {
			return
		}
		cb(key)
	}
}
