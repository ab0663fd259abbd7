package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/always-cache/textfetch/rfc9111"
)

const (
	responsesName = "responses"
	redirectsName = "redirects"
)

// Kind selects one of the two mappings of a Store.
type Kind string

const (
	// Response entries hold the body of a 200 or 404 response.
	Response Kind = "response"
	// Redirect entries hold the absolute target of a 301 response.
	Redirect Kind = "redirect"
)

// Lookup is the outcome of reading one key.
type Lookup struct {
	Entry CacheEntry
	// Found is true if an entry exists, whether or not it is still fresh.
	Found bool
	// Fresh is true if the entry may be used.
	Fresh bool
}

// Store is the pair of caches used by a session: stored responses and
// permanent redirects, both keyed by origin + path.
// Expired entries are reported as stale misses and left in place.
type Store struct {
	responses CacheProvider
	redirects CacheProvider
	close     func() error
}

func NewStore(responses, redirects CacheProvider) *Store {
	return &Store{
		responses: responses,
		redirects: redirects,
		close:     func() error { return nil },
	}
}

// NewMemoryStore creates a store that lives as long as the process.
func NewMemoryStore() *Store {
	return NewStore(NewMemCache(), NewMemCache())
}

// OpenSQLiteStore opens (or creates) a store in the given SQLite file.
// An empty file name gives a private in-memory database.
func OpenSQLiteStore(filename string) (*Store, error) {
	db, err := openSQLite(filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", filename, err)
	}
	responses, err := NewSQLiteCache(db, responsesName)
	if err != nil {
		db.Close()
		return nil, err
	}
	redirects, err := NewSQLiteCache(db, redirectsName)
	if err != nil {
		db.Close()
		return nil, err
	}
	s := NewStore(responses, redirects)
	s.close = db.Close
	return s, nil
}

// OpenLevelDBStore opens (or creates) a store in the given LevelDB directory.
func OpenLevelDBStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	s := NewStore(NewLevelDBCache(db, responsesName), NewLevelDBCache(db, redirectsName))
	s.close = db.Close
	return s, nil
}

func (s *Store) provider(kind Kind) CacheProvider {
	if kind == Redirect {
		return s.redirects
	}
	return s.responses
}

// Lookup reads the entry for key from the given mapping and judges its freshness at `now`.
// A corrupted entry is purged and reported as a miss together with ErrCorruptEntry.
func (s *Store) Lookup(kind Kind, key string, now time.Time) (Lookup, error) {
	p := s.provider(kind)
	entry, found, err := p.Get(key)
	if errors.Is(err, ErrCorruptEntry) {
		if purgeErr := p.Purge(key); purgeErr != nil {
			return Lookup{}, fmt.Errorf("%w (purge failed: %v)", err, purgeErr)
		}
		return Lookup{}, err
	}
	if err != nil || !found {
		return Lookup{}, err
	}
	return Lookup{
		Entry: entry,
		Found: true,
		Fresh: rfc9111.IsFresh(now, entry.Expires),
	}, nil
}

// Put stores an entry in the given mapping.
func (s *Store) Put(kind Kind, entry CacheEntry) error {
	return s.provider(kind).Put(entry)
}

func (s *Store) LookupResponse(key string, now time.Time) (Lookup, error) {
	return s.Lookup(Response, key, now)
}

func (s *Store) StoreResponse(key string, expires time.Time, body []byte) error {
	return s.Put(Response, CacheEntry{Key: key, Expires: expires, Payload: body})
}

func (s *Store) LookupRedirect(key string, now time.Time) (Lookup, error) {
	return s.Lookup(Redirect, key, now)
}

func (s *Store) StoreRedirect(key string, expires time.Time, target string) error {
	return s.Put(Redirect, CacheEntry{Key: key, Expires: expires, Payload: []byte(target)})
}

// Purge removes key from both mappings.
func (s *Store) Purge(key string) error {
	if err := s.responses.Purge(key); err != nil {
		return err
	}
	return s.redirects.Purge(key)
}

// Keys calls cb for every key of the given mapping that starts with prefix.
func (s *Store) Keys(kind Kind, prefix string, cb func(string)) {
	s.provider(kind).AllKeys(prefix, cb)
}

// Close releases the underlying database, if any.
func (s *Store) Close() error {
	return s.close()
}

// Sweep removes the entries of both mappings that are no longer fresh at `now`,
// as well as corrupted ones. It returns the number of entries removed.
func (s *Store) Sweep(now time.Time) (int, error) {
	removed := 0
	for _, p := range []CacheProvider{s.responses, s.redirects} {
		var keys []string
		p.AllKeys("", func(key string) { keys = append(keys, key) })
		for _, key := range keys {
			entry, found, err := p.Get(key)
			if err != nil && !errors.Is(err, ErrCorruptEntry) {
				return removed, err
			}
			if err == nil && (!found || rfc9111.IsFresh(now, entry.Expires)) {
				continue
			}
			if err := p.Purge(key); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
