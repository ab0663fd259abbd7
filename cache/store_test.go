package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

func openStores(t *testing.T) map[string]*Store {
	sqliteStore, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Could not open sqlite store: %v", err)
	}
	levelStore, err := OpenLevelDBStore(filepath.Join(t.TempDir(), "leveldb"))
	if err != nil {
		t.Fatalf("Could not open leveldb store: %v", err)
	}
	memorySQLite, err := OpenSQLiteStore("")
	if err != nil {
		t.Fatalf("Could not open in-memory sqlite store: %v", err)
	}
	stores := map[string]*Store{
		"memory":        NewMemoryStore(),
		"sqlite":        sqliteStore,
		"sqlite-memory": memorySQLite,
		"leveldb":       levelStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreRoundTrip(t *testing.T) {
	now := time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range openStores(t) {
		key := "http://example.org:80/page"
		if err := s.StoreResponse(key, now.Add(time.Minute), []byte("Hello world")); err != nil {
			t.Fatalf("%s: Could not write to cache: %v", name, err)
		}
		l, err := s.LookupResponse(key, now)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !l.Found || !l.Fresh {
			t.Fatalf("%s: lookup is %+v", name, l)
		}
		if string(l.Entry.Payload) != "Hello world" {
			t.Fatalf("%s: payload is %s", name, l.Entry.Payload)
		}
		if !l.Entry.Expires.Equal(now.Add(time.Minute)) {
			t.Fatalf("%s: expires is %s", name, l.Entry.Expires)
		}
	}
}

func TestPayloadIsNotShared(t *testing.T) {
	now := time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range openStores(t) {
		key := "http://example.org:80/shared"
		payload := []byte("hello")
		if err := s.StoreResponse(key, now.Add(time.Minute), payload); err != nil {
			t.Fatalf("%s: Could not write to cache: %v", name, err)
		}
		payload[0] = 'J'
		l, err := s.LookupResponse(key, now)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		l.Entry.Payload[1] = 'E'
		l, err = s.LookupResponse(key, now)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if string(l.Entry.Payload) != "hello" {
			t.Fatalf("%s: payload is %s", name, l.Entry.Payload)
		}
	}
}

func TestMappingsAreIndependent(t *testing.T) {
	now := time.Now()
	for name, s := range openStores(t) {
		key := "http://example.org:80/moved"
		if err := s.StoreRedirect(key, time.Time{}, "http://example.org:80/new"); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if l, _ := s.LookupResponse(key, now); l.Found {
			t.Fatalf("%s: redirect visible in response mapping", name)
		}
		l, err := s.LookupRedirect(key, now)
		if err != nil || !l.Fresh {
			t.Fatalf("%s: lookup %+v, %v", name, l, err)
		}
		if string(l.Entry.Payload) != "http://example.org:80/new" {
			t.Fatalf("%s: target is %s", name, l.Entry.Payload)
		}
		if !l.Entry.Expires.IsZero() {
			t.Fatalf("%s: entry should never expire, expires %s", name, l.Entry.Expires)
		}
	}
}

func TestExpiredEntryIsKept(t *testing.T) {
	now := time.Now()
	for name, s := range openStores(t) {
		key := "https://example.org:443/"
		if err := s.StoreResponse(key, now, []byte("old")); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		l, err := s.LookupResponse(key, now.Add(time.Second))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !l.Found || l.Fresh {
			t.Fatalf("%s: expected stale entry, got %+v", name, l)
		}
		// still there on a second look
		if l, _ := s.LookupResponse(key, now.Add(time.Hour)); !l.Found {
			t.Fatalf("%s: expired entry was removed", name)
		}
	}
}

func TestMiss(t *testing.T) {
	for name, s := range openStores(t) {
		l, err := s.LookupResponse("http://nothing.here:80/", time.Now())
		if err != nil || l.Found {
			t.Fatalf("%s: lookup %+v, %v", name, l, err)
		}
	}
}

func TestKeysByPrefix(t *testing.T) {
	for name, s := range openStores(t) {
		s.StoreResponse("http://a.example:80/1", time.Time{}, nil)
		s.StoreResponse("http://a.example:80/2", time.Time{}, nil)
		s.StoreResponse("http://b.example:80/1", time.Time{}, nil)
		var keys []string
		s.Keys(Response, "http://a.example:80/", func(k string) { keys = append(keys, k) })
		if len(keys) != 2 {
			t.Fatalf("%s: keys are %v", name, keys)
		}
	}
}

func TestPurge(t *testing.T) {
	for name, s := range openStores(t) {
		key := "http://example.org:80/x"
		s.StoreResponse(key, time.Time{}, []byte("x"))
		s.StoreRedirect(key, time.Time{}, "http://example.org:80/y")
		if err := s.Purge(key); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if s.responses.Has(key) || s.redirects.Has(key) {
			t.Fatalf("%s: key still present after purge", name)
		}
	}
}

func TestCorruptLevelDBEntryIsPurged(t *testing.T) {
	db, err := leveldb.OpenFile(filepath.Join(t.TempDir(), "leveldb"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	responses := NewLevelDBCache(db, responsesName)
	s := NewStore(responses, NewLevelDBCache(db, redirectsName))

	key := "http://example.org:80/"
	s.StoreResponse(key, time.Time{}, []byte("Hello world"))
	record, _ := db.Get(responses.dbKey(key), nil)
	record[len(record)-1] ^= 0xff
	db.Put(responses.dbKey(key), record, nil)

	l, err := s.LookupResponse(key, time.Now())
	if !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("Expected corrupt entry error, got %v", err)
	}
	if l.Found {
		t.Fatal("Corrupt entry reported as found")
	}
	if responses.Has(key) {
		t.Fatal("Corrupt entry was not purged")
	}
}

func TestCorruptSQLiteEntryIsPurged(t *testing.T) {
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	key := "http://example.org:80/"
	s.StoreResponse(key, time.Time{}, []byte("Hello world"))
	sq := s.responses.(SQLiteCache)
	if _, err := sq.db.Exec("UPDATE responses SET bytes = ? WHERE key = ?", []byte("Tampered"), key); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LookupResponse(key, time.Now()); !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("Expected corrupt entry error, got %v", err)
	}
	if sq.Has(key) {
		t.Fatal("Corrupt entry was not purged")
	}
}

func TestSweep(t *testing.T) {
	now := time.Now()
	for name, s := range openStores(t) {
		s.StoreResponse("http://example.org:80/old", now.Add(-time.Second), []byte("old"))
		s.StoreResponse("http://example.org:80/new", now.Add(time.Minute), []byte("new"))
		s.StoreResponse("http://example.org:80/forever", time.Time{}, []byte("forever"))
		s.StoreRedirect("http://example.org:80/moved", now.Add(-time.Minute), "http://example.org:80/new")

		removed, err := s.Sweep(now)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if removed != 2 {
			t.Fatalf("%s: removed %d entries", name, removed)
		}
		if s.responses.Has("http://example.org:80/old") || s.redirects.Has("http://example.org:80/moved") {
			t.Fatalf("%s: expired entries left", name)
		}
		if !s.responses.Has("http://example.org:80/new") || !s.responses.Has("http://example.org:80/forever") {
			t.Fatalf("%s: fresh entries removed", name)
		}
	}
}
