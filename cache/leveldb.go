package cache

import (
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBCache keeps entries in a LevelDB database.
// Several caches can share one database, each under its own key namespace.
type LevelDBCache struct {
	db        *leveldb.DB
	namespace string
}

func NewLevelDBCache(db *leveldb.DB, namespace string) LevelDBCache {
	return LevelDBCache{db: db, namespace: namespace + "\x00"}
}

func (l LevelDBCache) dbKey(key string) []byte {
	return []byte(l.namespace + key)
}

func (l LevelDBCache) Get(key string) (CacheEntry, bool, error) {
	b, err := l.db.Get(l.dbKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}
	ce, err := decodeRecord(key, b)
	if err != nil {
		return CacheEntry{}, false, err
	}
	return ce, true, nil
}

func (l LevelDBCache) Put(ce CacheEntry) error {
	return l.db.Put(l.dbKey(ce.Key), encodeRecord(ce), nil)
}

func (l LevelDBCache) Purge(key string) error {
	return l.db.Delete(l.dbKey(key), nil)
}

func (l LevelDBCache) Has(key string) bool {
	ok, err := l.db.Has(l.dbKey(key), nil)
	return err == nil && ok
}

func (l LevelDBCache) AllKeys(prefix string, cb func(string)) {
	iter := l.db.NewIterator(util.BytesPrefix(l.dbKey(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		cb(string(iter.Key()[len(l.namespace):]))
	}
}
