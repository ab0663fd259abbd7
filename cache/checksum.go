package cache

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
)

func checksum(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

const recordHeaderSize = 16

// encodeRecord lays out an entry as expires (8 bytes), checksum (8 bytes), payload.
func encodeRecord(ce CacheEntry) []byte {
	b := make([]byte, recordHeaderSize+len(ce.Payload))
	binary.BigEndian.PutUint64(b[0:8], uint64(encodeExpires(ce.Expires)))
	binary.BigEndian.PutUint64(b[8:16], checksum(ce.Payload))
	copy(b[recordHeaderSize:], ce.Payload)
	return b
}

func decodeRecord(key string, b []byte) (CacheEntry, error) {
	if len(b) < recordHeaderSize {
		return CacheEntry{}, ErrCorruptEntry
	}
	payload := make([]byte, len(b)-recordHeaderSize)
	copy(payload, b[recordHeaderSize:])
	if checksum(payload) != binary.BigEndian.Uint64(b[8:16]) {
		return CacheEntry{}, ErrCorruptEntry
	}
	return CacheEntry{
		Key:     key,
		Expires: decodeExpires(int64(binary.BigEndian.Uint64(b[0:8]))),
		Payload: payload,
	}, nil
}
