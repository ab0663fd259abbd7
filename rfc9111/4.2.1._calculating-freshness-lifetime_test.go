package rfc9111

import (
	"testing"
	"time"
)

func TestExpirationWithoutMaxAge(t *testing.T) {
	if exp := GetExpiration(time.Now(), 0, false); !exp.IsZero() {
		t.Fatalf("Expiration is %s", exp)
	}
}

func TestFreshUntilExpiry(t *testing.T) {
	now := time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)
	exp := GetExpiration(now, 10*time.Second, true)
	if !IsFresh(now, exp) || !IsFresh(exp, exp) {
		t.Fatal("Entry should be fresh until its expiration instant")
	}
	if IsFresh(exp.Add(time.Nanosecond), exp) {
		t.Fatal("Entry should be stale after its expiration instant")
	}
	if !IsFresh(now.Add(time.Hour*24*365), time.Time{}) {
		t.Fatal("Entry without expiration should always be fresh")
	}
}

func TestTimeToLive(t *testing.T) {
	now := time.Now()
	if ttl := TimeToLive(now, now.Add(90*time.Second)); ttl != 90 {
		t.Fatalf("ttl is %d", ttl)
	}
	if ttl := TimeToLive(now, now.Add(-time.Second)); ttl != 0 {
		t.Fatalf("ttl is %d", ttl)
	}
	if ttl := TimeToLive(now, time.Time{}); ttl != -1 {
		t.Fatalf("ttl is %d", ttl)
	}
}
