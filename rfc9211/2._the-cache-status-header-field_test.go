package rfc9211

import "testing"

func TestHitString(t *testing.T) {
	cs := CacheStatus{Cache: "textfetch", TimeToLive: 376}
	cs.Hit()
	if s := cs.String(); s != "textfetch; hit; ttl=376" {
		t.Fatalf("Cache-Status is %s", s)
	}
}

func TestForwardString(t *testing.T) {
	cs := CacheStatus{Cache: "textfetch", TimeToLive: -1}
	cs.Forward(FwdReasonUriMiss)
	cs.FwdStatus = 200
	cs.Stored = true
	if s := cs.String(); s != "textfetch; fwd=uri-miss; fwd-status=200; stored" {
		t.Fatalf("Cache-Status is %s", s)
	}
}
