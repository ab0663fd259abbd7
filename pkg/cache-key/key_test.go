package cachekey

import (
	"strings"
	"testing"

	"github.com/always-cache/textfetch/pkg/locator"
)

func TestURLFromKey(t *testing.T) {
	u := locator.MustParse("http://dev.localhost/page")
	key := Get(u)
	if key != "http://dev.localhost:80/page" {
		t.Fatalf("key is %s", key)
	}
	back, err := URL(key)
	if err != nil {
		t.Fatalf("%s: %s", key, err)
	}
	if back != u {
		t.Fatalf("Recovered url for key %s is %s", key, back)
	}
}

func TestOriginPrefixMatchesKeys(t *testing.T) {
	u := locator.MustParse("https://example.org/a/b")
	if !strings.HasPrefix(Get(u), OriginPrefix(u.Origin())) {
		t.Fatalf("key %s does not start with %s", Get(u), OriginPrefix(u.Origin()))
	}
	other := locator.MustParse("https://example.org:4443/a/b")
	if strings.HasPrefix(Get(other), OriginPrefix(u.Origin())) {
		t.Fatalf("key %s matches foreign origin prefix", Get(other))
	}
}

func TestURLFromKeyRejectsLocal(t *testing.T) {
	if _, err := URL("data:text/plain,hi"); err == nil {
		t.Fatal("expected error for data key")
	}
}
