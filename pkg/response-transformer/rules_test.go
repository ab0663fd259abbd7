package responsetransformer

import (
	"testing"

	"github.com/always-cache/textfetch/http1"
	"github.com/always-cache/textfetch/pkg/locator"
)

func response(headers map[string]string) *http1.Response {
	return &http1.Response{StatusCode: 200, Header: headers}
}

func TestDefaultOnlyWhenMissing(t *testing.T) {
	rules := Rules{{Prefix: "/", Default: "max-age=60"}}
	u := locator.MustParse("http://example.org/page")

	res := response(map[string]string{})
	if !rules.Apply(u, res) {
		t.Fatal("Rule did not match")
	}
	if res.Header["cache-control"] != "max-age=60" {
		t.Fatalf("Cache-Control is %q", res.Header["cache-control"])
	}

	res = response(map[string]string{"cache-control": "no-store"})
	rules.Apply(u, res)
	if res.Header["cache-control"] != "no-store" {
		t.Fatalf("Default replaced existing header: %q", res.Header["cache-control"])
	}
}

func TestOverride(t *testing.T) {
	rules := Rules{{Path: "/news", Override: "max-age=5"}}
	res := response(map[string]string{"cache-control": "no-store"})
	rules.Apply(locator.MustParse("https://example.org/news"), res)
	if res.Header["cache-control"] != "max-age=5" {
		t.Fatalf("Cache-Control is %q", res.Header["cache-control"])
	}
}

func TestFirstMatchingRuleWins(t *testing.T) {
	rules := Rules{
		{Prefix: "/static/", Override: "max-age=3600"},
		{Prefix: "/", Override: "max-age=1"},
	}
	res := response(nil)
	rules.Apply(locator.MustParse("http://example.org/static/app.css"), res)
	if res.Header["cache-control"] != "max-age=3600" {
		t.Fatalf("Cache-Control is %q", res.Header["cache-control"])
	}
}

func TestQueryMatching(t *testing.T) {
	rules := Rules{{Query: map[string]string{"page": "", "lang": "en"}, Override: "max-age=10"}}
	tests := map[string]bool{
		"http://example.org/list?page=2&lang=en": true,
		"http://example.org/list?lang=en":        false,
		"http://example.org/list?page=2&lang=fi": false,
		"http://example.org/list":                false,
	}
	for raw, matches := range tests {
		if got := rules.Apply(locator.MustParse(raw), response(nil)); got != matches {
			t.Fatalf("%s: matched %v", raw, got)
		}
	}
}

func TestPathIgnoresQuery(t *testing.T) {
	rules := Rules{{Path: "/search", Override: "no-store"}}
	if !rules.Apply(locator.MustParse("http://example.org/search?q=go"), response(nil)) {
		t.Fatal("Rule did not match path with query")
	}
	if rules.Apply(locator.MustParse("http://example.org/searching"), response(nil)) {
		t.Fatal("Path rule matched a different path")
	}
}
