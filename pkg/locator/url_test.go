package locator

import (
	"errors"
	"testing"

	"github.com/always-cache/textfetch/fetcherr"
)

func TestOriginDefaultPorts(t *testing.T) {
	tests := map[string]string{
		"http://example.org/index.html":  "http://example.org:80",
		"https://example.org/index.html": "https://example.org:443",
		"http://example.org:8080/a":      "http://example.org:8080",
		"https://example.org:8443":       "https://example.org:8443",
	}
	for raw, origin := range tests {
		u, err := Parse(raw)
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if got := u.Origin(); got != origin {
			t.Fatalf("origin of %s is %s, expected %s", raw, got, origin)
		}
	}
}

func TestHostWithoutPathGetsSlash(t *testing.T) {
	u := MustParse("http://example.org")
	if u.Path != "/" {
		t.Fatalf("path is %q", u.Path)
	}
	if u.Host != "example.org" || u.Port != 80 {
		t.Fatalf("host %q port %d", u.Host, u.Port)
	}
}

func TestPathIsKept(t *testing.T) {
	u := MustParse("https://example.org/a/b?c=d")
	if u.Path != "/a/b?c=d" {
		t.Fatalf("path is %q", u.Path)
	}
}

func TestViewSource(t *testing.T) {
	u := MustParse("view-source:http://example.org/")
	if !u.ViewSource {
		t.Fatal("view-source flag not set")
	}
	if u.Scheme != HTTP {
		t.Fatalf("scheme is %s", u.Scheme)
	}
	if s := u.String(); s != "view-source:http://example.org:80/" {
		t.Fatalf("string is %s", s)
	}
}

func TestDataURL(t *testing.T) {
	u := MustParse("data:text/html,Hello <b>world</b>")
	if u.Scheme != Data {
		t.Fatalf("scheme is %s", u.Scheme)
	}
	if u.Path != "text/html,Hello <b>world</b>" {
		t.Fatalf("path is %q", u.Path)
	}
	if u.Origin() != "" {
		t.Fatalf("data url has origin %q", u.Origin())
	}
}

func TestFileURL(t *testing.T) {
	u := MustParse("file:///tmp/index.html")
	if u.Scheme != File || u.Path != "/tmp/index.html" {
		t.Fatalf("parsed as %+v", u)
	}
	if u.IsNetwork() {
		t.Fatal("file url reported as network")
	}
}

func TestParseErrors(t *testing.T) {
	for _, raw := range []string{
		"ftp://example.org/",
		"example.org/index.html",
		"http:/example.org",
		"http://example.org:abc/",
		"http://example.org:70000/",
		"http:///path",
	} {
		_, err := Parse(raw)
		var perr *fetcherr.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("%s: expected ParseError, got %v", raw, err)
		}
	}
}

func TestResolveLocation(t *testing.T) {
	base := MustParse("view-source:https://example.org:8443/old")
	target, err := base.ResolveLocation("/new?x=1")
	if err != nil {
		t.Fatal(err)
	}
	if target.String() != "view-source:https://example.org:8443/new?x=1" {
		t.Fatalf("resolved to %s", target)
	}
	abs, err := base.ResolveLocation("http://other.example/")
	if err != nil {
		t.Fatal(err)
	}
	if abs.Origin() != "http://other.example:80" {
		t.Fatalf("resolved to %s", abs)
	}
}
