package local

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/always-cache/textfetch/fetcherr"
)

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte("<p>Hi</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	b, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "<p>Hi</p>" {
		t.Fatalf("Read %q", b)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.html"))
	var ioerr *fetcherr.IOError
	if !errors.As(err, &ioerr) {
		t.Fatalf("Expected IOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Cause not kept: %v", err)
	}
}

func TestReadDefaultFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test.html"), []byte("default"), 0644); err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	b, err := ReadFile("")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "default" {
		t.Fatalf("Read %q", b)
	}
}

func TestDecodeData(t *testing.T) {
	tests := map[string]string{
		"text/html,Hello <b>world</b>": "Hello <b>world</b>",
		",plain":                       "plain",
		"text/plain,a,b":               "a,b",
		"text/plain,":                  "",
	}
	for payload, expected := range tests {
		text, err := DecodeData(payload)
		if err != nil {
			t.Fatalf("%s: %v", payload, err)
		}
		if text != expected {
			t.Fatalf("%s: decoded %q", payload, text)
		}
	}
}

func TestDecodeDataWithoutComma(t *testing.T) {
	_, err := DecodeData("text/plain")
	var perr *fetcherr.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
}
