package datadir

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestShouldOffload(t *testing.T) {
	if ShouldOffload([]byte("small"), 0) {
		t.Fatalf("threshold <= 0 must never offload")
	}
	if ShouldOffload([]byte("small"), 10) {
		t.Fatalf("content under threshold must not offload")
	}
	if !ShouldOffload(bytes.Repeat([]byte("x"), 11), 10) {
		t.Fatalf("content over threshold must offload")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts := time.Unix(1700000000, 0)
	content := []byte("archived page body")

	marker, err := Save(dir, "site", "main", 42, ts, content)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rel, ok := Marker([]byte(marker))
	if !ok {
		t.Fatalf("expected Save's return value to be recognized as a marker")
	}

	got, err := Load(dir, rel)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("expected round-tripped content %q, got %q", content, got)
	}
}

func TestMarkerRejectsPlainContent(t *testing.T) {
	if _, ok := Marker([]byte("<html>not a marker</html>")); ok {
		t.Fatalf("expected plain content to not be recognized as a marker")
	}
}

func TestSaveSeparatesFilesByCrawlTime(t *testing.T) {
	dir := t.TempDir()
	first, err := Save(dir, "site", "main", 1, time.Unix(1, 0), []byte("first"))
	if err != nil {
		t.Fatalf("Save first: %v", err)
	}
	second, err := Save(dir, "site", "main", 1, time.Unix(2, 0), []byte("second"))
	if err != nil {
		t.Fatalf("Save second: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct markers for distinct crawl times")
	}

	relFirst, _ := Marker([]byte(first))
	relSecond, _ := Marker([]byte(second))
	gotFirst, err := Load(dir, relFirst)
	if err != nil {
		t.Fatalf("Load first: %v", err)
	}
	gotSecond, err := Load(dir, relSecond)
	if err != nil {
		t.Fatalf("Load second: %v", err)
	}
	if string(gotFirst) != "first" || string(gotSecond) != "second" {
		t.Fatalf("expected independently readable files, got %q and %q", gotFirst, gotSecond)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	marker, err := Save(dir, "site", "main", 7, time.Unix(3, 0), []byte("gone soon"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	rel, _ := Marker([]byte(marker))

	if err := Delete(dir, rel); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, rel)); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed")
	}
	if err := Delete(dir, rel); err != nil {
		t.Fatalf("Delete on an already-removed file must not error: %v", err)
	}
}
