package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveExplicitWins(t *testing.T) {
	dir := t.TempDir()
	got, err := Resolve(dir, "/nonexistent-root", "LATEST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != dir {
		t.Fatalf("got %s, want %s", got, dir)
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	if _, err := Resolve("/definitely/not/here", "", "LATEST"); err == nil {
		t.Fatalf("expected an error for a missing explicit path")
	}
}

func TestResolvePointerFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "2025-08-12_224310")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "LATEST"), []byte(target+"\n"), 0o644); err != nil {
		t.Fatalf("write pointer: %v", err)
	}

	got, err := Resolve("", root, "LATEST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != target {
		t.Fatalf("got %s, want %s", got, target)
	}
}

func TestResolveFallsBackToLastTimestampDir(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"2025-08-10_120000", "2025-08-12_224310", "2025-08-11_090000"} {
		if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	got, err := Resolve("", root, "LATEST")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(root, "2025-08-12_224310")
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveNoSnapshots(t *testing.T) {
	if _, err := Resolve("", t.TempDir(), "LATEST"); err == nil {
		t.Fatalf("expected an error when no snapshots exist")
	}
}

func TestListArchives(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"etc__pihole.tar.gz", "etc__caddy.tar.gz", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	set, err := ListArchives(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 2 || !set["etc__pihole.tar.gz"] || !set["etc__caddy.tar.gz"] {
		t.Fatalf("unexpected set: %v", set)
	}
}

func TestListArchivesMissingDir(t *testing.T) {
	set, err := ListArchives(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set)
	}
}
