package access

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := OpenTable(filepath.Join(t.TempDir(), "access.db"))
	if err != nil {
		t.Fatalf("OpenTable: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func TestTableDefaultsAllowed(t *testing.T) {
	tbl := openTestTable(t)
	if ok, err := tbl.IsReadable("a.txt", nil); err != nil || !ok {
		t.Fatalf("IsReadable default = %v, %v, want true, nil", ok, err)
	}
	if ok, err := tbl.IsWritable("a.txt", nil); err != nil || !ok {
		t.Fatalf("IsWritable default = %v, %v, want true, nil", ok, err)
	}
}

func TestTableExplicitDenyPersists(t *testing.T) {
	tbl := openTestTable(t)
	if err := tbl.SetWritability("a.txt", Denied); err != nil {
		t.Fatal(err)
	}
	if ok, err := tbl.IsWritable("a.txt", nil); err != nil || ok {
		t.Fatalf("IsWritable after deny = %v, %v, want false, nil", ok, err)
	}
	// readability is independent of writability
	if ok, err := tbl.IsReadable("a.txt", nil); err != nil || !ok {
		t.Fatalf("IsReadable should be unaffected, got %v, %v", ok, err)
	}
}

func TestTableMakeExplicitWritesBack(t *testing.T) {
	tbl := openTestTable(t)
	denied := Denied
	if ok, err := tbl.IsWritable("a.txt", &denied); err != nil || ok {
		t.Fatalf("IsWritable with explicit deny = %v, %v, want false, nil", ok, err)
	}
	w, err := tbl.Writability("a.txt")
	if err != nil || w != Denied {
		t.Fatalf("Writability after make_explicit = %v, %v, want Denied", w, err)
	}
}

func TestControllerModeUploadNeverWritable(t *testing.T) {
	dir := t.TempDir()
	c, err := NewController("repo", dir, ModeUpload, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Writable("a.txt"); err != nil || ok {
		t.Fatalf("Writable in upload mode = %v, %v, want false, nil", ok, err)
	}
}

func TestControllerModeDownloadNeverReadable(t *testing.T) {
	dir := t.TempDir()
	c, err := NewController("repo", dir, ModeDownload, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Readable([]string{"a.txt", "b.txt"})
	if err != nil || len(got) != 0 {
		t.Fatalf("Readable in download mode = %v, %v, want empty", got, err)
	}
}

func TestControllerConservativeProtectsExistingFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl := openTestTable(t)
	c, err := NewController("repo", dir, ModeConservative, tbl)
	if err != nil {
		t.Fatal(err)
	}

	if _, ok, err := c.Writable("a.txt"); err != nil || ok {
		t.Fatalf("Writable on existing file under conservative mode = %v, %v, want false", ok, err)
	}
	if err := c.ConfirmPull("a.txt"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Writable("a.txt"); err != nil || !ok {
		t.Fatalf("Writable after ConfirmPull = %v, %v, want true", ok, err)
	}
	if err := c.ConfirmPush("a.txt"); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Writable("a.txt"); err != nil || ok {
		t.Fatalf("Writable after ConfirmPush = %v, %v, want false", ok, err)
	}
}

func TestAccessorDeletePermittedOnlyInDownloadMode(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	shared, err := NewController("repo", dir, ModeShared, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := shared.Accessor("a.txt").Delete(); err == nil {
		t.Fatalf("Delete under shared mode should be denied")
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("file should still exist: %v", err)
	}

	download, err := NewController("repo", dir, ModeDownload, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := download.Accessor("a.txt").Delete(); err != nil {
		t.Fatalf("Delete under download mode should succeed: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("file should be removed, stat err = %v", err)
	}
}

func TestListFilesSkipsDotfiles(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.txt", "sub/b.txt", ".hidden", ".hiddendir/c.txt"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	c, err := NewController("repo", dir, ModeShared, nil)
	if err != nil {
		t.Fatal(err)
	}
	files, err := c.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	found := map[string]bool{}
	for _, f := range files {
		found[filepath.ToSlash(f)] = true
	}
	if !found["a.txt"] || !found["sub/b.txt"] {
		t.Fatalf("ListFiles = %v, missing expected entries", files)
	}
	if found[".hidden"] || found[".hiddendir/c.txt"] {
		t.Fatalf("ListFiles = %v, dotfiles should be excluded", files)
	}
}
