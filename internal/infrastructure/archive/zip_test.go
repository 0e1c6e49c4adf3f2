package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
}

func TestPackage(t *testing.T) {
	root := filepath.Join(t.TempDir(), "demo-20260101-120000")
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeTree(t, root, map[string]string{
		"README.md":      "# Demo",
		"backend/app.py": "print('hi')",
		"metadata.json":  "{}",
	})

	name, data, err := Package(root)
	if err != nil {
		t.Fatalf("Package: %v", err)
	}
	if name != "demo-20260101-120000.zip" {
		t.Errorf("name = %q", name)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("entries = %d, want 3", len(zr.File))
	}

	// Записи отсортированы и используют POSIX-разделители.
	wantOrder := []string{"README.md", "backend/app.py", "metadata.json"}
	for i, f := range zr.File {
		if f.Name != wantOrder[i] {
			t.Errorf("entry %d = %q, want %q", i, f.Name, wantOrder[i])
		}
	}

	rc, err := zr.File[1].Open()
	if err != nil {
		t.Fatalf("Open entry: %v", err)
	}
	content, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(content) != "print('hi')" {
		t.Errorf("entry content = %q", content)
	}
}

func TestPackageDeterministic(t *testing.T) {
	root := filepath.Join(t.TempDir(), "demo")
	if err := os.Mkdir(root, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeTree(t, root, map[string]string{
		"a.txt":     "one",
		"dir/b.txt": "two",
	})

	_, first, err := Package(root)
	if err != nil {
		t.Fatalf("first Package: %v", err)
	}
	_, second, err := Package(root)
	if err != nil {
		t.Fatalf("second Package: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("archives of an unchanged directory must be byte-identical")
	}
}

func TestPackageMissingRoot(t *testing.T) {
	_, _, err := Package(filepath.Join(t.TempDir(), "gone"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
	var archiveErr *ArchiveError
	if !errors.As(err, &archiveErr) {
		t.Fatalf("error type = %T, want *ArchiveError", err)
	}
}

func TestPackageRootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, _, err := Package(path)
	if err == nil {
		t.Fatal("expected error for non-directory root")
	}
	var archiveErr *ArchiveError
	if !errors.As(err, &archiveErr) {
		t.Fatalf("error type = %T, want *ArchiveError", err)
	}
}
