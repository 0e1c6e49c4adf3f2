// Package archive пакует директорию сборки в zip для скачивания.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"greenpt/internal/infrastructure/metrics"
)

// ArchiveError — директория сборки отсутствует или нечитаема. Не ретраится.
type ArchiveError struct {
	Root string
	Err  error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("cannot archive %s: %v", e.Root, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// zipEpoch — фиксированное время модификации записей. Вместе с лексикографическим
// порядком это даёт байт-в-байт одинаковый архив для неизменной директории,
// чтобы повторное скачивание было идемпотентным.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Package собирает все обычные файлы под root в один zip.
// Возвращает имя архива (<basename root>.zip) и его содержимое.
func Package(root string) (string, []byte, error) {
	info, err := os.Stat(root)
	if err != nil {
		return "", nil, &ArchiveError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return "", nil, &ArchiveError{Root: root, Err: fmt.Errorf("not a directory")}
	}

	var relPaths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPaths = append(relPaths, rel)
		return nil
	})
	if err != nil {
		return "", nil, &ArchiveError{Root: root, Err: err}
	}
	sort.Strings(relPaths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, rel := range relPaths {
		if err := addFile(zw, root, rel); err != nil {
			_ = zw.Close()
			return "", nil, &ArchiveError{Root: root, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return "", nil, &ArchiveError{Root: root, Err: err}
	}

	metrics.IncArchiveBuilt()
	return filepath.Base(root) + ".zip", buf.Bytes(), nil
}

func addFile(zw *zip.Writer, root, rel string) error {
	f, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	header := &zip.FileHeader{
		Name:     filepath.ToSlash(rel),
		Method:   zip.Deflate,
		Modified: zipEpoch,
	}
	header.SetMode(0644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
