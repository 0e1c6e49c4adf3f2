package filesystem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"greenpt/internal/domain/entity"
)

// PathTraversalError — запрошенный путь выходит за пределы корня сборки.
type PathTraversalError struct {
	Requested string
	Root      string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("cannot write %q outside of %q: check build plan inputs", e.Requested, e.Root)
}

// FileWriteError — ошибка записи одного файла.
type FileWriteError struct {
	Path string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("failed to write file %s: %v", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error {
	return e.Err
}

// Workspace управляет директориями сгенерированных проектов под одним корнем.
type Workspace struct {
	basePath string
}

func NewWorkspace(basePath string) (Workspace, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0755); mkErr != nil {
			return Workspace{}, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return Workspace{}, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return Workspace{}, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return Workspace{
		basePath: basePath,
	}, nil
}

func (w *Workspace) BasePath() string {
	return w.basePath
}

// CreateProjectDir создаёт уникальную директорию сборки <slug>-<timestamp>.
// Директория принадлежит одной сборке и никогда не переиспользуется.
func (w *Workspace) CreateProjectDir(slug string) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	name := fmt.Sprintf("%s-%s", slug, stamp)

	// os.Mkdir падает на существующей директории — так ловим коллизии
	// при нескольких сборках за одну секунду.
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", name, i+1)
		}
		dir := filepath.Join(w.basePath, candidate)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create project directory: %w", err)
		}
	}
}

// SafeJoin разрешает относительный путь внутри root. Абсолютные пути из плана
// трактуются как относительные; результат обязан лежать строго под root.
// Чистая функция, без I/O — вызывается до любой записи.
func SafeJoin(root, requested string) (string, error) {
	cleanRoot := filepath.Clean(root)

	rel := strings.TrimLeft(filepath.ToSlash(requested), "/")
	joined := filepath.Clean(filepath.Join(cleanRoot, filepath.FromSlash(rel)))

	if !strings.HasPrefix(joined, cleanRoot+string(filepath.Separator)) {
		return "", &PathTraversalError{Requested: requested, Root: root}
	}
	return joined, nil
}

// WriteFile пишет содержимое файла атомарно: временный файл + rename,
// чтобы после сбоя не оставалось частичных записей.
func (w *Workspace) WriteFile(root, requested string, content []byte) (string, error) {
	target, err := SafeJoin(root, requested)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &FileWriteError{Path: requested, Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".greenpt-*")
	if err != nil {
		return "", &FileWriteError{Path: requested, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", &FileWriteError{Path: requested, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", &FileWriteError{Path: requested, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return "", &FileWriteError{Path: requested, Err: err}
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", &FileWriteError{Path: requested, Err: err}
	}
	return target, nil
}

// WriteMetadata сохраняет manifest сборки рядом с файлами.
func (w *Workspace) WriteMetadata(root string, build *entity.Build, outcomes []*entity.FileOutcome) error {
	metadata := map[string]interface{}{
		"build_id":    build.ID,
		"project":     build.ProjectSlug,
		"created_at":  time.Now().UTC(),
		"files_count": len(outcomes),
		"files":       outcomes,
	}

	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(root, "metadata.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// RemoveProjectDir удаляет директорию сборки; путь обязан лежать под корнем workspace.
func (w *Workspace) RemoveProjectDir(dir string) error {
	cleanBase := filepath.Clean(w.basePath)
	cleanDir := filepath.Clean(dir)
	if !strings.HasPrefix(cleanDir, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s: outside workspace %s", dir, w.basePath)
	}
	if err := os.RemoveAll(cleanDir); err != nil {
		return fmt.Errorf("failed to delete project directory: %w", err)
	}
	return nil
}
