// Package localpath maps '/'-delimited object names onto a local download root.
package localpath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"b2downloader/internal/models"
)

const dirPerm = 0o755

// Resolve returns the local file path for name under root and makes sure its
// parent directory exists. Names that contain ".." segments, are empty, or
// would land outside root fail with models.ErrPathTraversal.
func Resolve(root, name string) (string, error) {
	target, err := targetPath(root, strings.TrimSuffix(name, "/"), name)
	if err != nil {
		return "", err
	}
	if err := ensureDir(filepath.Dir(target)); err != nil {
		return "", err
	}
	return target, nil
}

// ResolveDir is Resolve for directory marker objects ("photos/2024/"): the
// directory itself is created.
func ResolveDir(root, name string) (string, error) {
	target, err := targetPath(root, strings.TrimSuffix(name, "/"), name)
	if err != nil {
		return "", err
	}
	if err := ensureDir(target); err != nil {
		return "", err
	}
	return target, nil
}

func targetPath(root, cleanName, original string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve download root %s: %w", root, err)
	}

	segments := strings.Split(cleanName, "/")
	for _, seg := range segments {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", models.ErrPathTraversal, original)
		}
	}

	target := filepath.Join(append([]string{absRoot}, segments...)...)
	rel, err := filepath.Rel(absRoot, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", models.ErrPathTraversal, original)
	}
	return target, nil
}

// ensureDir creates dir and its parents. A directory that already exists,
// including one created concurrently, is not an error.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		if info, statErr := os.Stat(dir); statErr == nil && info.IsDir() {
			return nil
		}
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
