package syncer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Locator maps file records onto the local upload root.
type Locator interface {
	// AbsPath returns the absolute path of a path relative to the root.
	AbsPath(rel string) string
	// RelPath returns the slash separated path of abs below the root.
	RelPath(abs string) (string, error)
}

// FSLocator resolves paths below a directory on the local filesystem.
type FSLocator struct {
	Root string
}

func (l FSLocator) AbsPath(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(strings.TrimLeft(rel, "/")))
}

func (l FSLocator) RelPath(abs string) (string, error) {
	root, err := filepath.Abs(l.Root)
	if err != nil {
		return "", err
	}
	if abs, err = filepath.Abs(abs); err != nil {
		return "", err
	}

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' is outside the upload root", abs)
	}
	return filepath.ToSlash(rel), nil
}
