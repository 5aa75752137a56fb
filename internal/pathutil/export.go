// Package pathutil confines files written on behalf of MCP clients to the
// project's export locations.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ExportExt is the only extension schedule exports may use.
const ExportExt = ".jsonl"

// ErrOutsideExportDirs is returned for a destination outside every export
// directory once symlinks are resolved.
var ErrOutsideExportDirs = errors.New("outside the export directories")

// Confinement lists where exports may be written.
type Confinement struct {
	Root string   // relative destinations are joined to Root
	Dirs []string // absolute export directories
	Exts []string // allowed extensions, lowercase
}

// ExportConfinement allows JSONL files under <root>/.stimseq/exports and,
// when set, dataDir.
func ExportConfinement(root, dataDir string) Confinement {
	c := Confinement{
		Root: root,
		Dirs: []string{filepath.Join(root, ".stimseq", "exports")},
		Exts: []string{ExportExt},
	}
	if dataDir != "" {
		c.Dirs = append(c.Dirs, dataDir)
	}
	return c
}

// Resolve returns the symlink-resolved absolute destination for dest, or an
// error if it is not a file with an allowed extension inside one of c.Dirs.
// dest need not exist yet.
func (c Confinement) Resolve(dest string) (string, error) {
	if dest == "" {
		return "", errors.New("export path is empty")
	}
	if strings.ContainsRune(dest, 0) {
		return "", errors.New("export path contains a null byte")
	}
	if !slices.Contains(c.Exts, strings.ToLower(filepath.Ext(dest))) {
		return "", fmt.Errorf("export path %s: extension must be one of %v", Redact(dest), c.Exts)
	}

	if !filepath.IsAbs(dest) {
		dest = filepath.Join(c.Root, dest)
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("export path %s: %w", Redact(dest), err)
	}
	resolved, err := evalExisting(abs)
	if err != nil {
		return "", fmt.Errorf("export path %s: %w", Redact(dest), err)
	}

	for _, dir := range c.Dirs {
		dirAbs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		dirResolved, err := evalExisting(dirAbs)
		if err != nil {
			continue
		}
		if resolved != dirResolved && within(resolved, dirResolved) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("export path %s: %w", Redact(abs), ErrOutsideExportDirs)
}

// evalExisting resolves symlinks on the longest existing prefix of path and
// keeps the rest as written.
func evalExisting(path string) (string, error) {
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(path)
		if err == nil {
			slices.Reverse(tail)
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("no existing ancestor: %w", err)
		}
		tail = append(tail, filepath.Base(path))
		path = parent
	}
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Redact shortens a path to .../<parent>/<base> for error messages.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}
