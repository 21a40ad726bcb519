// Package security validates file paths supplied by operators, such as the
// destination of an IMU CSV export.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideExportDir is returned when a path resolves outside the export
// directory.
var ErrOutsideExportDir = errors.New("path escapes export directory")

// ResolveExportPath returns the absolute path of name inside exportDir.
// Relative names are taken relative to exportDir. Symlinks in the existing
// part of the path are resolved before the containment check, so a link
// inside exportDir cannot redirect the write elsewhere.
func ResolveExportPath(name, exportDir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty export path")
	}
	root, err := canonical(exportDir)
	if err != nil {
		return "", fmt.Errorf("resolve export directory: %w", err)
	}
	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(exportDir, target)
	}
	resolved, err := canonical(target)
	if err != nil {
		return "", fmt.Errorf("resolve export path: %w", err)
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s not within %s", ErrOutsideExportDir, name, exportDir)
	}
	if rel == "." {
		return "", fmt.Errorf("export path %s is the export directory itself", name)
	}
	return resolved, nil
}

// canonical makes p absolute and resolves symlinks in its longest existing
// prefix. The non-existent remainder is appended unchanged.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}
	rest := ""
	for cur := abs; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, rest), nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// SanitizeFilename maps s onto ASCII letters, digits, '.', '_' and '-',
// collapsing runs of other characters into a single underscore. The
// result is at most 128 bytes and never empty.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
