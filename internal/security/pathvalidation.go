// Package security validates filesystem paths and names used by backup and
// export operations.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory checks that filePath stays inside safeDir once
// relative components and symlinks are resolved.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}

	canonicalSafeDir, err := filepath.EvalSymlinks(absSafeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalSafeDir, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", filePath, safeDir)
	}

	return nil
}

// canonicalize resolves symlinks in absPath. For paths that do not exist yet
// it resolves the nearest existing ancestor instead, so a symlinked parent
// cannot carry the path out of its directory.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}

	ancestor := absPath
	for {
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return absPath
		}

		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, err := filepath.Rel(parent, absPath)
			if err != nil {
				return absPath
			}
			return filepath.Join(resolved, rel)
		}

		ancestor = parent
	}
}

// ValidatePathWithinAllowedDirs checks that filePath is inside at least one
// of the allowed directories.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}

	for _, dir := range allowedDirs {
		if err := ValidatePathWithinDirectory(filePath, dir); err == nil {
			return nil
		}
	}

	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// ValidateExportPath checks a destination for files written on the operator's
// machine, such as backup directories. Destinations are limited to the temp
// directory, the working directory and the user's home directory.
func ValidateExportPath(filePath string) error {
	allowed := []string{os.TempDir()}

	if cwd, err := os.Getwd(); err == nil {
		allowed = append(allowed, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		allowed = append(allowed, home)
	}

	return ValidatePathWithinAllowedDirs(filePath, allowed)
}

// SanitizeFilename converts a host label or other identifier into a string
// safe to embed in a file name. Runs of characters outside ASCII letters,
// digits, dot, underscore and dash collapse to a single underscore; the
// result is capped at 128 characters.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore {
				b.WriteByte('_')
				underscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
