// Package security validates operator-supplied output paths before the
// process writes to them.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDirectory reports whether filePath stays inside safeDir
// once relative components and symlinks are resolved. Symlinked parents are
// resolved even when the file itself does not exist yet.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absSafe, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	canonicalSafe, err := filepath.EvalSymlinks(absSafe)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalSafe, canonicalize(absPath))
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", safeDir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %s escapes %s", filePath, safeDir)
	}
	return nil
}

// canonicalize resolves symlinks in absPath. When the path does not exist
// yet, the nearest existing ancestor is resolved instead and the remaining
// components are joined back on, so a symlinked parent cannot move a new
// file outside the tree.
func canonicalize(absPath string) string {
	if resolved, err := filepath.EvalSymlinks(absPath); err == nil {
		return resolved
	}
	for dir := filepath.Dir(absPath); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, absPath)
			if err != nil {
				break
			}
			return filepath.Join(resolved, rel)
		}
		if dir == filepath.Dir(dir) {
			break
		}
	}
	return absPath
}

// ValidatePathWithinAllowedDirs accepts filePath when it stays inside at
// least one of the given directories.
func ValidatePathWithinAllowedDirs(filePath string, allowedDirs []string) error {
	if len(allowedDirs) == 0 {
		return fmt.Errorf("no allowed directories specified")
	}
	for _, dir := range allowedDirs {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("path must be within one of the allowed directories: %v", allowedDirs)
}

// ValidateExportPath bounds report, overlay and plot output paths to the
// working directory or the system temp directory.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return ValidatePathWithinAllowedDirs(filePath, []string{os.TempDir(), cwd})
}

// SanitizeFilename reduces an arbitrary identifier to ASCII letters, digits,
// dot, underscore and dash so it can sit inside a file name. Runs of other
// characters collapse to a single underscore and the result is capped at
// 128 bytes.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		if ok {
			b.WriteRune(r)
			pendingSep = false
		} else if !pendingSep {
			b.WriteByte('_')
			pendingSep = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
