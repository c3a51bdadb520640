// Package datapath resolves dataset and artefact paths against a data
// directory rather than the process working directory.
package datapath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDataDir returns the directory containing the running executable,
// falling back to the working directory if it cannot be determined.
func DefaultDataDir() string {
	exe, err := os.Executable()
	if err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		return filepath.Dir(exe)
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// Resolve maps name to a clean absolute path. Absolute names are used as
// given. Relative names are joined to dataDir and must stay inside it.
func Resolve(name, dataDir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty dataset path")
	}
	if filepath.IsAbs(name) {
		return filepath.Clean(name), nil
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	absDir, err := filepath.Abs(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	joined := filepath.Join(absDir, name)
	if err := ValidateWithinDirectory(joined, absDir); err != nil {
		return "", err
	}
	return joined, nil
}

// ValidateWithinDirectory checks that filePath does not escape dir,
// including through symlinks in existing parent directories.
func ValidateWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}

	canonicalPath := canonical(absPath)
	canonicalDir := absDir
	if resolved, err := filepath.EvalSymlinks(absDir); err == nil {
		canonicalDir = resolved
	}

	rel, err := filepath.Rel(canonicalDir, canonicalPath)
	if err != nil {
		return fmt.Errorf("path is outside data directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %s escapes data directory %s", filePath, dir)
	}
	return nil
}

// canonical resolves symlinks in the longest existing prefix of p.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	check := p
	for {
		parent := filepath.Dir(check)
		if parent == check {
			return p
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, p)
			return filepath.Join(resolved, rel)
		}
		check = parent
	}
}

// SanitizeFilename makes a safe file name from an arbitrary identifier
// such as a stream_id. Runs of other characters collapse to one underscore.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
