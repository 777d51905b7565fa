package addon

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathComponent rejects names that could escape the intended directory.
func ValidatePathComponent(name, label string) error {
	if name == "" {
		return fmt.Errorf("empty %s", label)
	}
	cleaned := filepath.Clean(name)
	if cleaned != name || strings.Contains(cleaned, "..") || filepath.IsAbs(cleaned) ||
		strings.ContainsAny(cleaned, `/\`) {
		return fmt.Errorf("invalid %s: %q", label, name)
	}
	return nil
}

// ValidateInsideDir checks that resolved is base or a child of it.
func ValidateInsideDir(base, resolved string) error {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return err
	}
	absResolved, err := filepath.Abs(resolved)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(absResolved, absBase+string(filepath.Separator)) && absResolved != absBase {
		return fmt.Errorf("path %q escapes base directory %q", resolved, base)
	}
	return nil
}
