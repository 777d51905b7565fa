package addon

import (
	"fmt"

	"github.com/dop251/goja"
)

// LintScript reports whether src parses as JavaScript. Page scripts are
// never executed here; a syntax error only produces a warning upstream.
func LintScript(name string, src []byte) error {
	if _, err := goja.Compile(name, string(src), false); err != nil {
		return fmt.Errorf("script %s does not parse: %w", name, err)
	}
	return nil
}
