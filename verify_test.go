// Package verify enforces project-level structural rules that unit tests
// cannot catch: packages nothing imports, and interfaces whose only
// implementation is a no-op.
//
// Run: go test -run 'TestNoDeadPackages|TestNoopOnlyInterfaces' .
package record_versions_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/txn2/record-versions"

// walkSources calls fn with the content of every non-test Go file below dir.
func walkSources(t *testing.T, dir string, fn func(path, content string)) {
	t.Helper()
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		content, err := os.ReadFile(path) //nolint:gosec // test reads source files
		if err != nil {
			return err
		}
		fn(path, string(content))
		return nil
	})
	require.NoError(t, err)
}

// TestNoDeadPackages verifies that every package under pkg/ is imported by
// at least one non-test file in pkg/ or cmd/.
func TestNoDeadPackages(t *testing.T) {
	root, err := filepath.Abs(".")
	require.NoError(t, err)

	packages := map[string]bool{}
	walkSources(t, filepath.Join(root, "pkg"), func(path, _ string) {
		rel, relErr := filepath.Rel(root, filepath.Dir(path))
		require.NoError(t, relErr)
		packages[modulePath+"/"+filepath.ToSlash(rel)] = false
	})
	require.NotEmpty(t, packages)

	importRe := regexp.MustCompile(`"(` + regexp.QuoteMeta(modulePath) + `/[^"]+)"`)
	for _, dir := range []string{"pkg", "cmd"} {
		walkSources(t, filepath.Join(root, dir), func(_, content string) {
			for _, m := range importRe.FindAllStringSubmatch(content, -1) {
				if _, ok := packages[m[1]]; ok {
					packages[m[1]] = true
				}
			}
		})
	}

	for pkg, imported := range packages {
		assert.True(t, imported,
			"package %q is never imported by non-test code; wire it in or delete it", pkg)
	}
}

// TestNoopOnlyInterfaces verifies that every interface with a no-op
// implementation, asserted via `var _ Iface = (*Type)(nil)` or
// `_ Iface = Type{}`, also has a real one.
func TestNoopOnlyInterfaces(t *testing.T) {
	implRe := regexp.MustCompile(`(?m)^\s*(?:var\s+)?_\s+([\w.]+)\s*=\s*(?:\(\*(\w+)\)\(nil\)|(\w+)\{\})`)

	impls := map[string][]string{}
	walkSources(t, "pkg", func(_, content string) {
		for _, m := range implRe.FindAllStringSubmatch(content, -1) {
			name := m[2]
			if name == "" {
				name = m[3]
			}
			impls[m[1]] = append(impls[m[1]], name)
		}
	})
	require.NotEmpty(t, impls, "should find interface compliance assertions in pkg/")

	for iface, types := range impls {
		hasNoop, hasReal := false, false
		for _, name := range types {
			if strings.Contains(strings.ToLower(name), "noop") {
				hasNoop = true
			} else {
				hasReal = true
			}
		}
		if hasNoop {
			assert.True(t, hasReal, "interface %q has only no-op implementations %v", iface, types)
		}
	}
}
