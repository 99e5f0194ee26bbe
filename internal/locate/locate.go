package locate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Resolve when none of the candidates exist.
var ErrNotFound = errors.New("executable not found")

// Layout describes where a bundled executable may live.
// When Packaged is true the resources directory is searched first;
// otherwise both lookups start from the development tree.
type Layout struct {
	Packaged     bool
	ResourcesDir string // directory shipped next to the launcher in a packaged build
	DevDir       string // source tree root used during development
	SubDir       string // directory holding the executable under either root (default "dist")
}

// ExecutableName returns the platform specific file name for name.
func ExecutableName(goos, name string) string {
	if goos == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// Candidates lists the paths to try, in order, for the named executable.
// It performs no I/O.
func Candidates(goos string, l Layout, name string) []string {
	exe := ExecutableName(goos, name)
	sub := l.SubDir
	if sub == "" {
		sub = "dist"
	}
	base := l.DevDir
	if l.Packaged {
		base = l.ResourcesDir
	}
	out := make([]string, 0, 2)
	seen := make(map[string]struct{}, 2)
	for _, root := range []string{base, l.DevDir} {
		p := filepath.Join(root, sub, exe)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Resolve returns the first candidate for which exists reports true.
// A nil exists uses FileExists.
func Resolve(candidates []string, exists func(string) bool) (string, error) {
	if exists == nil {
		exists = FileExists
	}
	for _, c := range candidates {
		if exists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(candidates, ", "))
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
