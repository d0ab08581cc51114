// Package pathresolve implements PATH-based executable lookup (spec 4.3).
package pathresolve

import (
	"os"
	"path/filepath"
	"strings"
)

// List is an ordered sequence of directories to search for executables,
// derived from a PATH-style environment variable. Empty entries are
// skipped rather than treated as the current directory.
type List []string

// Parse splits a PATH-style string on the platform's list separator.
func Parse(pathEnv string) List {
	if pathEnv == "" {
		return nil
	}

	var dirs List
	for _, dir := range strings.Split(pathEnv, string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		dirs = append(dirs, dir)
	}
	return dirs
}

// Resolve searches l in order for a regular, executable file named n.
//
// If n already contains a path separator it is checked directly instead of
// being searched for in l, matching the conventional shell rule that a
// command given as a path (./foo, /bin/foo) bypasses PATH search entirely.
func (l List) Resolve(n string) (string, bool) {
	if strings.ContainsRune(n, os.PathSeparator) {
		if isExecutableFile(n) {
			return n, true
		}
		return "", false
	}

	for _, dir := range l {
		candidate := filepath.Join(dir, n)
		if isExecutableFile(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
