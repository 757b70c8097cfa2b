// Package modkey defines the canonical identity used to address a Python
// module throughout the scheduler: its import name, its file path (when one
// exists on disk), and whether it was resolved from typeshed stubs.
package modkey

import "path/filepath"

// Key identifies a module uniquely within one analyzer instance.
//
// FilePath is empty for compiled/built-in modules that have no backing
// source file; two such modules with the same Name hash and compare equal
// regardless of any synthetic path a loader might otherwise have probed.
type Key struct {
	Name       string
	FilePath   string
	IsTypeshed bool
}

// New builds a Key for a module backed by a file on disk.
func New(name, filePath string, isTypeshed bool) Key {
	return Key{Name: name, FilePath: normalizePath(filePath), IsTypeshed: isTypeshed}
}

// NewBuiltin builds a Key for a compiled or built-in module with no file path.
func NewBuiltin(name string) Key {
	return Key{Name: name}
}

// normalizePath makes file-path comparisons OS-path-equal: it cleans the
// path and, on case-insensitive filesystems, callers are expected to have
// already folded case before reaching here (the path resolver owns that
// policy since it knows the host filesystem).
func normalizePath(p string) string {
	if p == "" {
		return ""
	}

	return filepath.Clean(p)
}

// Deconstruct yields the three identity fields in the order callers that
// need to reason about ordering expect (e.g. "every missing key was
// typeshed").
func (k Key) Deconstruct() (name, filePath string, isTypeshed bool) {
	return k.Name, k.FilePath, k.IsTypeshed
}

// HasFile reports whether this key is backed by a file on disk.
func (k Key) HasFile() bool {
	return k.FilePath != ""
}

// String renders a human-readable identifier, useful for logs and graph
// serialization; it is not used for equality.
func (k Key) String() string {
	switch {
	case k.FilePath == "" && k.IsTypeshed:
		return k.Name + " (typeshed, builtin)"
	case k.FilePath == "":
		return k.Name
	case k.IsTypeshed:
		return k.Name + " (" + k.FilePath + ", typeshed)"
	default:
		return k.Name + " (" + k.FilePath + ")"
	}
}
