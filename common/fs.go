package common

import (
	"path/filepath"
	"strings"
)

// Expand `target` relative to given path if its a relative path, else it will
// be returned unchanged. Empty string will be returned as empty string.
func ResolveRelativePath(target, relativeTo string) string {
	if target == "" {
		return target
	}

	if filepath.IsAbs(target) {
		return target
	}

	target = filepath.Join(relativeTo, target)
	target = filepath.Clean(target)

	return target
}

// ReplaceFileExt returns a copy of `name` with its extension replaced by `ext`.
// `ext` should contain leading dot.
func ReplaceFileExt(name, ext string) string {
	oldExt := filepath.Ext(name)
	return strings.TrimSuffix(name, oldExt) + ext
}

// IsHTMLFile reports whether given path looks like an HTML document or fragment.
func IsHTMLFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return true
	default:
		return false
	}
}
