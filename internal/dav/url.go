package dav

import (
	"net/url"
	"path"
	"strings"
)

const pathSeparator = "/"

// baseURL returns the server URL with exactly one trailing slash.
func baseURL(server string) string {
	return strings.TrimRight(strings.TrimSpace(server), pathSeparator) + pathSeparator
}

// normalizePath turns a remote path into a clean slash separated path.
// Backslashes are treated as separators.
func normalizePath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", pathSeparator)
	if p == "" {
		return ""
	}
	return path.Clean(pathSeparator + p)
}

// joinURL resolves a remote path relative to base, regardless of a leading slash.
// Each segment is escaped, separators are kept.
func joinURL(base, remotePath string) string {
	rel := strings.TrimLeft(normalizePath(remotePath), pathSeparator)
	if rel == "" {
		return base
	}

	parts := strings.Split(rel, pathSeparator)
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return base + strings.Join(parts, pathSeparator)
}

// parentPath returns the parent collection of a remote path, or "" for top level entries.
func parentPath(remotePath string) string {
	dir := path.Dir(normalizePath(remotePath))
	if dir == pathSeparator || dir == "." {
		return ""
	}
	return dir
}
