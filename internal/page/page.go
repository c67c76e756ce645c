// Package page classifies synced files and extracts metadata from
// page-like (markdown family) content.
package page

import (
	"path"
	"strings"
)

// Markdown-family extensions whose content is parsed into page metadata.
// Everything else is a raw asset, stored as-is and never parsed.
var pageExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".mdx":      {},
}

// RootAppPath is the reserved app path for the site index page.
const RootAppPath = "/"

// IsPage reports whether the path has a markdown-family extension.
func IsPage(filePath string) bool {
	_, ok := pageExtensions[strings.ToLower(path.Ext(filePath))]
	return ok
}

// Extension returns the lowercase file extension without the leading dot,
// or empty for extensionless files.
func Extension(filePath string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(filePath)), ".")
}

// AppPath resolves the public path a page is served under. Non-page files
// have no app path and get the empty string. "index.md" at the tree root
// maps to the reserved root path; "docs/guide.md" maps to "/docs/guide".
func AppPath(filePath string) string {
	if !IsPage(filePath) {
		return ""
	}

	ext := path.Ext(filePath)
	trimmed := strings.TrimSuffix(filePath, ext)

	if trimmed == "index" {
		return RootAppPath
	}
	trimmed = strings.TrimSuffix(trimmed, "/index")

	return "/" + trimmed
}
