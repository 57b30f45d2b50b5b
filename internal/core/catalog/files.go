package catalog

import (
	"path"
	"strings"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
	".tif":  {},
	".tiff": {},
}

// DefaultExcludedFolderTokens mark folders holding raw or project material.
var DefaultExcludedFolderTokens = []string{"BRUTOS", "PRJ", "ORIGINAL"}

// IsIgnorableFile reports hidden files and OS metadata.
func IsIgnorableFile(name string) bool {
	n := strings.TrimSpace(name)
	return strings.HasPrefix(n, ".") || strings.EqualFold(n, "thumbs.db")
}

func IsImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(strings.TrimSpace(name)))]
	return ok
}

// IsExcludedFolder reports whether a folder name contains any of the given tokens.
func IsExcludedFolder(name string, tokens []string) bool {
	n := Normalize(name)
	for _, tok := range tokens {
		if tok != "" && strings.Contains(n, Normalize(tok)) {
			return true
		}
	}
	return false
}

// ProductCodeFromFileName returns the file stem up to the first space.
func ProductCodeFromFileName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	if idx := strings.Index(name, " "); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}
