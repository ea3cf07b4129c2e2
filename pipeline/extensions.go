package pipeline

import (
	"path/filepath"
	"strings"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".gif":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports whether name has a recognized image extension (any case)
func IsImage(name string) bool {
	return imageExtensions[ext(name)]
}

// IsArchive reports whether name is a zip archive (any case)
func IsArchive(name string) bool {
	return ext(name) == ".zip"
}

// ext returns the lowercased extension of name's last element. A name that is
// only a dot and an extension, like ".png", has none.
func ext(name string) string {
	base := filepath.Base(name)
	e := filepath.Ext(base)
	if e == base {
		return ""
	}
	return strings.ToLower(e)
}

// OutputName replaces the extension of name with .png
func OutputName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
}
