package transfer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")

// localName turns a remote file name into a single safe path component.
// Drive allows '/' in names, so separators are replaced; an empty or
// dot-only result falls back to the file ID.
func localName(name, id string) string {
	s := nameReplacer.Replace(norm.NFC.String(strings.TrimSpace(name)))

	switch s {
	case "", ".", "..":
		return id
	}

	return s
}

// replaceExt swaps the final extension of name for ext. Names without an
// extension (including dotfiles like ".env") get ext appended.
func replaceExt(name, ext string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx > 0 && idx < len(name)-1 {
		name = name[:idx]
	}

	return name + ext
}
