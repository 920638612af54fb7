package util

import (
	"strings"
)

const (
	keySeparator  = "/"
	archiveSuffix = ".zip"
)

// JoinKey joins non-empty key segments with "/". Empty segments are skipped
// so an unset prefix never produces a leading separator. The final segment
// keeps its trailing separator, which matters for prefixes like "builds/".
func JoinKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	for i := range parts {
		if i < len(parts)-1 {
			parts[i] = strings.TrimRight(parts[i], keySeparator)
		}
		if i > 0 {
			parts[i] = strings.TrimLeft(parts[i], keySeparator)
		}
	}
	return strings.Join(parts, keySeparator)
}

// ArchiveKey is the object key a revision archive is stored under.
func ArchiveKey(archivePrefix, revision string) string {
	return archivePrefix + revision + archiveSuffix
}

// AliasKey derives the stable key that always mirrors the active archive by
// dropping one trailing separator from the archive prefix and appending
// ".zip": "builds/dist-" becomes "builds/dist.zip". It returns "" when
// nothing is left to name.
func AliasKey(archivePrefix string) string {
	base := archivePrefix
	if n := len(base); n > 0 && strings.ContainsRune("-_/.", rune(base[n-1])) {
		base = base[:n-1]
	}
	if base == "" {
		return ""
	}
	return base + archiveSuffix
}
