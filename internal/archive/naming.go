package archive

import "strings"

// Suffix is the archive filename extension used across the snapshot.
const Suffix = ".tar.gz"

// Name maps a host path to its flat archive filename:
// /etc/pihole -> etc__pihole.tar.gz. This is the contract shared by
// the backup job, the patcher, and the image inspector.
//
// Known edge case: the substitution token is not escaped, so a real
// path segment containing "__" can collide with a distinct nested
// path. The on-disk snapshot format already relies on the unescaped
// form, so the mapping is kept as-is.
func Name(src string) string {
	return strings.ReplaceAll(strings.TrimPrefix(src, "/"), "/", "__") + Suffix
}
