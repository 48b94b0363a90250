// Package fingerprint computes an order-independent digest of a package
// snapshot so that two snapshots can be compared without diffing them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// domain separates snapshot digests from any other SHA-256 use. Bump the
// version suffix if the encoding below ever changes.
const domain = "condawatch/snapshot/v1"

// Of returns the lowercase hex SHA-256 digest of packages. Pairs are sorted
// by name and NFC-normalized before hashing, so iteration order and Unicode
// composition of the input do not affect the result.
//
// Encoding: domain 0x00 (name 0x00 version 0x0A)*
func Of(packages map[string]string) string {
	type pair struct{ name, version string }
	pairs := make([]pair, 0, len(packages))
	for name, version := range packages {
		pairs = append(pairs, pair{norm.NFC.String(name), norm.NFC.String(version)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].name != pairs[j].name {
			return pairs[i].name < pairs[j].name
		}
		return pairs[i].version < pairs[j].version
	})

	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range pairs {
		h.Write([]byte(p.name))
		h.Write([]byte{0x00})
		h.Write([]byte(p.version))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
