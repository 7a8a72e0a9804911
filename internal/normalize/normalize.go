// Package normalize provides utilities for normalizing and sanitizing data.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// folder lowercases with full Unicode case folding, so "Straße" and "STRASSE"
// munge to the same key.
//
//nolint:gochecknoglobals // caseless folding has no per-call state
var folder = cases.Fold()

// Munge derives the normalized identity key for a tag name.
//
// Two names that differ only in case, surrounding whitespace, or internal
// whitespace runs produce the same munge key. The key is what the store's
// uniqueness constraint is declared over; the display name keeps the user's
// original spelling.
func Munge(name string) string {
	s := norm.NFKC.String(name)
	s = folder.String(s)
	// Collapse internal whitespace runs to a single space.
	return strings.Join(strings.Fields(s), " ")
}
