// Package normalize folds keyword text into comparison keys using a fixed
// substitution table of locale letters.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// TableVersion identifies the substitution table below. Bump it whenever the
// table changes.
const TableVersion = 1

// foldTable maps each locale-specific letter to its closest ASCII base.
var foldTable = map[rune]rune{
	'ç': 'c', 'Ç': 'c',
	'ğ': 'g', 'Ğ': 'g',
	'ı': 'i', 'İ': 'i',
	'ö': 'o', 'Ö': 'o',
	'ş': 's', 'Ş': 's',
	'ü': 'u', 'Ü': 'u',
	'â': 'a', 'Â': 'a',
	'î': 'i', 'Î': 'i',
	'û': 'u', 'Û': 'u',
}

// combiningDotAbove is left behind when "İ" is lowercased outside the
// Turkish locale; it carries no meaning in a comparison key.
const combiningDotAbove = '\u0307'

// Key returns the comparison key for text: NFC-composed, lowercased with
// Turkish casing rules, folded through the substitution table, trimmed and
// with whitespace runs collapsed to one space. Key never fails.
func Key(text string) string {
	s := norm.NFC.String(text)
	s = cases.Lower(language.Turkish).String(s)
	s = strings.Map(func(r rune) rune {
		if r == combiningDotAbove {
			return -1
		}
		if base, ok := foldTable[r]; ok {
			return base
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// HasLocaleChars reports whether text contains any letter from the
// substitution table, in either case.
func HasLocaleChars(text string) bool {
	for _, r := range norm.NFC.String(text) {
		if _, ok := foldTable[r]; ok {
			return true
		}
	}
	return false
}
