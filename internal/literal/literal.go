// Package literal parses C/C++ integer literal text into arbitrary-precision
// signed integers, the way tree-sitter's number_literal nodes spell them:
// any radix, digit separators, and integer suffixes.
package literal

import (
	"math/big"
	"strings"
)

// stripChars are digit separators and integer-suffix letters that can be
// dropped from a literal without affecting its value.
const stripChars = "'uUlLzZ"

// ParseInteger parses a C/C++ integer literal and returns its value as a
// signed big.Int. It returns ok=false for empty input, floating point
// literals, or anything else it fails to parse as an integer.
func ParseInteger(text string) (*big.Int, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(stripChars, r) {
			return -1
		}
		return r
	}, text)

	if cleaned == "" {
		return nil, false
	}

	negative := false
	if cleaned[0] == '-' {
		negative = true
		cleaned = cleaned[1:]
	}

	if cleaned == "" {
		return nil, false
	}

	radix := 10
	offset := 0
	switch {
	case hasPrefix(cleaned, "0x"), hasPrefix(cleaned, "0X"):
		radix, offset = 16, 2
	case hasPrefix(cleaned, "0b"), hasPrefix(cleaned, "0B"):
		radix, offset = 2, 2
	case strings.HasPrefix(cleaned, "0") && len(cleaned) > 1:
		radix, offset = 8, 1
	}

	digits := cleaned[offset:]
	if digits == "" {
		return nil, false
	}

	v, ok := new(big.Int).SetString(digits, radix)
	if !ok {
		return nil, false
	}

	if negative {
		v.Neg(v)
	}
	return v, true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
