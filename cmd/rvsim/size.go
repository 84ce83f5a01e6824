package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseSize parses a decimal integer optionally followed by a
// case-insensitive power-of-1024 suffix: k, kb, kib, m, mb, mib, g, gb, gib.
func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	digits := s
	var mult uint64 = 1
	for i, r := range s {
		if r < '0' || r > '9' {
			digits = s[:i]
			suffix := strings.ToLower(s[i:])
			m, ok := sizeSuffixes[suffix]
			if !ok {
				return 0, fmt.Errorf("unknown size suffix %q in %q", suffix, s)
			}
			mult = m
			break
		}
	}
	if digits == "" {
		return 0, fmt.Errorf("missing digits in size %q", s)
	}

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}

	result := n * mult
	if mult != 0 && result/mult != n {
		return 0, fmt.Errorf("size %q overflows u64", s)
	}
	return result, nil
}

var sizeSuffixes = map[string]uint64{
	"k": 1024, "kb": 1024, "kib": 1024,
	"m": 1024 * 1024, "mb": 1024 * 1024, "mib": 1024 * 1024,
	"g": 1024 * 1024 * 1024, "gb": 1024 * 1024 * 1024, "gib": 1024 * 1024 * 1024,
}
