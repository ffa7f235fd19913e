package output

import (
	"strings"
)

// illegalCharacters are characters not allowed in filenames on most
// filesystems.
var illegalCharacters = []rune{'\\', '/', ':', '*', '?', '"', '<', '>', '|'}

// SanitizeName replaces or removes characters that are unsafe in file
// names while keeping Unicode letters, accents, and common punctuation.
func SanitizeName(s string) string {
	if s == "" {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		if isIllegalChar(r) {
			result.WriteRune(getReplacement(r))
			continue
		}
		result.WriteRune(r)
	}

	out := cleanupSpaces(result.String())

	// Leading/trailing dots are problematic on Windows.
	out = strings.Trim(out, " .")

	return avoidReservedNames(out)
}

// isIllegalChar checks if a character is illegal for filenames.
func isIllegalChar(r rune) bool {
	for _, illegal := range illegalCharacters {
		if r == illegal {
			return true
		}
	}
	return false
}

// getReplacement returns a safe replacement for an illegal character.
func getReplacement(r rune) rune {
	switch r {
	case '\\', '/', '*', ':', '|':
		return '-'
	case '?':
		return ' '
	case '"':
		return '\''
	case '<':
		return '('
	case '>':
		return ')'
	default:
		return ' '
	}
}

// cleanupSpaces removes double spaces and trims the string.
func cleanupSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// avoidReservedNames handles Windows reserved device names.
func avoidReservedNames(s string) string {
	reserved := []string{
		"CON", "PRN", "AUX", "NUL",
		"COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
		"LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
	}

	upper := strings.ToUpper(s)
	for _, r := range reserved {
		if upper == r {
			return s + "_"
		}
		if strings.HasPrefix(upper, r+".") {
			return s[:len(r)] + "_" + s[len(r):]
		}
	}

	return s
}
