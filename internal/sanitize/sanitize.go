// Package sanitize turns arbitrary identifiers (package ids, cache keys)
// into names that are safe to use as filenames on Windows and Unix.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxNameLength is the longest sanitized name we emit. Longer inputs are
// truncated and a hash suffix is appended so distinct inputs stay distinct.
const maxNameLength = 120

// hashSuffixLength is the number of hex characters appended to truncated names.
const hashSuffixLength = 8

// reservedNames are device names Windows refuses as file basenames,
// regardless of extension.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// FileName sanitizes s for use as a filename: characters outside
// [A-Za-z0-9._-] are dropped, reserved device names get a leading
// underscore, and inputs longer than 120 characters are truncated with a
// deterministic hash suffix for uniqueness.
func FileName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		}
	}

	name := sb.String()
	if name == "" {
		name = "_"
	}

	if reservedNames[strings.ToUpper(name)] {
		name = "_" + name
	}

	if len(name) > maxNameLength {
		sum := sha256.Sum256([]byte(s))
		suffix := hex.EncodeToString(sum[:])[:hashSuffixLength]
		name = name[:maxNameLength-hashSuffixLength-1] + "-" + suffix
	}

	return name
}
