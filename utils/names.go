package utils

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeDisplayName trims, collapses inner whitespace and normalizes the
// name to NFC so mirrored player names compare and index consistently
// regardless of how the profile service encoded them.
func NormalizeDisplayName(name string) string {
	fields := strings.Fields(name)
	return norm.NFC.String(strings.Join(fields, " "))
}
