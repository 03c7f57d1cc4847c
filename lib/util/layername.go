package util

import (
	"strings"
)

// LayerNameFilter maps a layer name to the name of its directory below the store root.
// Implementations must be deterministic and must not map two layer names to the same
// directory name.
type LayerNameFilter func(layer string) string

const upperHex = "0123456789ABCDEF"

// FilterLayerName is the default LayerNameFilter.
// ASCII letters, digits, '-', '_' and '.' are kept, every other byte is written as %XX.
// Because '%' itself is always escaped the mapping is injective.
// The names "", "." and ".." are escaped completely so they never resolve to the
// root directory or its parent.
func FilterLayerName(layer string) string {
	switch layer {
	case "":
		return "%"
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}

	var sb strings.Builder
	sb.Grow(len(layer))

	for i := 0; i < len(layer); i++ {
		c := layer[i]
		if isSafeNameByte(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperHex[c>>4])
		sb.WriteByte(upperHex[c&0x0F])
	}

	return sb.String()
}

func isSafeNameByte(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.':
		return true
	default:
		return false
	}
}
