package codec

import (
	"bufio"
	"fmt"
	"github.com/magiconair/properties"
	"io"
	"sort"
	"strings"
	"time"
)

const (
	headerComment = "auto generated file, do not edit by hand"

	// date comment layout of existing metadata files, e.g. "Tue Mar 05 14:02:11 CET 2024"
	headerDateLayout = "Mon Jan 02 15:04:05 MST 2006"
)

// decodeProperties parses properties text (UTF-8) into a map.
// Property expansion (${key}) is disabled, values are returned exactly as written.
func decodeProperties(buf []byte) (map[string]string, error) {
	l := &properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}

	p, err := l.LoadBytes(buf)
	if err != nil {
		return nil, err
	}
	return p.Map(), nil
}

// encodeProperties writes data as properties text: two header comments followed by
// one key=value line per entry, sorted by key.
func encodeProperties(w io.Writer, data map[string]string, now time.Time) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "#%s\n#%s\n", headerComment, now.Format(headerDateLayout)); err != nil {
		return err
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := bw.WriteString(escapeProperty(k, true)); err != nil {
			return err
		}
		if err := bw.WriteByte('='); err != nil {
			return err
		}
		if _, err := bw.WriteString(escapeProperty(data[k], false)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// escapeProperty escapes a key or value so the properties parser reads it back unchanged.
// Separators and comment markers are escaped everywhere, spaces only inside keys and at
// the start of a value. Non-ASCII characters are written as UTF-8.
func escapeProperty(s string, isKey bool) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for i, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\t':
			sb.WriteString(`\t`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\f':
			sb.WriteString(`\f`)
		case '=', ':', '#', '!':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case ' ':
			if isKey || i == 0 {
				sb.WriteByte('\\')
			}
			sb.WriteByte(' ')
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\u%04X`, r)
				continue
			}
			sb.WriteRune(r)
		}
	}

	return sb.String()
}
