package record

import (
	"bytes"
	"iter"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Entry is one attribute line of a disclosure file.
type Entry struct {
	Line      int
	Attribute Attribute
	Reference string
}

// Valid reports whether the entry's attribute is part of the vocabulary.
func (e Entry) Valid() bool {
	return e.Attribute.Known()
}

// Entries yields every well-formed "attribute=reference" line of body. Comment
// lines, blank lines and lines without exactly one '=' and a non-empty value
// are skipped. Entries with unknown attribute names are still yielded so the
// caller can report them; check Valid.
//
// The sequence is lazy and may be ranged over any number of times.
func Entries(body []byte) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		rest := body
		lineNum := 0
		for len(rest) > 0 {
			var line []byte
			line, rest = nextLine(rest)
			lineNum++

			entry, ok := parseLine(string(line))
			if !ok {
				continue
			}
			entry.Line = lineNum

			if !yield(entry) {
				return
			}
		}
	}
}

// nextLine splits off the first line of b. "\r\n", "\r" and "\n" all end a
// line; there is no length limit.
func nextLine(b []byte) (line, rest []byte) {
	i := bytes.IndexAny(b, "\r\n")
	if i < 0 {
		return b, nil
	}
	if b[i] == '\r' && i+1 < len(b) && b[i+1] == '\n' {
		return b[:i], b[i+2:]
	}
	return b[:i], b[i+1:]
}

// Count returns the number of valid entries in body.
func Count(body []byte) int {
	n := 0
	for e := range Entries(body) {
		if e.Valid() {
			n++
		}
	}
	return n
}

func parseLine(raw string) (Entry, bool) {
	line := strings.ToLower(clean(raw))
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, false
	}

	parts := strings.Split(line, "=")
	if len(parts) != 2 {
		return Entry{}, false
	}

	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" || value == "" {
		return Entry{}, false
	}

	return Entry{Attribute: Attribute(key), Reference: value}, true
}

// clean folds compatibility characters to ASCII where possible, then drops NUL
// and any remaining non-ASCII bytes and trims surrounding whitespace.
func clean(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == 0 || r > 0x7f {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
