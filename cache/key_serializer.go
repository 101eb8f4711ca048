package cache

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator sits between the entity prefix and the identity hash in
// serialized names.
const KeySeparator = "-"

// KeySerializer turns a CacheKey into a deterministic name usable as a file
// name or datastore key. Names must be stable across process restarts.
type KeySerializer interface {
	SerializeKey(key CacheKey) string
}

// defaultKeySerializer names records "<snake_entity>-<xxhash64 of identity>".
// The hash keeps names short for wide dataset selections; stores keep the
// full key next to the payload so a collision is detected on read.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

func (defaultKeySerializer) SerializeKey(key CacheKey) string {
	prefix := toSnake(string(key.EntityType()))
	if prefix == "" {
		prefix = "entity"
	}
	sum := xxhash.Sum64String(key.String())
	return prefix + KeySeparator + leftPad(strconv.FormatUint(sum, 16), 16)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// toSnake converts an entity tag to snake_case and drops every character
// that is not an ASCII-safe letter or digit, so the result is always a legal
// path segment.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false
	writeSep := func() {
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	for i, r := range runes {
		switch {
		case r > unicode.MaxASCII:
			writeSep()
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (nextLower && unicode.IsUpper(prev)) {
					writeSep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		default:
			writeSep()
		}
	}

	return strings.Trim(b.String(), "_")
}
