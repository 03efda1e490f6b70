package sigchain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// canonicalJSON builds the byte-stable JSON object required by spec.md
// §4.C: keys in exactly the given order, a single space after ':' and
// ',', and no other whitespace. encoding/json.Marshal on a Go map cannot
// be used here since map iteration order is randomized, and even on a
// struct it emits compact separators with no spaces; this hand-rolled
// encoder is the "formatter module with golden-vector tests" the design
// notes call for.
//
// Each pair's value must already be a complete, valid JSON value (a
// quoted string, a bare integer, or a nested canonicalJSON object) so
// that nesting composes exactly like Python's json.dumps of nested
// dicts.
type kv struct {
	key   string
	value string
}

func canonicalJSON(pairs ...kv) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(jsonString(p.key))
		buf.WriteString(": ")
		buf.WriteString(p.value)
	}
	buf.WriteByte('}')
	return buf.String()
}

// jsonString encodes s as a JSON string literal, matching Python's
// json.dumps default (ensure_ascii=True) escaping for the ASCII-range
// identifiers and names this module deals with.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoder.Encode appends a trailing newline; trim it back off.
	_ = enc.Encode(s)
	out := buf.String()
	return out[:len(out)-1]
}

// jsonUint encodes a non-negative integer the way Python's json.dumps
// does: plain decimal digits, no quotes.
func jsonUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
