// Package sqlquote implements the identifier quoting helper maintenance
// operations use to turn a catalog-supplied name into SQL text. The
// doubling scheme mirrors the single-quote literal escaping pgqd's
// predecessor used (double any occurrence of the quote character),
// generalized here to double-quoted identifiers and to schema
// qualification.
package sqlquote

import "strings"

// maxIdentLen bounds a single quoted identifier segment; overflow is
// reported rather than silently truncated, so the caller can skip the
// operation instead of sending a corrupt statement.
const maxIdentLen = 4096

// QuoteIdent double-quotes name, doubling any embedded `"`. It returns
// ok=false if name is empty or would exceed maxIdentLen once quoted.
func QuoteIdent(name string) (quoted string, ok bool) {
	if name == "" {
		return "", false
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		if r == '"' {
			b.WriteByte('"')
		}
		b.WriteRune(r)
		if b.Len()+1 > maxIdentLen { // +1 for the closing quote
			return "", false
		}
	}
	b.WriteByte('"')
	return b.String(), true
}

// FQIdent quotes name as a fully-qualified identifier. A name
// containing a "." is split once on the first dot and each half is
// quoted and rejoined as schema.object; a bare name is quoted as-is.
// Returns ok=false if any segment fails to quote.
func FQIdent(name string) (quoted string, ok bool) {
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		schema, rest := name[:dot], name[dot+1:]
		qSchema, ok1 := QuoteIdent(schema)
		qRest, ok2 := QuoteIdent(rest)
		if !ok1 || !ok2 {
			return "", false
		}
		return qSchema + "." + qRest, true
	}
	return QuoteIdent(name)
}
