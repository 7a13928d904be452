package musicbrainz

import "strings"

// Characters with meaning in Lucene query syntax. Values embedded in search
// queries must escape them or a title like "AC/DC [Live]" breaks the query.
const luceneSpecials = `+-&|!(){}[]^"~*?:\/`

// EscapeLucene backslash-escapes Lucene special characters in a query value.
func EscapeLucene(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
