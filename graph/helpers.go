package graph

import (
	"strings"
	"unicode"

	"github.com/teranos/finkg/kg"
)

// nodeID makes a node ID unique across kinds while keeping identifiers
// case-sensitive, the way the store treats them.
func nodeID(kind kg.Kind, id string) string {
	return typeName(kind) + ":" + id
}

// typeName is the lowercase node type for a kind
func typeName(kind kg.Kind) string {
	return strings.ToLower(string(kind))
}

// humanize turns a camelCase predicate into words: "isCompliantWith" becomes
// "is compliant with".
func humanize(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
