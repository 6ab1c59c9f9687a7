package kg

import (
	"net/url"
	"strings"
)

// DefaultBaseIRI namespaces every node, class and predicate the store emits
const DefaultBaseIRI = "http://example.org/finance/"

// Kind is the type tag of a node
type Kind string

const (
	KindClient      Kind = "Client"
	KindAccount     Kind = "Account"
	KindTransaction Kind = "Transaction"
	KindRule        Kind = "Rule"
)

// kinds in emission order
var kinds = []Kind{KindClient, KindAccount, KindTransaction, KindRule}

// segment is the IRI path segment nodes of this kind live under
func (k Kind) segment() string {
	return strings.ToLower(string(k))
}

// Predicate local names
const (
	PredHasAccount     = "hasAccount"
	PredHasTransaction = "hasTransaction"
	PredCompliantWith  = "isCompliantWith"
	PredViolatesRule   = "violatesRule"

	PredName        = "name"
	PredRiskLevel   = "riskLevel"
	PredAccountType = "accountType"
	PredStatus      = "status"
	PredAmount      = "amount"
	PredCurrency    = "currency"
	PredDate        = "date"
	PredIsCompliant = "isCompliant"
	PredDescription = "description"
	PredSeverity    = "severity"
)

// W3C vocabulary
const (
	RDFType     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	RDFProperty = "http://www.w3.org/1999/02/22-rdf-syntax-ns#Property"
	RDFSClass   = "http://www.w3.org/2000/01/rdf-schema#Class"
	RDFSDomain  = "http://www.w3.org/2000/01/rdf-schema#domain"
	RDFSRange   = "http://www.w3.org/2000/01/rdf-schema#range"
	XSDString   = "http://www.w3.org/2001/XMLSchema#string"
	XSDDecimal  = "http://www.w3.org/2001/XMLSchema#decimal"
	XSDDate     = "http://www.w3.org/2001/XMLSchema#date"
	XSDBoolean  = "http://www.w3.org/2001/XMLSchema#boolean"
)

// property describes one predicate for schema emission and load dispatch
type property struct {
	name   string
	domain Kind
	// rangeKind is set for object properties, rangeType for literals
	rangeKind Kind
	rangeType string
}

var properties = []property{
	{name: PredHasAccount, domain: KindClient, rangeKind: KindAccount},
	{name: PredHasTransaction, domain: KindAccount, rangeKind: KindTransaction},
	{name: PredCompliantWith, domain: KindTransaction, rangeKind: KindRule},
	{name: PredViolatesRule, domain: KindTransaction, rangeKind: KindRule},
	{name: PredName, domain: KindClient, rangeType: XSDString},
	{name: PredRiskLevel, domain: KindClient, rangeType: XSDString},
	{name: PredAccountType, domain: KindAccount, rangeType: XSDString},
	{name: PredStatus, domain: KindTransaction, rangeType: XSDString},
	{name: PredAmount, domain: KindTransaction, rangeType: XSDDecimal},
	{name: PredCurrency, domain: KindTransaction, rangeType: XSDString},
	{name: PredDate, domain: KindTransaction, rangeType: XSDDate},
	{name: PredIsCompliant, domain: KindTransaction, rangeType: XSDBoolean},
	{name: PredDescription, domain: KindRule, rangeType: XSDString},
	{name: PredSeverity, domain: KindRule, rangeType: XSDString},
}

// Vocabulary mints and parses IRIs under one base
type Vocabulary struct {
	base string
}

// NewVocabulary returns a vocabulary rooted at base.
// A base without a trailing separator gets "/" appended.
func NewVocabulary(base string) Vocabulary {
	if base == "" {
		base = DefaultBaseIRI
	}
	if !strings.HasSuffix(base, "/") && !strings.HasSuffix(base, "#") {
		base += "/"
	}
	return Vocabulary{base: base}
}

// Base returns the namespace IRI
func (v Vocabulary) Base() string {
	return v.base
}

// NodeIRI returns the IRI for an entity of kind with identifier id
func (v Vocabulary) NodeIRI(kind Kind, id string) string {
	return v.base + kind.segment() + "/" + url.PathEscape(id)
}

// ClassIRI returns the IRI of the class for kind
func (v Vocabulary) ClassIRI(kind Kind) string {
	return v.base + string(kind)
}

// PredicateIRI returns the IRI of a predicate local name
func (v Vocabulary) PredicateIRI(name string) string {
	return v.base + name
}

// ParseNodeIRI splits a node IRI back into kind and identifier
func (v Vocabulary) ParseNodeIRI(iri string) (Kind, string, bool) {
	rest, ok := strings.CutPrefix(iri, v.base)
	if !ok {
		return "", "", false
	}
	seg, escaped, ok := strings.Cut(rest, "/")
	if !ok || escaped == "" {
		return "", "", false
	}
	id, err := url.PathUnescape(escaped)
	if err != nil {
		return "", "", false
	}
	for _, k := range kinds {
		if k.segment() == seg {
			return k, id, true
		}
	}
	return "", "", false
}

// localName returns the predicate or class local name for an IRI under base
func (v Vocabulary) localName(iri string) (string, bool) {
	name, ok := strings.CutPrefix(iri, v.base)
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

// ShortName returns the human-readable tail of an IRI: the text after the
// final '/' or '#', percent-decoded.
func ShortName(iri string) string {
	i := strings.LastIndexAny(iri, "/#")
	tail := iri[i+1:]
	if unescaped, err := url.PathUnescape(tail); err == nil {
		return unescaped
	}
	return tail
}
