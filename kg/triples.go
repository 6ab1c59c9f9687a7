package kg

import (
	"maps"
	"slices"
)

// Term is the object of a triple: an IRI or a typed literal
type Term struct {
	Value    string
	IRI      bool
	Datatype string
}

// IRITerm returns a term referencing iri
func IRITerm(iri string) Term {
	return Term{Value: iri, IRI: true}
}

// Literal returns a typed literal term
func Literal(value, datatype string) Term {
	return Term{Value: value, Datatype: datatype}
}

// Triple is a single subject-predicate-object statement
type Triple struct {
	Subject   string
	Predicate string
	Object    Term
}

// SchemaTriples declares every class and property with domain and range
func (v Vocabulary) SchemaTriples() []Triple {
	out := make([]Triple, 0, len(kinds)+3*len(properties))
	for _, k := range kinds {
		out = append(out, Triple{v.ClassIRI(k), RDFType, IRITerm(RDFSClass)})
	}
	for _, p := range properties {
		iri := v.PredicateIRI(p.name)
		rng := p.rangeType
		if p.rangeKind != "" {
			rng = v.ClassIRI(p.rangeKind)
		}
		out = append(out,
			Triple{iri, RDFType, IRITerm(RDFProperty)},
			Triple{iri, RDFSDomain, IRITerm(v.ClassIRI(p.domain))},
			Triple{iri, RDFSRange, IRITerm(rng)},
		)
	}
	return out
}

// Triples returns the schema followed by every node's statements. Nodes are
// emitted by kind then identifier, so the output is deterministic.
func (s *Store) Triples() []Triple {
	v := s.vocab
	out := v.SchemaTriples()

	str := func(subject, pred, value string) {
		if value != "" {
			out = append(out, Triple{subject, v.PredicateIRI(pred), Literal(value, XSDString)})
		}
	}
	typed := func(subject string, kind Kind) {
		out = append(out, Triple{subject, RDFType, IRITerm(v.ClassIRI(kind))})
	}

	for _, id := range slices.Sorted(maps.Keys(s.clients)) {
		n := s.clients[id]
		subject := v.NodeIRI(KindClient, id)
		typed(subject, KindClient)
		str(subject, PredName, n.name)
		str(subject, PredRiskLevel, n.riskLevel)
		for _, accountID := range slices.Sorted(maps.Keys(n.accounts)) {
			out = append(out, Triple{subject, v.PredicateIRI(PredHasAccount), IRITerm(v.NodeIRI(KindAccount, accountID))})
		}
	}

	for _, id := range slices.Sorted(maps.Keys(s.accounts)) {
		n := s.accounts[id]
		subject := v.NodeIRI(KindAccount, id)
		typed(subject, KindAccount)
		str(subject, PredAccountType, n.accountType)
		str(subject, PredStatus, n.status)
		for _, txID := range slices.Sorted(maps.Keys(n.txs)) {
			out = append(out, Triple{subject, v.PredicateIRI(PredHasTransaction), IRITerm(v.NodeIRI(KindTransaction, txID))})
		}
	}

	for _, id := range slices.Sorted(maps.Keys(s.txs)) {
		n := s.txs[id]
		subject := v.NodeIRI(KindTransaction, id)
		typed(subject, KindTransaction)
		if n.amount.Valid {
			out = append(out, Triple{subject, v.PredicateIRI(PredAmount), Literal(FormatAmount(n.amount.Decimal), XSDDecimal)})
		}
		str(subject, PredCurrency, n.currency)
		if n.date != "" {
			out = append(out, Triple{subject, v.PredicateIRI(PredDate), Literal(n.date, XSDDate)})
		}
		str(subject, PredStatus, n.status)
		if n.compliance.Known() {
			out = append(out, Triple{subject, v.PredicateIRI(PredIsCompliant), Literal(n.compliance.String(), XSDBoolean)})
		}
		for _, ruleID := range slices.Sorted(maps.Keys(n.rules)) {
			out = append(out, Triple{subject, v.PredicateIRI(string(n.rules[ruleID])), IRITerm(v.NodeIRI(KindRule, ruleID))})
		}
	}

	for _, id := range slices.Sorted(maps.Keys(s.rules)) {
		n := s.rules[id]
		subject := v.NodeIRI(KindRule, id)
		typed(subject, KindRule)
		str(subject, PredDescription, n.description)
		str(subject, PredSeverity, n.severity)
	}

	return out
}
