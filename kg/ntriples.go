package kg

import (
	"bufio"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/teranos/finkg/errors"
)

// Dump writes every triple in N-Triples form, one statement per line
func (s *Store) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, t := range s.Triples() {
		if _, err := bw.WriteString(formatNTriple(t)); err != nil {
			return errors.Wrap(err, "failed to write triple")
		}
	}
	return errors.Wrap(bw.Flush(), "failed to flush dump")
}

// Load reads N-Triples and merges them into the store with upsert semantics.
// Schema statements are accepted and skipped. The input is validated in full
// before anything is applied, so a malformed dump leaves the store untouched.
func (s *Store) Load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var ops []func()
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := parseNTriple(line)
		if err != nil {
			return errors.NewMalformedInputError("line %d: %v", lineNo, err)
		}
		op, err := s.resolve(t)
		if err != nil {
			return errors.NewMalformedInputError("line %d: %v", lineNo, err)
		}
		if op != nil {
			ops = append(ops, op)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "failed to read dump")
	}

	for _, op := range ops {
		op()
	}
	return nil
}

// resolve validates one triple and returns the mutation it implies.
// A nil op means the statement carries nothing to store.
func (s *Store) resolve(t Triple) (func(), error) {
	v := s.vocab
	kind, id, isNode := v.ParseNodeIRI(t.Subject)
	if !isNode {
		switch t.Predicate {
		case RDFType, RDFSDomain, RDFSRange:
			return nil, nil
		}
		return nil, errors.Newf("subject %s is not a %s node", t.Subject, v.Base())
	}

	if t.Predicate == RDFType {
		if !t.Object.IRI || t.Object.Value != v.ClassIRI(kind) {
			return nil, errors.Newf("%s typed as %s", t.Subject, t.Object.Value)
		}
		return func() { s.ensure(kind, id) }, nil
	}

	pred, ok := v.localName(t.Predicate)
	if !ok {
		return nil, errors.Newf("unknown predicate %s", t.Predicate)
	}

	// object properties
	if target, ok := objectTarget(kind, pred); ok {
		if !t.Object.IRI {
			return nil, errors.Newf("%s expects an IRI object", pred)
		}
		objKind, objID, ok := v.ParseNodeIRI(t.Object.Value)
		if !ok || objKind != target {
			return nil, errors.Newf("%s expects a %s, got %s", pred, target, t.Object.Value)
		}
		switch pred {
		case PredHasAccount:
			return func() { s.client(id); s.linkAccount(id, objID) }, nil
		case PredHasTransaction:
			return func() { s.account(id); s.linkTransaction(id, objID) }, nil
		default:
			rel := Relation(pred)
			return func() { s.LinkRule(id, objID, rel) }, nil
		}
	}

	if t.Object.IRI {
		return nil, errors.Newf("%s expects a literal object", pred)
	}
	value := t.Object.Value

	switch {
	case kind == KindClient && pred == PredName:
		return func() { setIfPresent(&s.client(id).name, value) }, nil
	case kind == KindClient && pred == PredRiskLevel:
		return func() { setIfPresent(&s.client(id).riskLevel, value) }, nil
	case kind == KindAccount && pred == PredAccountType:
		return func() { setIfPresent(&s.account(id).accountType, value) }, nil
	case kind == KindAccount && pred == PredStatus:
		return func() { setIfPresent(&s.account(id).status, value) }, nil
	case kind == KindTransaction && pred == PredAmount:
		amount, err := decimal.NewFromString(value)
		if err != nil {
			return nil, errors.Newf("invalid amount %q", value)
		}
		return func() { s.tx(id).amount = decimal.NullDecimal{Decimal: amount, Valid: true} }, nil
	case kind == KindTransaction && pred == PredCurrency:
		return func() { setIfPresent(&s.tx(id).currency, value) }, nil
	case kind == KindTransaction && pred == PredDate:
		return func() { setIfPresent(&s.tx(id).date, value) }, nil
	case kind == KindTransaction && pred == PredStatus:
		return func() { setIfPresent(&s.tx(id).status, value) }, nil
	case kind == KindTransaction && pred == PredIsCompliant:
		c, ok := ParseCompliance(value)
		if !ok || !c.Known() {
			return nil, errors.Newf("invalid boolean %q", value)
		}
		return func() { s.tx(id).compliance = c }, nil
	case kind == KindRule && pred == PredDescription:
		return func() { setIfPresent(&s.rule(id).description, value) }, nil
	case kind == KindRule && pred == PredSeverity:
		return func() { setIfPresent(&s.rule(id).severity, value) }, nil
	}
	return nil, errors.Newf("unknown predicate %s for %s", pred, kind)
}

func objectTarget(subject Kind, pred string) (Kind, bool) {
	switch {
	case subject == KindClient && pred == PredHasAccount:
		return KindAccount, true
	case subject == KindAccount && pred == PredHasTransaction:
		return KindTransaction, true
	case subject == KindTransaction && (pred == PredCompliantWith || pred == PredViolatesRule):
		return KindRule, true
	}
	return "", false
}

func (s *Store) ensure(kind Kind, id string) {
	switch kind {
	case KindClient:
		s.client(id)
	case KindAccount:
		s.account(id)
	case KindTransaction:
		s.tx(id)
	case KindRule:
		s.rule(id)
	}
}

func formatNTriple(t Triple) string {
	var b strings.Builder
	b.WriteString("<" + t.Subject + "> <" + t.Predicate + "> ")
	if t.Object.IRI {
		b.WriteString("<" + t.Object.Value + ">")
	} else {
		b.WriteString(`"` + escapeLiteral(t.Object.Value) + `"`)
		if t.Object.Datatype != "" && t.Object.Datatype != XSDString {
			b.WriteString("^^<" + t.Object.Datatype + ">")
		}
	}
	b.WriteString(" .\n")
	return b.String()
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

// parseNTriple parses one statement. Blank nodes are not supported.
func parseNTriple(line string) (Triple, error) {
	rest := line
	subject, rest, err := readIRI(rest)
	if err != nil {
		return Triple{}, errors.Wrap(err, "subject")
	}
	predicate, rest, err := readIRI(rest)
	if err != nil {
		return Triple{}, errors.Wrap(err, "predicate")
	}

	var obj Term
	rest = strings.TrimLeft(rest, " \t")
	switch {
	case strings.HasPrefix(rest, "<"):
		var iri string
		iri, rest, err = readIRI(rest)
		if err != nil {
			return Triple{}, errors.Wrap(err, "object")
		}
		obj = IRITerm(iri)
	case strings.HasPrefix(rest, `"`):
		obj, rest, err = readLiteral(rest)
		if err != nil {
			return Triple{}, errors.Wrap(err, "object")
		}
	default:
		return Triple{}, errors.Newf("unsupported object %q", rest)
	}

	if strings.TrimSpace(rest) != "." {
		return Triple{}, errors.New("statement must end with '.'")
	}
	return Triple{Subject: subject, Predicate: predicate, Object: obj}, nil
}

func readIRI(s string) (string, string, error) {
	s = strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(s, "<") {
		return "", s, errors.New("expected '<'")
	}
	end := strings.IndexByte(s, '>')
	if end < 0 {
		return "", s, errors.New("unterminated IRI")
	}
	return s[1:end], s[end+1:], nil
}

func readLiteral(s string) (Term, string, error) {
	var b strings.Builder
	i := 1
	for ; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			break
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return Term{}, s, errors.New("dangling escape")
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '"', '\\':
			b.WriteByte(s[i])
		default:
			return Term{}, s, errors.Newf("unsupported escape \\%c", s[i])
		}
	}
	if i >= len(s) {
		return Term{}, s, errors.New("unterminated literal")
	}

	term := Literal(b.String(), XSDString)
	rest := s[i+1:]
	switch {
	case strings.HasPrefix(rest, "^^"):
		dt, after, err := readIRI(rest[2:])
		if err != nil {
			return Term{}, s, errors.Wrap(err, "datatype")
		}
		term.Datatype = dt
		rest = after
	case strings.HasPrefix(rest, "@"):
		// language tags are accepted and dropped
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}
		rest = rest[end:]
	}
	return term, rest, nil
}
