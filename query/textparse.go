package query

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseText is the minimal structural reader for the query-file grammar
// (`#AND`, `#OR`, `#SUM`, `#WAND w1 t1 w2 t2 …`, `#WSUM …`, `#SYN`,
// `#NEAR/k`, `#WINDOW/k`, field-qualified `word.field` terms). The
// query parser/tokenizer is treated as an external collaborator elsewhere;
// this function exists only as the minimal glue needed to make the CLI
// entrypoint runnable end to end against that grammar, and does no
// linguistic analysis (no stemming, no normalization) — every token is
// used as-is as a term.
func ParseText(qstring string) (*Expr, error) {
	toks := tokenize(qstring)
	p := &tokenParser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, &UnsupportedOperatorError{Op: "parse", Reason: "trailing tokens after query"}
	}
	return expr, nil
}

func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '(' || r == ')':
			flush()
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type tokenParser struct {
	toks []string
	pos  int
}

func (p *tokenParser) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}
	return p.toks[p.pos], true
}

func (p *tokenParser) next() (string, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *tokenParser) expect(tok string) error {
	t, ok := p.next()
	if !ok || t != tok {
		return &UnsupportedOperatorError{Op: "parse", Reason: fmt.Sprintf("expected %q, got %q", tok, t)}
	}
	return nil
}

func (p *tokenParser) parseExpr() (*Expr, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, &UnsupportedOperatorError{Op: "parse", Reason: "unexpected end of query"}
	}

	if strings.HasPrefix(tok, "#") {
		p.next()
		name, k := splitOpName(tok[1:])
		if err := p.expect("("); err != nil {
			return nil, err
		}

		op := strings.ToLower(name)
		expr := &Expr{Op: op, K: k}
		switch op {
		case "wand", "wsum":
			for {
				t, ok := p.peek()
				if !ok {
					return nil, &UnsupportedOperatorError{Op: "parse", Reason: "unterminated " + tok}
				}
				if t == ")" {
					break
				}
				wtok, _ := p.next()
				weight, err := strconv.ParseFloat(wtok, 64)
				if err != nil {
					return nil, &UnsupportedOperatorError{Op: "parse", Reason: "expected weight, got " + wtok}
				}
				child, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				child.Weight = weight
				expr.Children = append(expr.Children, child)
			}
		default:
			for {
				t, ok := p.peek()
				if !ok {
					return nil, &UnsupportedOperatorError{Op: "parse", Reason: "unterminated " + tok}
				}
				if t == ")" {
					break
				}
				child, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				expr.Children = append(expr.Children, child)
			}
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}

	p.next()
	field, term := splitFieldQualified(tok)
	return &Expr{Op: "term", Field: field, Term: term}, nil
}

// splitOpName splits an operator token like "NEAR/2" into ("NEAR", 2); an
// operator with no "/k" suffix returns k=0.
func splitOpName(s string) (string, int) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		k, err := strconv.Atoi(s[i+1:])
		if err != nil {
			k = 0
		}
		return s[:i], k
	}
	return s, 0
}

// splitFieldQualified splits "word.field" into ("field", "word"); a term
// with no "." qualifier returns field="".
func splitFieldQualified(s string) (field, term string) {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:], s[:i]
	}
	return "", s
}
