package query

// Expr is the structured query expression C6 compiles into an operator
// tree. It is the already-tokenized shape the external query parser
// (out of scope for this package) is assumed to hand back — the shape
// mirrors `*spec.Query` (github.com/rekki/go-query/util/go_query_dsl), whose
// DirIndex.Parse compiles it into an iq.Query tree in exactly this
// two-step fashion (parse text -> AST is external; AST -> operator tree is
// this package's job).
type Expr struct {
	Op       string  // "term", "syn", "near", "window", "and", "or", "sum", "wand", "wsum"
	Field    string  // term field, e.g. "body"; empty means the default field
	Term     string  // term text, only set when Op == "term"
	K        int     // proximity window, only set for "near"/"window"
	Weight   float64 // this node's weight inside a parent wand/wsum; ignored elsewhere
	Children []*Expr
}

// PostingSource is the slice of the index facade the compiler needs to turn
// a leaf term into a posting list.
type PostingSource interface {
	Postings(field, term string) InvertedList
}

// Compile turns a structured query expression into a scoring operator tree
// rooted at a ScoringOperator, resolving field-qualified terms against src
// and corpus statistics against corpus. defaultField is used for any "term"
// node with no Field set.
func Compile(expr *Expr, src PostingSource, corpus CorpusStats, defaultField string) (ScoringOperator, error) {
	switch expr.Op {
	case "and", "or", "sum", "wand", "wsum":
		children := make([]ScoringOperator, 0, len(expr.Children))
		weights := make([]float64, 0, len(expr.Children))
		for _, c := range expr.Children {
			sop, err := Compile(c, src, corpus, defaultField)
			if err != nil {
				return nil, err
			}
			children = append(children, sop)
			w := c.Weight
			if w == 0 {
				w = 1
			}
			weights = append(weights, w)
		}
		switch expr.Op {
		case "and":
			return NewAnd(children), nil
		case "or":
			return NewOr(children), nil
		case "sum":
			return NewSum(children), nil
		case "wand":
			return NewWAnd(children, weights), nil
		case "wsum":
			return NewWSum(children, weights), nil
		}
	case "term", "syn", "near", "window":
		pos, field, term, err := compilePositional(expr, src, defaultField)
		if err != nil {
			return nil, err
		}
		return NewScore(pos, field, term, corpus), nil
	}
	return nil, &UnsupportedOperatorError{Op: expr.Op, Reason: "unrecognized query AST node"}
}

func compilePositional(expr *Expr, src PostingSource, defaultField string) (PositionalOperator, string, string, error) {
	field := expr.Field
	if field == "" {
		field = defaultField
	}

	switch expr.Op {
	case "term":
		list := src.Postings(field, expr.Term)
		return NewTerm(field, expr.Term, list), field, expr.Term, nil
	case "syn", "near", "window":
		children := make([]PositionalOperator, 0, len(expr.Children))
		for _, c := range expr.Children {
			pos, _, _, err := compilePositional(c, src, field)
			if err != nil {
				return nil, "", "", err
			}
			children = append(children, pos)
		}
		switch expr.Op {
		case "syn":
			op, err := NewSyn(children)
			return op, field, "#SYN", err
		case "near":
			op, err := NewNear(expr.K, children)
			return op, field, "#NEAR", err
		case "window":
			op, err := NewWindow(expr.K, children)
			return op, field, "#WINDOW", err
		}
	}
	return nil, "", "", &UnsupportedOperatorError{Op: expr.Op, Reason: "not a positional node"}
}
