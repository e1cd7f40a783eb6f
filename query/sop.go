package query

import "math"

// CorpusStats is the slice of the index facade (C1) that scoring operators
// need to turn raw tf/df/ctf into a model score: per-field corpus size and
// per-document field length.
type CorpusStats interface {
	DocCount(field string) int
	SumOfFieldLengths(field string) int64
	FieldLength(field string, docid uint32) int
}

// ScoringOperator is the C4 capability set: a matcher (HasMatch/
// CurrentDocid/AdvancePast) plus a scorer (Score/DefaultScore). Composite
// operators own other ScoringOperators; Score owns a single PositionalOperator.
type ScoringOperator interface {
	Initialize(model Model) error
	HasMatch(model Model) bool
	CurrentDocid() uint32
	AdvancePast(docid uint32)
	// Score returns this operator's score at CurrentDocid(). Precondition:
	// HasMatch(model). Violating it is a ScoringInvariantViolatedError.
	Score(model Model) (float64, error)
	// DefaultScore is the smoothed background score this operator
	// contributes for docid d when it does not currently match d. Only
	// Indri ever calls this; other models never need a value here.
	DefaultScore(model Model, docid uint32) float64
}

// scoreOrDefault implements q_i.score_or_default(d) from spec §4.4: the
// operator's real score if it is currently on d, its default otherwise.
// This is what lets Indri composites recurse correctly over children that
// don't all match the same docid.
func scoreOrDefault(op ScoringOperator, model Model, d uint32) float64 {
	if op.HasMatch(model) && op.CurrentDocid() == d {
		s, err := op.Score(model)
		if err == nil {
			return s
		}
	}
	return op.DefaultScore(model, d)
}

// --- Score: the single leaf scoring node, wrapping one positional operator ---

// ScoreOp is the C4 `Score` leaf: it scores a single positional subtree
// (a term, synonym, near, or window match) under the active model.
type ScoreOp struct {
	child   PositionalOperator
	field   string
	term    string
	corpus  CorpusStats
}

// NewScore builds a Score node over a positional subtree. term is used only
// for presentation (e.g. LTR feature labeling); scoring reads tf/df/ctf off
// the child itself.
func NewScore(child PositionalOperator, field, term string, corpus CorpusStats) *ScoreOp {
	return &ScoreOp{child: child, field: field, term: term, corpus: corpus}
}

func (s *ScoreOp) Initialize(model Model) error { return s.child.Initialize() }
func (s *ScoreOp) HasMatch(model Model) bool     { return s.child.HasMatch() }
func (s *ScoreOp) CurrentDocid() uint32          { return s.child.CurrentDocid() }
func (s *ScoreOp) AdvancePast(d uint32)          { s.child.AdvancePast(d) }

func (s *ScoreOp) Score(model Model) (float64, error) {
	if !s.HasMatch(model) {
		return 0, &ScoringInvariantViolatedError{Op: "Score(" + s.term + ")", Docid: NoMore}
	}
	d := s.CurrentDocid()
	tf := s.child.TfOfDoc()

	switch m := model.(type) {
	case UnrankedBoolean:
		return 1.0, nil
	case RankedBoolean:
		return float64(tf), nil
	case BM25:
		return s.bm25Score(m, tf, d), nil
	case Indri:
		return s.indriScore(m, tf, d), nil
	default:
		return 0, &UnsupportedOperatorError{Op: "Score", Reason: "unknown model"}
	}
}

func (s *ScoreOp) DefaultScore(model Model, d uint32) float64 {
	switch m := model.(type) {
	case Indri:
		return s.indriScore(m, 0, d)
	default:
		return 0
	}
}

func (s *ScoreOp) bm25Score(m BM25, tf int, d uint32) float64 {
	df := s.child.Df()
	n := float64(s.corpus.DocCount(s.field))
	L := float64(s.corpus.FieldLength(s.field, d))
	avgL := float64(s.corpus.SumOfFieldLengths(s.field)) / n

	rsj := math.Log((n - float64(df) + 0.5) / (float64(df) + 0.5))
	if rsj < 0 {
		rsj = 0
	}
	tfW := float64(tf) / (float64(tf) + m.K1*((1-m.B)+m.B*L/avgL))
	// userW = (k3+1)*qtf/(k3+qtf) with qtf=1 for a bare Score leaf, which
	// is algebraically 1 for any k3 — the query-term-frequency weighting
	// only has an effect once a weighted composite op rescales it.
	userW := 1.0
	return rsj * tfW * userW
}

func (s *ScoreOp) indriScore(m Indri, tf int, d uint32) float64 {
	ctf := float64(s.child.Ctf())
	totalFieldLength := float64(s.corpus.SumOfFieldLengths(s.field))
	var pMLE float64
	if ctf == 0 {
		pMLE = 0.5 / totalFieldLength
	} else {
		pMLE = ctf / totalFieldLength
	}
	L := float64(s.corpus.FieldLength(s.field, d))
	return (1-m.Lambda)*(float64(tf)+m.Mu*pMLE)/(L+m.Mu) + m.Lambda*pMLE
}

// --- shared composite matcher mixins ---

type unionMatcher struct {
	children []ScoringOperator
}

func (u *unionMatcher) HasMatch(model Model) bool {
	_, ok := minDocidSop(u.children, model)
	return ok
}

func (u *unionMatcher) CurrentDocid() uint32 {
	d, _ := minDocidSop(u.children, nil)
	return d
}

func (u *unionMatcher) AdvancePast(d uint32) {
	for _, c := range u.children {
		c.AdvancePast(d)
	}
}

func minDocidSop(children []ScoringOperator, model Model) (uint32, bool) {
	found := false
	var min uint32
	for _, c := range children {
		if !c.HasMatch(model) {
			continue
		}
		d := c.CurrentDocid()
		if !found || d < min {
			min = d
			found = true
		}
	}
	return min, found
}

type intersectionMatcher struct {
	children []ScoringOperator
}

func (a *intersectionMatcher) HasMatch(model Model) bool {
	_, ok := a.align(model)
	return ok
}

func (a *intersectionMatcher) CurrentDocid() uint32 {
	d, _ := a.align(nil)
	return d
}

func (a *intersectionMatcher) AdvancePast(d uint32) {
	for _, c := range a.children {
		c.AdvancePast(d)
	}
}

// align repeatedly advances the child with the smallest current docid past
// that docid until every child shares one, or any child is exhausted.
func (a *intersectionMatcher) align(model Model) (uint32, bool) {
	for {
		allMatch := true
		var min, max uint32
		first := true
		for _, c := range a.children {
			if !c.HasMatch(model) {
				allMatch = false
				break
			}
			d := c.CurrentDocid()
			if first {
				min, max = d, d
				first = false
			} else {
				if d < min {
					min = d
				}
				if d > max {
					max = d
				}
			}
		}
		if !allMatch {
			return 0, false
		}
		if min == max {
			return min, true
		}
		for _, c := range a.children {
			if c.CurrentDocid() < max {
				c.AdvancePast(max - 1)
			}
		}
	}
}

func initChildren(children []ScoringOperator, model Model) error {
	for _, c := range children {
		if err := c.Initialize(model); err != nil {
			return err
		}
	}
	return nil
}

// userWeightTerm is BM25's (k3+1)*qtf/(k3+qtf) user-weight factor, applied
// per child inside a weighted composite (WAnd/WSum) where qtf is the
// child's configured weight.
func userWeightTerm(k3, qtf float64) float64 {
	if k3+qtf == 0 {
		return 0
	}
	return (k3 + 1) * qtf / (k3 + qtf)
}

// --- And: strict intersection ---

// AndOp is the unweighted C4 `And`: matches only where every child matches
// the same docid.
type AndOp struct {
	intersectionMatcher
}

func NewAnd(children []ScoringOperator) *AndOp {
	return &AndOp{intersectionMatcher{children}}
}

func (a *AndOp) Initialize(model Model) error { return initChildren(a.children, model) }

func (a *AndOp) Score(model Model) (float64, error) {
	if !a.HasMatch(model) {
		return 0, &ScoringInvariantViolatedError{Op: "And", Docid: a.CurrentDocid()}
	}
	d := a.CurrentDocid()
	switch m := model.(type) {
	case UnrankedBoolean:
		return 1.0, nil
	case RankedBoolean:
		return minChildScore(a.children, model), nil
	case BM25:
		return sumMatchingChildScores(a.children, model, d), nil
	case Indri:
		return geometricMean(a.children, model, nil, d), nil
	default:
		return 0, &UnsupportedOperatorError{Op: "And", Reason: "unknown model"}
	}
}

func (a *AndOp) DefaultScore(model Model, d uint32) float64 {
	if _, ok := model.(Indri); ok {
		return geometricMean(a.children, model, nil, d)
	}
	return 0
}

func minChildScore(children []ScoringOperator, model Model) float64 {
	min := math.Inf(1)
	for _, c := range children {
		s, err := c.Score(model)
		if err != nil {
			continue
		}
		if s < min {
			min = s
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

func sumMatchingChildScores(children []ScoringOperator, model Model, d uint32) float64 {
	sum := 0.0
	for _, c := range children {
		if c.HasMatch(model) && c.CurrentDocid() == d {
			s, err := c.Score(model)
			if err == nil {
				sum += s
			}
		}
	}
	return sum
}

func maxChildScore(children []ScoringOperator, model Model, d uint32) float64 {
	max := 0.0
	first := true
	for _, c := range children {
		if c.HasMatch(model) && c.CurrentDocid() == d {
			s, err := c.Score(model)
			if err != nil {
				continue
			}
			if first || s > max {
				max = s
				first = false
			}
		}
	}
	return max
}

func geometricMean(children []ScoringOperator, model Model, weights []float64, d uint32) float64 {
	totalWeight := 0.0
	if weights == nil {
		totalWeight = float64(len(children))
	} else {
		for _, w := range weights {
			totalWeight += w
		}
	}
	logSum := 0.0
	for i, c := range children {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		s := scoreOrDefault(c, model, d)
		if s <= 0 {
			// a zero/negative component collapses the whole geometric
			// mean; guard against log(0) by treating it as a hard zero.
			return 0
		}
		logSum += (w / totalWeight) * math.Log(s)
	}
	return math.Exp(logSum)
}

func arithmeticMean(children []ScoringOperator, model Model, weights []float64, d uint32) float64 {
	totalWeight := 0.0
	if weights == nil {
		totalWeight = float64(len(children))
	} else {
		for _, w := range weights {
			totalWeight += w
		}
	}
	sum := 0.0
	for i, c := range children {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sum += (w / totalWeight) * scoreOrDefault(c, model, d)
	}
	return sum
}

// weightedSumMatchingOnly sums weight_i*score_i over only the children that
// currently match d, with no normalization and no default scores — the
// shape Ranked Boolean's Sum already uses, generalized with a weight.
func weightedSumMatchingOnly(children []ScoringOperator, weights []float64, model Model, d uint32) float64 {
	sum := 0.0
	for i, c := range children {
		if c.HasMatch(model) && c.CurrentDocid() == d {
			s, err := c.Score(model)
			if err == nil {
				sum += weights[i] * s
			}
		}
	}
	return sum
}

func noisyOr(children []ScoringOperator, model Model, d uint32) float64 {
	prod := 1.0
	for _, c := range children {
		prod *= 1 - scoreOrDefault(c, model, d)
	}
	return 1 - prod
}

// --- Or: union, max ---

// OrOp is the C4 `Or`: matches wherever any child matches.
type OrOp struct {
	unionMatcher
}

func NewOr(children []ScoringOperator) *OrOp {
	return &OrOp{unionMatcher{children}}
}

func (o *OrOp) Initialize(model Model) error { return initChildren(o.children, model) }

func (o *OrOp) Score(model Model) (float64, error) {
	if !o.HasMatch(model) {
		return 0, &ScoringInvariantViolatedError{Op: "Or", Docid: o.CurrentDocid()}
	}
	d := o.CurrentDocid()
	switch model.(type) {
	case UnrankedBoolean:
		return 1.0, nil
	case RankedBoolean, BM25:
		return maxChildScore(o.children, model, d), nil
	case Indri:
		return noisyOr(o.children, model, d), nil
	default:
		return 0, &UnsupportedOperatorError{Op: "Or", Reason: "unknown model"}
	}
}

func (o *OrOp) DefaultScore(model Model, d uint32) float64 {
	if _, ok := model.(Indri); ok {
		return noisyOr(o.children, model, d)
	}
	return 0
}

// --- Sum: union, unweighted sum/mean ---

// SumOp is the C4 `Sum`: the unweighted accumulator.
type SumOp struct {
	unionMatcher
}

func NewSum(children []ScoringOperator) *SumOp {
	return &SumOp{unionMatcher{children}}
}

func (s *SumOp) Initialize(model Model) error { return initChildren(s.children, model) }

func (s *SumOp) Score(model Model) (float64, error) {
	if !s.HasMatch(model) {
		return 0, &ScoringInvariantViolatedError{Op: "Sum", Docid: s.CurrentDocid()}
	}
	d := s.CurrentDocid()
	switch model.(type) {
	case UnrankedBoolean:
		return 1.0, nil
	case RankedBoolean, BM25:
		return sumMatchingChildScores(s.children, model, d), nil
	case Indri:
		return arithmeticMean(s.children, model, nil, d), nil
	default:
		return 0, &UnsupportedOperatorError{Op: "Sum", Reason: "unknown model"}
	}
}

func (s *SumOp) DefaultScore(model Model, d uint32) float64 {
	if _, ok := model.(Indri); ok {
		return arithmeticMean(s.children, model, nil, d)
	}
	return 0
}

// --- weighted base for WAnd/WSum ---

type weightedOp struct {
	unionMatcher
	weights     []float64
	totalWeight float64
}

func newWeightedOp(children []ScoringOperator, weights []float64) weightedOp {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	return weightedOp{unionMatcher{children}, weights, total}
}

func (w *weightedOp) bm25WeightedSum(model Model, d uint32, k3 float64) float64 {
	sum := 0.0
	for i, c := range w.children {
		if c.HasMatch(model) && c.CurrentDocid() == d {
			s, err := c.Score(model)
			if err == nil {
				sum += s * userWeightTerm(k3, w.weights[i])
			}
		}
	}
	return sum
}

// WAndOp is the C4 `WAnd`: union-matching, weighted. Despite the name, its
// has_match rule is a union, same as Or/Sum/WSum — only
// its scoring formula treats weights the way a weighted AND combination
// would (product under Indri).
type WAndOp struct {
	weightedOp
}

func NewWAnd(children []ScoringOperator, weights []float64) *WAndOp {
	return &WAndOp{newWeightedOp(children, weights)}
}

func (w *WAndOp) Initialize(model Model) error { return initChildren(w.children, model) }

func (w *WAndOp) Score(model Model) (float64, error) {
	if !w.HasMatch(model) {
		return 0, &ScoringInvariantViolatedError{Op: "WAnd", Docid: w.CurrentDocid()}
	}
	d := w.CurrentDocid()
	switch m := model.(type) {
	case UnrankedBoolean:
		return 1.0, nil
	case RankedBoolean:
		return weightedSumMatchingOnly(w.children, w.weights, model, d), nil
	case BM25:
		return w.bm25WeightedSum(model, d, m.K3), nil
	case Indri:
		return geometricMean(w.children, model, w.weights, d), nil
	default:
		return 0, &UnsupportedOperatorError{Op: "WAnd", Reason: "unknown model"}
	}
}

func (w *WAndOp) DefaultScore(model Model, d uint32) float64 {
	if _, ok := model.(Indri); ok {
		return geometricMean(w.children, model, w.weights, d)
	}
	return 0
}

// WSumOp is the C4 `WSum`: union-matching, weighted arithmetic accumulator.
type WSumOp struct {
	weightedOp
}

func NewWSum(children []ScoringOperator, weights []float64) *WSumOp {
	return &WSumOp{newWeightedOp(children, weights)}
}

func (w *WSumOp) Initialize(model Model) error { return initChildren(w.children, model) }

func (w *WSumOp) Score(model Model) (float64, error) {
	if !w.HasMatch(model) {
		return 0, &ScoringInvariantViolatedError{Op: "WSum", Docid: w.CurrentDocid()}
	}
	d := w.CurrentDocid()
	switch m := model.(type) {
	case UnrankedBoolean:
		return 1.0, nil
	case RankedBoolean:
		return weightedSumMatchingOnly(w.children, w.weights, model, d), nil
	case BM25:
		return w.bm25WeightedSum(model, d, m.K3), nil
	case Indri:
		return arithmeticMean(w.children, model, w.weights, d), nil
	default:
		return 0, &UnsupportedOperatorError{Op: "WSum", Reason: "unknown model"}
	}
}

func (w *WSumOp) DefaultScore(model Model, d uint32) float64 {
	if _, ok := model.(Indri); ok {
		return arithmeticMean(w.children, model, w.weights, d)
	}
	return 0
}
