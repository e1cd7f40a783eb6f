package query

import "sort"

// PositionalOperator is the capability set every C3 node exposes: the
// matcher contract of IopBase plus the field it is scoped to and the
// term-statistics accessors scoring operators read from. Implementations
// never downcast to a concrete type — composite scoring operators only ever
// see this interface.
type PositionalOperator interface {
	HasMatch() bool
	CurrentDocid() uint32
	CurrentPosting() Posting
	AdvancePast(d uint32)
	Field() string
	Df() int
	Ctf() int
	TfOfDoc() int
	// Initialize materializes any synthesized inverted list. Called exactly
	// once, before any matcher method, bottom-up over the tree.
	Initialize() error
}

// TermOp is a leaf positional operator: its inverted list comes directly
// from the index facade and is never synthesized.
type TermOp struct {
	IopBase
	field string
	term  string
}

// NewTerm builds a leaf term operator from a facade-supplied inverted list.
// An unknown term yields an empty list (per the facade's UnknownTerm
// contract), which simply never matches.
func NewTerm(field, term string, list InvertedList) *TermOp {
	return &TermOp{IopBase: newIopBase(list), field: field, term: term}
}

func (t *TermOp) Field() string    { return t.field }
func (t *TermOp) Term() string     { return t.term }
func (t *TermOp) Initialize() error { return nil }

// positionalChildren is the shared scaffolding for Syn/Near/Window: they all
// own an ordered sequence of other positional operators over one common
// field, synthesize a new list at Initialize, and otherwise behave exactly
// like IopBase over that synthesized list.
type positionalChildren struct {
	IopBase
	field    string
	children []PositionalOperator
}

func (p *positionalChildren) Field() string { return p.field }

func commonField(children []PositionalOperator) (string, error) {
	if len(children) == 0 {
		return "", &UnsupportedOperatorError{Op: "positional", Reason: "no children"}
	}
	field := children[0].Field()
	for _, c := range children[1:] {
		if c.Field() != field {
			return "", &UnsupportedOperatorError{Op: "positional", Reason: "children span different fields: " + field + " vs " + c.Field()}
		}
	}
	return field, nil
}

// advanceToCommonDocid advances every child past doc boundaries until all
// point at the same docid, or any child is exhausted. Returns (docid, true)
// on success.
func advanceToCommonDocid(children []PositionalOperator) (uint32, bool) {
	for {
		for _, c := range children {
			if !c.HasMatch() {
				return 0, false
			}
		}
		min, max := children[0].CurrentDocid(), children[0].CurrentDocid()
		for _, c := range children[1:] {
			d := c.CurrentDocid()
			if d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
		if min == max {
			return min, true
		}
		for _, c := range children {
			if c.CurrentDocid() < max {
				c.AdvancePast(max - 1)
			}
		}
	}
}

func advanceAllPast(children []PositionalOperator, d uint32) {
	for _, c := range children {
		c.AdvancePast(d)
	}
}

// --- Synonym ---

// SynOp is the synonym union operator: for each docid common to... actually
// synonym is the special case that does NOT require a common docid among
// *all* children, it unions the minimum-docid child's positions with every
// other child currently sitting on that same docid, and otherwise behaves
// as a minimum-docid union matcher (see Initialize).
type SynOp struct {
	positionalChildren
}

// NewSyn builds a synonym operator over children that must share a field.
func NewSyn(children []PositionalOperator) (*SynOp, error) {
	field, err := commonField(children)
	if err != nil {
		return nil, err
	}
	return &SynOp{positionalChildren{field: field, children: children}}, nil
}

func (s *SynOp) Initialize() error {
	for _, c := range s.children {
		if err := c.Initialize(); err != nil {
			return err
		}
	}

	out := InvertedList{}
	for {
		d, ok := minDocid(s.children)
		if !ok {
			break
		}

		positions := mergeSortedUnique(s.children, d)
		if len(positions) > 0 {
			out = append(out, Posting{Docid: d, Positions: positions})
		}
		for _, c := range s.children {
			if c.HasMatch() && c.CurrentDocid() == d {
				c.AdvancePast(d)
			}
		}
	}
	s.IopBase = newIopBase(out)
	return nil
}

func minDocid(children []PositionalOperator) (uint32, bool) {
	found := false
	var min uint32
	for _, c := range children {
		if !c.HasMatch() {
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

// mergeSortedUnique performs the min-heap-equivalent merge of every child
// currently on docid d: a straightforward k-way merge since every child's
// own position list is already sorted, with duplicates collapsed.
func mergeSortedUnique(children []PositionalOperator, d uint32) []uint32 {
	lists := make([][]uint32, 0, len(children))
	for _, c := range children {
		if c.HasMatch() && c.CurrentDocid() == d {
			lists = append(lists, append([]uint32{}, c.CurrentPosting().Positions...))
		}
	}
	merged := []uint32{}
	idx := make([]int, len(lists))
	for {
		best := -1
		var bestVal uint32
		for li, l := range lists {
			if idx[li] >= len(l) {
				continue
			}
			v := l[idx[li]]
			if best == -1 || v < bestVal {
				best = li
				bestVal = v
			}
		}
		if best == -1 {
			break
		}
		if len(merged) == 0 || merged[len(merged)-1] != bestVal {
			merged = append(merged, bestVal)
		}
		idx[best]++
	}
	return merged
}

// --- Ordered Near/k ---

// NearOp implements #NEAR/k: an ordered proximity match where each child's
// position must occur strictly after the previous child's chosen position
// and within k tokens of it.
type NearOp struct {
	positionalChildren
	k int
}

// NewNear builds an ordered-near operator with window k over children that
// must share a field; child order is significant.
func NewNear(k int, children []PositionalOperator) (*NearOp, error) {
	field, err := commonField(children)
	if err != nil {
		return nil, err
	}
	if len(children) < 2 {
		return nil, &UnsupportedOperatorError{Op: "near", Reason: "needs at least two children"}
	}
	return &NearOp{positionalChildren{field: field, children: children}, k}, nil
}

func (n *NearOp) Initialize() error {
	for _, c := range n.children {
		if err := c.Initialize(); err != nil {
			return err
		}
	}

	out := InvertedList{}
	for {
		d, ok := advanceToCommonDocid(n.children)
		if !ok {
			break
		}

		positions := nearPositionsForDoc(n.children, n.k, d)
		if len(positions) > 0 {
			out = append(out, Posting{Docid: d, Positions: positions})
		}
		advanceAllPast(n.children, d)
	}
	n.IopBase = newIopBase(out)
	return nil
}

// nearPositionsForDoc walks a cursor per child starting from child 0's
// lowest position; a successful chain emits the rightmost position and
// advances every cursor by one, a failed step only advances child 0's
// cursor.
func nearPositionsForDoc(children []PositionalOperator, k int, d uint32) []uint32 {
	lists := positionsOf(children, d)
	cursors := make([]int, len(lists))
	out := []uint32{}

	for cursors[0] < len(lists[0]) {
		ok := true
		prev := lists[0][cursors[0]]
		rightmost := prev
		localCursors := append([]int{}, cursors...)
		for ci := 1; ci < len(lists); ci++ {
			found := -1
			for j := localCursors[ci]; j < len(lists[ci]); j++ {
				p := lists[ci][j]
				if p > prev && p-prev <= uint32(k) {
					found = j
					break
				}
				if p > prev {
					// positions only grow; once beyond the window for this
					// prev it can never satisfy a larger prev either for
					// this same starting point, but prev only grows too —
					// keep scanning from here next time.
					break
				}
			}
			if found == -1 {
				ok = false
				break
			}
			localCursors[ci] = found
			prev = lists[ci][found]
			rightmost = prev
		}

		if ok {
			out = append(out, rightmost)
			for ci := range cursors {
				cursors[ci] = localCursors[ci] + 1
			}
		} else {
			cursors[0]++
		}
	}
	return out
}

func positionsOf(children []PositionalOperator, d uint32) [][]uint32 {
	out := make([][]uint32, len(children))
	for i, c := range children {
		if c.HasMatch() && c.CurrentDocid() == d {
			out[i] = c.CurrentPosting().Positions
		}
	}
	return out
}

// --- Unordered Window/k ---

// WindowOp implements #WINDOW/k: an unordered proximity match where all
// children's chosen positions must fit within a span of k tokens,
// regardless of order.
type WindowOp struct {
	positionalChildren
	k int
}

// NewWindow builds an unordered-window operator with span k.
func NewWindow(k int, children []PositionalOperator) (*WindowOp, error) {
	field, err := commonField(children)
	if err != nil {
		return nil, err
	}
	if len(children) < 2 {
		return nil, &UnsupportedOperatorError{Op: "window", Reason: "needs at least two children"}
	}
	return &WindowOp{positionalChildren{field: field, children: children}, k}, nil
}

func (w *WindowOp) Initialize() error {
	for _, c := range w.children {
		if err := c.Initialize(); err != nil {
			return err
		}
	}

	out := InvertedList{}
	for {
		d, ok := advanceToCommonDocid(w.children)
		if !ok {
			break
		}

		positions := windowPositionsForDoc(w.children, w.k, d)
		if len(positions) > 0 {
			out = append(out, Posting{Docid: d, Positions: positions})
		}
		advanceAllPast(w.children, d)
	}
	w.IopBase = newIopBase(out)
	return nil
}

// windowPositionsForDoc repeatedly computes the min/max position across a
// per-child cursor; if the span fits within k it emits pmax and advances
// every cursor, otherwise it advances the cursor(s) sitting at pmin.
func windowPositionsForDoc(children []PositionalOperator, k int, d uint32) []uint32 {
	lists := positionsOf(children, d)
	cursors := make([]int, len(lists))
	out := []uint32{}

	for {
		exhausted := false
		for i := range lists {
			if cursors[i] >= len(lists[i]) {
				exhausted = true
				break
			}
		}
		if exhausted {
			break
		}

		pmin, pmax := lists[0][cursors[0]], lists[0][cursors[0]]
		for i := 1; i < len(lists); i++ {
			v := lists[i][cursors[i]]
			if v < pmin {
				pmin = v
			}
			if v > pmax {
				pmax = v
			}
		}

		if pmax-pmin < uint32(k) {
			if len(out) == 0 || out[len(out)-1] != pmax {
				out = append(out, pmax)
			}
			for i := range cursors {
				cursors[i]++
			}
		} else {
			for i := range lists {
				if lists[i][cursors[i]] == pmin {
					cursors[i]++
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
