// Package query implements the operator tree that C2-C5 of the retrieval
// core are built from: posting iteration, positional (synthesizing)
// operators, scoring operators, and the retrieval models that parameterize
// them.
//
// The shape of the core interfaces here — a Query that is both a matcher
// (Next/GetDocId/NO_MORE) and a scorer (Score) — is carried over from
// github.com/rekki/go-query's iq.Query, the package this module's teacher
// (github.com/rekki/go-query-index) compiles queries down to. That package
// itself isn't imported: reimplementing it, generalized to positions and to
// four retrieval models instead of one, is the point of this core.
package query

// Posting is a single document's occurrence of a term (or of a synthesized
// positional match): the document's internal id and the strictly increasing
// token positions at which it occurred.
type Posting struct {
	Docid     uint32
	Positions []uint32
}

// InvertedList is a sequence of Postings sorted by Docid ascending, with no
// duplicate Docid and strictly increasing Positions within each Posting.
type InvertedList []Posting

// NoMore is the sentinel docid a ScoringInvariantViolatedError reports when
// the Score leaf it names is already exhausted.
const NoMore = ^uint32(0)

// IopBase is the shared cursor mechanics every posting-backed operator
// (term, synonym, near, window) embeds. It owns the (possibly synthesized)
// inverted list for the query's lifetime and a single forward cursor.
type IopBase struct {
	list InvertedList
	i    int
}

func newIopBase(list InvertedList) IopBase {
	return IopBase{list: list}
}

// HasMatch reports whether the cursor still points at a posting.
func (b *IopBase) HasMatch() bool {
	return b.i < len(b.list)
}

// CurrentDocid returns the docid at the cursor. Precondition: HasMatch().
func (b *IopBase) CurrentDocid() uint32 {
	return b.list[b.i].Docid
}

// CurrentPosting returns the posting at the cursor. Precondition: HasMatch().
func (b *IopBase) CurrentPosting() Posting {
	return b.list[b.i]
}

// AdvancePast moves the cursor to the least index whose docid is strictly
// greater than d, or past the end of the list.
func (b *IopBase) AdvancePast(d uint32) {
	n := len(b.list)
	for b.i < n && b.list[b.i].Docid <= d {
		b.i++
	}
}

// List exposes the underlying (already synthesized, for positional ops)
// inverted list, used by Df/Ctf bookkeeping.
func (b *IopBase) List() InvertedList {
	return b.list
}

// Df is the number of postings in the list: the operator's own document
// frequency, which for Syn/Near/Window is the frequency of the synthesized
// match, not any single child's.
func (b *IopBase) Df() int {
	return len(b.list)
}

// Ctf is the collection term frequency of the list: the sum of position
// counts across every posting.
func (b *IopBase) Ctf() int {
	total := 0
	for _, p := range b.list {
		total += len(p.Positions)
	}
	return total
}

// TfOfDoc is the term frequency of the current posting, i.e. the number of
// matching positions for the document under the cursor. Precondition:
// HasMatch().
func (b *IopBase) TfOfDoc() int {
	return len(b.list[b.i].Positions)
}
