package index

import "github.com/rekki/qeval/query"

// builtIndex is the corpus-wide structure both facades compute a bulk load
// from. MemFacade keeps it as its live state; BadgerFacade computes it once
// and serializes every piece of it into badger, so the two storage engines
// share exactly one notion of what "indexing a document" means.
type builtIndex struct {
	forward       []Document
	extToInt      map[string]uint32
	postings      map[string]map[string]query.InvertedList
	fieldDocCount map[string]int
	fieldSumLen   map[string]int64
	fieldLen      map[string]map[uint32]int
	termDf        map[string]map[string]int
	termCtf       map[string]map[string]int64
	termVectors   map[uint32]map[string]TermVector
}

func newBuiltIndex() *builtIndex {
	return &builtIndex{
		extToInt:      map[string]uint32{},
		postings:      map[string]map[string]query.InvertedList{},
		fieldDocCount: map[string]int{},
		fieldSumLen:   map[string]int64{},
		fieldLen:      map[string]map[uint32]int{},
		termDf:        map[string]map[string]int{},
		termCtf:       map[string]map[string]int64{},
		termVectors:   map[uint32]map[string]TermVector{},
	}
}

// buildIndex indexes docs from scratch: one pass to accumulate postings and
// corpus statistics, a second to build per-document term vectors now that
// TotalStemFreq (a collection-wide count) is known.
func buildIndex(docs []Document) *builtIndex {
	b := newBuiltIndex()
	for _, d := range docs {
		b.indexOne(d)
	}
	for did, d := range b.forward {
		b.termVectors[uint32(did)] = map[string]TermVector{}
		for field, tokens := range d.Fields() {
			b.termVectors[uint32(did)][field] = b.buildTermVector(field, tokens)
		}
	}
	return b
}

func (b *builtIndex) indexOne(d Document) uint32 {
	did := uint32(len(b.forward))
	b.forward = append(b.forward, d)
	b.extToInt[d.ExternalID()] = did

	for field, tokens := range d.Fields() {
		b.fieldDocCount[field]++
		b.fieldSumLen[field] += int64(len(tokens))
		if b.fieldLen[field] == nil {
			b.fieldLen[field] = map[uint32]int{}
		}
		b.fieldLen[field][did] = len(tokens)

		if b.postings[field] == nil {
			b.postings[field] = map[string]query.InvertedList{}
		}
		if b.termDf[field] == nil {
			b.termDf[field] = map[string]int{}
		}
		if b.termCtf[field] == nil {
			b.termCtf[field] = map[string]int64{}
		}

		seen := map[string]bool{}
		for pos, term := range tokens {
			b.addPosting(field, term, did, uint32(pos))
			b.termCtf[field][term]++
			if !seen[term] {
				seen[term] = true
				b.termDf[field][term]++
			}
		}
	}
	return did
}

func (b *builtIndex) addPosting(field, term string, did, pos uint32) {
	list := b.postings[field][term]
	if n := len(list); n > 0 && list[n-1].Docid == did {
		list[n-1].Positions = append(list[n-1].Positions, pos)
		return
	}
	b.postings[field][term] = append(list, query.Posting{Docid: did, Positions: []uint32{pos}})
}

// buildTermVector builds the C3-style parallel-array term vector for one
// document's field: index 0 is reserved as a null stem, every distinct
// token that follows gets the next index in order of first appearance.
func (b *builtIndex) buildTermVector(field string, tokens []string) TermVector {
	tv := TermVector{Stems: []string{""}, StemFreq: []int{0}, TotalStemFreq: []int64{0}}
	index := map[string]int{}
	for _, term := range tokens {
		i, ok := index[term]
		if !ok {
			i = len(tv.Stems)
			index[term] = i
			tv.Stems = append(tv.Stems, term)
			tv.StemFreq = append(tv.StemFreq, 0)
			tv.TotalStemFreq = append(tv.TotalStemFreq, b.termCtf[field][term])
		}
		tv.StemFreq[i]++
		tv.Positions = append(tv.Positions, i)
	}
	return tv
}
