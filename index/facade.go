// Package index is the C1 Index Facade: a read-only view over per-field
// corpus statistics, per-document field lengths, the external/internal
// docid mapping, per-term posting lists, and term vectors. Two
// implementations share the Facade interface — MemFacade (adapted from the
// teacher's MemOnlyIndex) and BadgerFacade (a disk-backed facade over
// github.com/dgraph-io/badger/v4, grounded in straga-Mimir_lite's storage
// engine) — so a caller can swap the backing store without touching the
// query/eval/prf/diversify layers above it, all of which depend only on
// this interface (or the narrower query.PostingSource / query.CorpusStats
// / eval.DocidResolver slices of it).
package index

import "github.com/rekki/qeval/query"

// TermVector is the per-(docid,field) parallel-array structure: the
// distinct stems that occur (index 0 reserved as a null sentinel), their
// in-document frequency, their collection-wide frequency, and the
// stem-index at every token position.
type TermVector struct {
	Stems         []string
	StemFreq      []int
	TotalStemFreq []int64
	Positions     []int
}

// Facade is the full C1 read surface.
type Facade interface {
	NumDocs() int
	DocCount(field string) int
	SumOfFieldLengths(field string) int64
	FieldLength(field string, docid uint32) int
	DocFreq(field, term string) int
	TotalTermFreq(field, term string) int64
	InternalDocid(externalDocid string) (uint32, bool)
	ExternalDocid(docid uint32) string
	Attribute(name string, docid uint32) (string, bool)
	Postings(field, term string) query.InvertedList
	TermVector(docid uint32, field string) (TermVector, error)
}

var _ query.PostingSource = Facade(nil)
var _ query.CorpusStats = Facade(nil)
