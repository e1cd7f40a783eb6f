package index

import (
	"sync"

	"github.com/rekki/qeval/query"
)

// MemFacade is an in-memory Facade: a forward array of documents plus
// postings/statistics maps, guarded by one RWMutex. It carries positions
// (for the positional operators) and the per-field corpus statistics the
// retrieval models need, and it has no delete path — a Facade is a
// read-only snapshot for the lifetime of a run.
type MemFacade struct {
	sync.RWMutex
	idx *builtIndex
}

// NewMemFacade indexes docs and returns a ready-to-query Facade.
func NewMemFacade(docs []Document) *MemFacade {
	return &MemFacade{idx: buildIndex(docs)}
}

// Index appends more documents to an existing facade, reindexing from
// scratch. It exists for the same incremental-ingest convenience the
// teacher's MemOnlyIndex.Index offered, not for concurrent-with-queries
// mutation: callers that need that should rebuild a new MemFacade instead.
func (m *MemFacade) Index(docs ...Document) {
	m.Lock()
	defer m.Unlock()
	all := append(append([]Document{}, m.idx.forward...), docs...)
	m.idx = buildIndex(all)
}

func (m *MemFacade) NumDocs() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.idx.forward)
}

func (m *MemFacade) DocCount(field string) int {
	m.RLock()
	defer m.RUnlock()
	return m.idx.fieldDocCount[field]
}

func (m *MemFacade) SumOfFieldLengths(field string) int64 {
	m.RLock()
	defer m.RUnlock()
	return m.idx.fieldSumLen[field]
}

func (m *MemFacade) FieldLength(field string, docid uint32) int {
	m.RLock()
	defer m.RUnlock()
	return m.idx.fieldLen[field][docid]
}

func (m *MemFacade) DocFreq(field, term string) int {
	m.RLock()
	defer m.RUnlock()
	return m.idx.termDf[field][term]
}

func (m *MemFacade) TotalTermFreq(field, term string) int64 {
	m.RLock()
	defer m.RUnlock()
	return m.idx.termCtf[field][term]
}

func (m *MemFacade) InternalDocid(externalDocid string) (uint32, bool) {
	m.RLock()
	defer m.RUnlock()
	d, ok := m.idx.extToInt[externalDocid]
	return d, ok
}

func (m *MemFacade) ExternalDocid(docid uint32) string {
	m.RLock()
	defer m.RUnlock()
	if int(docid) >= len(m.idx.forward) {
		return ""
	}
	return m.idx.forward[docid].ExternalID()
}

func (m *MemFacade) Attribute(name string, docid uint32) (string, bool) {
	m.RLock()
	defer m.RUnlock()
	if int(docid) >= len(m.idx.forward) {
		return "", false
	}
	return m.idx.forward[docid].Attribute(name)
}

func (m *MemFacade) Postings(field, term string) query.InvertedList {
	m.RLock()
	defer m.RUnlock()
	return m.idx.postings[field][term]
}

func (m *MemFacade) TermVector(docid uint32, field string) (TermVector, error) {
	m.RLock()
	defer m.RUnlock()
	if int(docid) >= len(m.idx.forward) {
		return TermVector{}, &UnknownDocidError{Op: "TermVector", Docid: docid, Cause: errDocidNotAssigned}
	}
	tv, ok := m.idx.termVectors[docid][field]
	if !ok {
		return TermVector{}, &UnknownFieldError{Op: "TermVector", Field: field, Cause: errFieldNotIndexed}
	}
	return tv, nil
}

var _ Facade = (*MemFacade)(nil)
