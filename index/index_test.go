package index

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type doc struct {
	id     string
	fields map[string][]string
	attrs  map[string]string
}

func (d *doc) ExternalID() string             { return d.id }
func (d *doc) Fields() map[string][]string    { return d.fields }
func (d *doc) Attribute(name string) (string, bool) {
	v, ok := d.attrs[name]
	return v, ok
}

func sampleDocs() []Document {
	return []Document{
		&doc{id: "docA", fields: map[string][]string{"body": {"the", "dog", "ran"}}, attrs: map[string]string{"inlink": "3"}},
		&doc{id: "docB", fields: map[string][]string{"body": {"the", "cat", "dog", "slept"}}, attrs: map[string]string{"inlink": "1"}},
	}
}

func TestMemFacadeCorpusStats(t *testing.T) {
	m := NewMemFacade(sampleDocs())
	require.Equal(t, 2, m.NumDocs())
	require.Equal(t, 2, m.DocCount("body"))
	require.Equal(t, int64(7), m.SumOfFieldLengths("body"))
	require.Equal(t, 3, m.FieldLength("body", 0))
	require.Equal(t, 4, m.FieldLength("body", 1))
	require.Equal(t, 2, m.DocFreq("body", "dog"))
	require.Equal(t, int64(2), m.TotalTermFreq("body", "dog"))
	require.Equal(t, 1, m.DocFreq("body", "cat"))
}

func TestMemFacadeDocidMapping(t *testing.T) {
	m := NewMemFacade(sampleDocs())
	d, ok := m.InternalDocid("docB")
	require.True(t, ok)
	require.Equal(t, uint32(1), d)
	require.Equal(t, "docA", m.ExternalDocid(0))

	_, ok = m.InternalDocid("missing")
	require.False(t, ok)

	v, ok := m.Attribute("inlink", 0)
	require.True(t, ok)
	require.Equal(t, "3", v)
}

func TestMemFacadePostingsArePositional(t *testing.T) {
	m := NewMemFacade(sampleDocs())
	list := m.Postings("body", "dog")
	require.Len(t, list, 2)
	require.Equal(t, uint32(0), list[0].Docid)
	require.Equal(t, []uint32{1}, list[0].Positions)
	require.Equal(t, uint32(1), list[1].Docid)
	require.Equal(t, []uint32{2}, list[1].Positions)

	require.Empty(t, m.Postings("body", "nonexistent"))
}

func TestMemFacadeTermVectorNullSentinel(t *testing.T) {
	m := NewMemFacade(sampleDocs())
	tv, err := m.TermVector(0, "body")
	require.NoError(t, err)
	require.Equal(t, "", tv.Stems[0])
	require.Equal(t, []string{"", "the", "dog", "ran"}, tv.Stems)
	require.Equal(t, []int{0, 1, 1, 1}, tv.StemFreq)
	require.Equal(t, []int{1, 2, 3}, tv.Positions)

	_, err = m.TermVector(99, "body")
	require.Error(t, err)
	var unk *UnknownDocidError
	require.ErrorAs(t, err, &unk)
}

func TestMemFacadeIndexAppends(t *testing.T) {
	m := NewMemFacade(sampleDocs()[:1])
	require.Equal(t, 1, m.NumDocs())
	m.Index(sampleDocs()[1])
	require.Equal(t, 2, m.NumDocs())
	require.Equal(t, 2, m.DocFreq("body", "dog"))
}

func TestBadgerFacadeInMemoryMatchesMemFacade(t *testing.T) {
	docs := sampleDocs()
	mem := NewMemFacade(docs)

	bf, err := OpenBadgerFacade("")
	require.NoError(t, err)
	defer bf.Close()
	require.NoError(t, bf.Load(docs))

	require.Equal(t, mem.NumDocs(), bf.NumDocs())
	require.Equal(t, mem.DocCount("body"), bf.DocCount("body"))
	require.Equal(t, mem.SumOfFieldLengths("body"), bf.SumOfFieldLengths("body"))
	require.Equal(t, mem.DocFreq("body", "dog"), bf.DocFreq("body", "dog"))
	require.Equal(t, mem.TotalTermFreq("body", "dog"), bf.TotalTermFreq("body", "dog"))

	wantList := mem.Postings("body", "dog")
	gotList := bf.Postings("body", "dog")
	require.Equal(t, wantList, gotList)

	ext, ok := bf.InternalDocid("docB")
	require.True(t, ok)
	require.Equal(t, uint32(1), ext)
	require.Equal(t, "docA", bf.ExternalDocid(0))

	tv, err := bf.TermVector(0, "body")
	require.NoError(t, err)
	require.Equal(t, mem.idx.termVectors[0]["body"], tv)
}

func TestBadgerFacadeUnknownFieldErrors(t *testing.T) {
	bf, err := OpenBadgerFacade("")
	require.NoError(t, err)
	defer bf.Close()
	require.NoError(t, bf.Load(sampleDocs()))

	_, err = bf.TermVector(0, "nosuchfield")
	require.Error(t, err)
	var unk *UnknownFieldError
	require.ErrorAs(t, err, &unk)
}
