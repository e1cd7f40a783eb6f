package index

import (
	"encoding/binary"
	"encoding/json"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rekki/qeval/query"
)

// Key layout, one byte prefix per logical partition — the same
// single-byte-prefix convention straga-Mimir_lite's storage engine uses for
// its node/edge/index partitions within one badger.DB:
//
//	0x01 posting   field \x00 term \x00 docid(4 big-endian)   -> json []uint32 positions
//	0x02 fieldstat field                                      -> json{DocCount,SumLen}
//	0x03 termstat  field \x00 term                             -> json{Df,Ctf}
//	0x04 fieldlen  field \x00 docid(4 big-endian)              -> 4-byte big-endian length
//	0x05 ext2int   externalID                                  -> 4-byte big-endian docid
//	0x06 int2ext   docid(4 big-endian)                         -> externalID bytes
//	0x07 attr      name \x00 docid(4 big-endian)                -> value bytes
//	0x08 termvec   field \x00 docid(4 big-endian)              -> json TermVector
//
// Docid is big-endian (not little-endian, as some comparable on-disk
// formats use) specifically so the posting and fieldlen keys sort numerically
// under badger's byte-lexicographic ordering, letting prefix iteration walk
// a posting list in ascending docid order with no extra sort step.
const (
	prefixPosting   = byte(0x01)
	prefixFieldStat = byte(0x02)
	prefixTermStat  = byte(0x03)
	prefixFieldLen  = byte(0x04)
	prefixExtToInt  = byte(0x05)
	prefixIntToExt  = byte(0x06)
	prefixAttr      = byte(0x07)
	prefixTermVec   = byte(0x08)
)

func uint32Bytes(d uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, d)
	return b
}

func parseUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

func postingPrefix(field, term string) []byte {
	k := []byte{prefixPosting}
	k = append(k, []byte(field)...)
	k = append(k, 0x00)
	k = append(k, []byte(term)...)
	k = append(k, 0x00)
	return k
}

func postingKey(field, term string, docid uint32) []byte {
	return append(postingPrefix(field, term), uint32Bytes(docid)...)
}

func fieldStatKey(field string) []byte {
	return append([]byte{prefixFieldStat}, []byte(field)...)
}

func termStatKey(field, term string) []byte {
	k := []byte{prefixTermStat}
	k = append(k, []byte(field)...)
	k = append(k, 0x00)
	return append(k, []byte(term)...)
}

func fieldLenKey(field string, docid uint32) []byte {
	k := []byte{prefixFieldLen}
	k = append(k, []byte(field)...)
	k = append(k, 0x00)
	return append(k, uint32Bytes(docid)...)
}

func ext2intKey(ext string) []byte {
	return append([]byte{prefixExtToInt}, []byte(ext)...)
}

func int2extKey(docid uint32) []byte {
	return append([]byte{prefixIntToExt}, uint32Bytes(docid)...)
}

func attrKey(name string, docid uint32) []byte {
	k := []byte{prefixAttr}
	k = append(k, []byte(name)...)
	k = append(k, 0x00)
	return append(k, uint32Bytes(docid)...)
}

func termVecKey(field string, docid uint32) []byte {
	k := []byte{prefixTermVec}
	k = append(k, []byte(field)...)
	k = append(k, 0x00)
	return append(k, uint32Bytes(docid)...)
}

type fieldStatRecord struct {
	DocCount int
	SumLen   int64
}

type termStatRecord struct {
	Df  int
	Ctf int64
}

// BadgerFacade is a disk-backed Facade over github.com/dgraph-io/badger/v4.
// Indexing is bulk-load-only (Load), grounded in straga-Mimir_lite's pattern
// of a single-pass db.Update closure per logical write; queries run inside
// db.View closures and prefix iterators, never holding the handle open past
// the call that needs it.
type BadgerFacade struct {
	db *badger.DB
}

// OpenBadgerFacade opens (or creates) a badger database at dir. dir=="" opens
// an in-memory instance, mirroring the InMemory option straga-Mimir_lite
// exposes for tests and ephemeral runs.
func OpenBadgerFacade(dir string) (*BadgerFacade, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else {
		opts = opts.WithSyncWrites(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, &IndexUnavailableError{Cause: err}
	}
	return &BadgerFacade{db: db}, nil
}

// Close releases the underlying badger handle.
func (bf *BadgerFacade) Close() error {
	return bf.db.Close()
}

// Load computes corpus statistics and postings for docs the same way
// MemFacade does (buildIndex), then persists every piece of that structure
// into badger in a single transaction. Document attributes are not written:
// Load leaves the attr partition empty, so Attribute reports no value for a
// database populated by Load. A BadgerFacade is write-once: Load is
// meant to be called exactly once against a freshly opened database.
func (bf *BadgerFacade) Load(docs []Document) error {
	b := buildIndex(docs)

	return bf.db.Update(func(txn *badger.Txn) error {
		for field, terms := range b.postings {
			for term, list := range terms {
				for _, p := range list {
					data, err := json.Marshal(p.Positions)
					if err != nil {
						return err
					}
					if err := txn.Set(postingKey(field, term, p.Docid), data); err != nil {
						return err
					}
				}
			}
		}
		for field, n := range b.fieldDocCount {
			rec := fieldStatRecord{DocCount: n, SumLen: b.fieldSumLen[field]}
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := txn.Set(fieldStatKey(field), data); err != nil {
				return err
			}
		}
		for field, terms := range b.termDf {
			for term, df := range terms {
				rec := termStatRecord{Df: df, Ctf: b.termCtf[field][term]}
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				if err := txn.Set(termStatKey(field, term), data); err != nil {
					return err
				}
			}
		}
		for field, lens := range b.fieldLen {
			for docid, l := range lens {
				if err := txn.Set(fieldLenKey(field, docid), uint32Bytes(uint32(l))); err != nil {
					return err
				}
			}
		}
		for docid, d := range b.forward {
			ext := d.ExternalID()
			if err := txn.Set(ext2intKey(ext), uint32Bytes(uint32(docid))); err != nil {
				return err
			}
			if err := txn.Set(int2extKey(uint32(docid)), []byte(ext)); err != nil {
				return err
			}
		}
		for docid, perField := range b.termVectors {
			for field, tv := range perField {
				data, err := json.Marshal(tv)
				if err != nil {
					return err
				}
				if err := txn.Set(termVecKey(field, docid), data); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (bf *BadgerFacade) NumDocs() int {
	n := 0
	_ = bf.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte{prefixIntToExt}
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

func (bf *BadgerFacade) DocCount(field string) int {
	var rec fieldStatRecord
	_ = bf.readJSON(fieldStatKey(field), &rec)
	return rec.DocCount
}

func (bf *BadgerFacade) SumOfFieldLengths(field string) int64 {
	var rec fieldStatRecord
	_ = bf.readJSON(fieldStatKey(field), &rec)
	return rec.SumLen
}

func (bf *BadgerFacade) FieldLength(field string, docid uint32) int {
	var l int
	_ = bf.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(fieldLenKey(field, docid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			l = int(parseUint32(val))
			return nil
		})
	})
	return l
}

func (bf *BadgerFacade) DocFreq(field, term string) int {
	var rec termStatRecord
	_ = bf.readJSON(termStatKey(field, term), &rec)
	return rec.Df
}

func (bf *BadgerFacade) TotalTermFreq(field, term string) int64 {
	var rec termStatRecord
	_ = bf.readJSON(termStatKey(field, term), &rec)
	return rec.Ctf
}

func (bf *BadgerFacade) InternalDocid(externalDocid string) (uint32, bool) {
	var docid uint32
	found := false
	_ = bf.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ext2intKey(externalDocid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			docid = parseUint32(val)
			found = true
			return nil
		})
	})
	return docid, found
}

func (bf *BadgerFacade) ExternalDocid(docid uint32) string {
	var ext string
	_ = bf.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(int2extKey(docid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			ext = string(val)
			return nil
		})
	})
	return ext
}

func (bf *BadgerFacade) Attribute(name string, docid uint32) (string, bool) {
	var val string
	found := false
	_ = bf.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attrKey(name, docid))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = string(v)
			found = true
			return nil
		})
	})
	return val, found
}

func (bf *BadgerFacade) Postings(field, term string) query.InvertedList {
	var list query.InvertedList
	_ = bf.db.View(func(txn *badger.Txn) error {
		prefix := postingPrefix(field, term)
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.Key()
			docid := parseUint32(key[len(key)-4:])
			var positions []uint32
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &positions)
			}); err != nil {
				return err
			}
			list = append(list, query.Posting{Docid: docid, Positions: positions})
		}
		return nil
	})
	return list
}

func (bf *BadgerFacade) TermVector(docid uint32, field string) (TermVector, error) {
	var tv TermVector
	err := bf.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(termVecKey(field, docid))
		if err == badger.ErrKeyNotFound {
			return &UnknownFieldError{Op: "TermVector", Field: field, Cause: errFieldNotIndexed}
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &tv)
		})
	})
	if err != nil {
		if _, ok := err.(*UnknownFieldError); ok {
			return TermVector{}, err
		}
		return TermVector{}, &IndexUnavailableError{Cause: err}
	}
	return tv, nil
}

func (bf *BadgerFacade) readJSON(key []byte, out interface{}) error {
	return bf.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

var _ Facade = (*BadgerFacade)(nil)
