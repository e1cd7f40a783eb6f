package index

// Document is the one collaborator this package still requires from the
// surrounding pipeline: a document whose fields have already been split
// into ordered token sequences. Tokenization and normalization are outside
// this module's scope, so Document hands over tokens, not raw text — the
// teacher's MemOnlyIndex took untokenized strings and ran them through a
// per-field analyzer; this Facade assumes that step already happened.
type Document interface {
	// ExternalID is the identifier the caller's world uses for this
	// document (a TREC docid, a URL, a primary key).
	ExternalID() string
	// Fields returns, for every indexed field, the ordered token
	// sequence that field's text tokenized into.
	Fields() map[string][]string
	// Attribute returns an out-of-band value attached to the document
	// that isn't itself a tokenized, searchable field.
	Attribute(name string) (string, bool)
}
