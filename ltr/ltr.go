// Package ltr is the learning-to-rank feature extractor (C10): a glue
// component that turns a query's terms and a candidate document into a
// fixed four-field feature vector for an external trainer (svm_rank,
// RankLib) to consume. Neither trainer is invoked from here — this package
// only computes features and writes them in the line format both trainers
// share.
package ltr

import (
	"fmt"
	"io"
	"strings"

	"github.com/rekki/qeval/index"
	"github.com/rekki/qeval/query"
)

// Fields is the fixed, ordered field set every feature vector covers.
var Fields = []string{"body", "title", "url", "inlink"}

// Features is a per-(query,doc) feature vector: one BM25 score per field in
// Fields order.
type Features struct {
	Body   float64
	Title  float64
	URL    float64
	Inlink float64
}

func (f Features) slice() []float64 {
	return []float64{f.Body, f.Title, f.URL, f.Inlink}
}

// fieldScore sums the BM25 score of every query term that matches docid on
// field, using only the existing Score operator — a document with no
// occurrence of a term contributes 0 for that term, so a field with none
// of the query's terms naturally scores 0.
func fieldScore(field string, terms []string, docid uint32, facade index.Facade, model query.BM25) (float64, error) {
	total := 0.0
	for _, term := range terms {
		list := facade.Postings(field, term)
		t := query.NewTerm(field, term, list)
		if err := t.Initialize(); err != nil {
			return 0, err
		}
		score := query.NewScore(t, field, term, facade)
		if err := score.Initialize(model); err != nil {
			return 0, err
		}
		// Seek the cursor to docid — freshly initialized, it sits on the
		// term's first posting, which is only ever the requested document
		// by coincidence.
		for score.HasMatch(model) && score.CurrentDocid() < docid {
			score.AdvancePast(score.CurrentDocid())
		}
		if score.HasMatch(model) && score.CurrentDocid() == docid {
			s, err := score.Score(model)
			if err != nil {
				return 0, err
			}
			total += s
		}
	}
	return total, nil
}

// Extract computes the four-field feature vector for one (query terms, doc)
// pair.
func Extract(terms []string, docid uint32, facade index.Facade, model query.BM25) (Features, error) {
	var f Features
	var err error
	if f.Body, err = fieldScore("body", terms, docid, facade, model); err != nil {
		return Features{}, err
	}
	if f.Title, err = fieldScore("title", terms, docid, facade, model); err != nil {
		return Features{}, err
	}
	if f.URL, err = fieldScore("url", terms, docid, facade, model); err != nil {
		return Features{}, err
	}
	if f.Inlink, err = fieldScore("inlink", terms, docid, facade, model); err != nil {
		return Features{}, err
	}
	return f, nil
}

// WriteLine emits one feature vector in the SVM-rank/RankLib line format:
// `qid:<queryId> 1:<body> 2:<title> 3:<url> 4:<inlink> #docid=<externalDocid>`.
func WriteLine(w io.Writer, queryID string, f Features, externalDocid string) error {
	values := f.slice()
	var parts []string
	for i, v := range values {
		parts = append(parts, fmt.Sprintf("%d:%v", i+1, v))
	}
	_, err := fmt.Fprintf(w, "qid:%s %s #docid=%s\n", queryID, strings.Join(parts, " "), externalDocid)
	return err
}
