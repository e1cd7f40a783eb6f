// Command qeval runs a parameter file and a query file through the
// retrieval evaluator and writes a TREC-format run (or, for the ltr
// retrieval algorithm, an SVM-rank feature file).
//
// Usage:
//
//	qeval --param run.params
//	qeval --param run.params --query other-queries.txt --out other-run.txt
//	qeval --param run.params.yaml --paramYaml --backend mem
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/rekki/qeval/config"
	"github.com/rekki/qeval/diversify"
	"github.com/rekki/qeval/eval"
	"github.com/rekki/qeval/index"
	"github.com/rekki/qeval/ltr"
	"github.com/rekki/qeval/prf"
	"github.com/rekki/qeval/query"
	"github.com/rekki/qeval/trec"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qeval",
	Short: "Evaluate a TREC-style query file against an index under a retrieval model",
	Long: `qeval reads a parameter file describing an index, a retrieval model, and
optional PRF/diversity/LTR settings, evaluates every query in the query
file, and writes a TREC-format run file (or an LTR feature file).`,
	Run: run,
}

func init() {
	rootCmd.Flags().String("param", "", "path to the parameter file (required)")
	rootCmd.Flags().Bool("paramYaml", false, "parse --param as a YAML sidecar instead of key=value")
	rootCmd.Flags().String("query", "", "override queryFilePath from the parameter file")
	rootCmd.Flags().String("out", "", "override trecEvalOutputPath from the parameter file")
	rootCmd.Flags().String("backend", "badger", "index backend to open: badger|mem")
	rootCmd.Flags().String("field", "body", "default field for field-unqualified query terms")
	rootCmd.MarkFlagRequired("param")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	paramPath, _ := cmd.Flags().GetString("param")
	paramYaml, _ := cmd.Flags().GetBool("paramYaml")
	queryOverride, _ := cmd.Flags().GetString("query")
	outOverride, _ := cmd.Flags().GetString("out")
	backend, _ := cmd.Flags().GetString("backend")
	defaultField, _ := cmd.Flags().GetString("field")

	var params config.Params
	var err error
	if paramYaml {
		params, err = config.ParseYAMLFile(paramPath)
	} else {
		params, err = config.ParseFile(paramPath)
	}
	if err != nil {
		log.Fatalf("qeval: %v", err)
	}
	if queryOverride != "" {
		params.QueryFilePath = queryOverride
	}
	if outOverride != "" {
		params.TrecEvalOutputPath = outOverride
	}

	facade, closeFacade, err := openFacade(backend, params.IndexPath)
	if err != nil {
		log.Fatalf("qeval: %v", err)
	}
	defer closeFacade()

	model, err := buildModel(params)
	if err != nil {
		log.Fatalf("qeval: %v", err)
	}

	queries, err := loadQueryFile(params.QueryFilePath)
	if err != nil {
		log.Fatalf("qeval: %v", err)
	}

	outFile, err := os.Create(params.TrecEvalOutputPath)
	if err != nil {
		log.Fatalf("qeval: %v", &config.IOError{Op: "create", Path: params.TrecEvalOutputPath, Cause: err})
	}
	defer outFile.Close()
	out := bufio.NewWriter(outFile)
	defer out.Flush()

	var expansionOut *bufio.Writer
	if params.PRF.Enabled && params.PRF.ExpansionQueryFile != "" {
		f, err := os.Create(params.PRF.ExpansionQueryFile)
		if err != nil {
			log.Printf("qeval: %v", &config.IOError{Op: "create", Path: params.PRF.ExpansionQueryFile, Cause: err})
		} else {
			defer f.Close()
			expansionOut = bufio.NewWriter(f)
			defer expansionOut.Flush()
		}
	}

	prfBaselines, err := loadInitialRanking(params.PRF.InitialRankingFile, facade)
	if err != nil {
		log.Fatalf("qeval: %v", err)
	}
	diversityBaselines, diversityIntents, err := loadInitialRankingWithIntents(params.Diversity.InitialRankingFile, facade)
	if err != nil {
		log.Fatalf("qeval: %v", err)
	}
	intentsText, err := loadIntentsFile(params.Diversity.IntentsFile)
	if err != nil {
		log.Fatalf("qeval: %v", err)
	}

	ctx := context.Background()

	for _, q := range queries {
		if params.RetrievalAlgorithm == "ltr" {
			if err := runLTR(ctx, q, facade, model, params, defaultField, out); err != nil {
				log.Printf("qeval: query %s: %v", q.ID, err)
			}
			continue
		}

		baseline, ok := prfBaselines[q.ID]
		if !ok {
			baseline, err = eval.ProcessQuery(ctx, q.Expr, params.TrecEvalOutputLength, model, facade, facade, facade, defaultField)
			if err != nil {
				log.Printf("qeval: query %s: %v", q.ID, err)
				trec.WriteDummy(out, q.ID, 0, "")
				continue
			}
		}

		if params.PRF.Enabled {
			prfCfg := prf.Config{
				NumDocs:        params.PRF.NumDocs,
				NumTerms:       params.PRF.NumTerms,
				Mu:             params.PRF.IndriMu,
				OrigWeight:     params.PRF.OrigWeight,
				ExpansionField: params.PRF.ExpansionField,
			}
			terms := prf.Expand(baseline, facade, prfCfg)
			expanded := prf.BuildExpandedQuery(q.Expr, model.DefaultQrySopName(), params.PRF.OrigWeight, terms)
			if expansionOut != nil {
				fmt.Fprintf(expansionOut, "%s:%s\n", q.ID, expanded)
			}
			baseline, err = eval.ProcessQuery(ctx, expanded, params.TrecEvalOutputLength, model, facade, facade, facade, defaultField)
			if err != nil {
				log.Printf("qeval: query %s (expanded): %v", q.ID, err)
				trec.WriteDummy(out, q.ID, 0, "")
				continue
			}
		}

		if params.Diversity.Enabled {
			divCfg := diversify.Config{
				Algorithm:              params.Diversity.Algorithm,
				Lambda:                 params.Diversity.Lambda,
				MaxInputRankingsLength: params.Diversity.MaxInputRankingsLength,
				MaxResultRankingLength: params.Diversity.MaxResultRankingLength,
			}
			diversityBaseline := baseline
			if b, ok := diversityBaselines[q.ID]; ok {
				diversityBaseline = b
			}
			var intents []eval.ScoreList
			if im, ok := diversityIntents[q.ID]; ok {
				intents = orderedIntents(im)
			} else if texts, ok := intentsText[q.ID]; ok {
				intents = make([]eval.ScoreList, 0, len(texts))
				for _, n := range sortedIntentNumbers(texts) {
					sl, err := eval.ProcessQuery(ctx, texts[n], params.Diversity.MaxInputRankingsLength, model, facade, facade, facade, defaultField)
					if err != nil {
						log.Printf("qeval: query %s intent %d: %v", q.ID, n, err)
						continue
					}
					intents = append(intents, sl)
				}
			}
			baseline = diversify.Diversify(diversityBaseline, intents, divCfg)
		}

		writeRun(out, q.ID, baseline)
	}
}

func writeRun(w *bufio.Writer, queryID string, sl eval.ScoreList) {
	if len(sl) == 0 {
		trec.WriteDummy(w, queryID, 0, "")
		return
	}
	records := make([]trec.Record, len(sl))
	for i, d := range sl {
		records[i] = trec.Record{QueryID: queryID, ExternalDocid: d.ExternalDocid, Rank: i + 1, Score: d.Score, RunID: trec.DefaultRunID}
	}
	trec.Write(w, records)
}

func runLTR(ctx context.Context, q queryLine, facade index.Facade, model query.Model, params config.Params, defaultField string, w *bufio.Writer) error {
	candidates, err := eval.ProcessQuery(ctx, q.Expr, params.TrecEvalOutputLength, model, facade, facade, facade, defaultField)
	if err != nil {
		return err
	}
	bm25 := query.BM25{K1: params.BM25K1, B: params.BM25B, K3: params.BM25K3}
	terms, err := extractTerms(q.Expr)
	if err != nil {
		return err
	}
	for _, d := range candidates {
		f, err := ltr.Extract(terms, d.Docid, facade, bm25)
		if err != nil {
			return err
		}
		if err := ltr.WriteLine(w, q.ID, f, d.ExternalDocid); err != nil {
			return err
		}
	}
	return nil
}

// extractTerms collects the flat bag of terms a query string names, for
// C10's per-field rescoring. It parses with the real query grammar (the
// same one eval.ProcessQuery drives queries through, here always wrapped in
// #AND rather than the model's default operator)
// rather than splitting on whitespace, so operator syntax with no space
// before a paren (`#AND(dog.body cat.body)`) is handled correctly instead
// of fusing the operator token with the term that follows it.
func extractTerms(qstring string) ([]string, error) {
	expr, err := query.ParseText("#AND(" + qstring + ")")
	if err != nil {
		return nil, err
	}
	var terms []string
	var walk func(e *query.Expr)
	walk = func(e *query.Expr) {
		if e == nil {
			return
		}
		if e.Op == "term" {
			terms = append(terms, e.Term)
			return
		}
		for _, c := range e.Children {
			walk(c)
		}
	}
	walk(expr)
	return terms, nil
}

func buildModel(p config.Params) (query.Model, error) {
	switch p.RetrievalAlgorithm {
	case "unrankedboolean":
		return query.UnrankedBoolean{}, nil
	case "rankedboolean":
		return query.RankedBoolean{}, nil
	case "bm25", "ltr":
		return query.BM25{K1: p.BM25K1, B: p.BM25B, K3: p.BM25K3}, nil
	case "indri":
		return query.Indri{Mu: p.IndriMu, Lambda: p.IndriLambda}, nil
	default:
		return nil, &config.ParameterMalformedError{Key: "retrievalAlgorithm", Value: p.RetrievalAlgorithm, Cause: fmt.Errorf("unrecognized algorithm")}
	}
}

func openFacade(backend, indexPath string) (index.Facade, func() error, error) {
	switch backend {
	case "mem":
		docs, err := loadDocumentsJSON(indexPath)
		if err != nil {
			return nil, nil, err
		}
		return index.NewMemFacade(docs), func() error { return nil }, nil
	default:
		f, err := index.OpenBadgerFacade(indexPath)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}

type jsonDocument struct {
	DocID string              `json:"id"`
	Flds  map[string][]string `json:"fields"`
	Attrs map[string]string   `json:"attrs"`
}

func (d *jsonDocument) ExternalID() string          { return d.DocID }
func (d *jsonDocument) Fields() map[string][]string { return d.Flds }
func (d *jsonDocument) Attribute(name string) (string, bool) {
	v, ok := d.Attrs[name]
	return v, ok
}

// loadDocumentsJSON reads the minimal in-memory population format: a JSON
// array of {id, fields, attrs}. Building this file from raw documents is
// outside this module's scope.
func loadDocumentsJSON(path string) ([]index.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.IOError{Op: "open", Path: path, Cause: err}
	}
	var raw []jsonDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &config.IOError{Op: "decode", Path: path, Cause: err}
	}
	docs := make([]index.Document, len(raw))
	for i := range raw {
		docs[i] = &raw[i]
	}
	return docs, nil
}

type queryLine struct {
	ID   string
	Expr string
}

func loadQueryFile(path string) ([]queryLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.IOError{Op: "open", Path: path, Cause: err}
	}
	defer f.Close()

	var out []queryLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		i := strings.Index(line, ":")
		if i < 0 {
			return nil, &config.IOError{Op: "parse", Path: path, Cause: fmt.Errorf("malformed query line %q: missing ':'", line)}
		}
		out = append(out, queryLine{ID: strings.TrimSpace(line[:i]), Expr: strings.TrimSpace(line[i+1:])})
	}
	if err := scanner.Err(); err != nil {
		return nil, &config.IOError{Op: "read", Path: path, Cause: err}
	}
	return out, nil
}

func loadIntentsFile(path string) (map[string]map[int]string, error) {
	out := map[string]map[int]string{}
	if path == "" {
		return out, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.IOError{Op: "open", Path: path, Cause: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		i := strings.Index(line, ":")
		if i < 0 {
			return nil, &config.IOError{Op: "parse", Path: path, Cause: fmt.Errorf("malformed intents line %q: missing ':'", line)}
		}
		base, n := trec.ParseQueryID(strings.TrimSpace(line[:i]))
		if out[base] == nil {
			out[base] = map[int]string{}
		}
		out[base][n] = strings.TrimSpace(line[i+1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, &config.IOError{Op: "read", Path: path, Cause: err}
	}
	return out, nil
}

func sortedIntentNumbers(m map[int]string) []int {
	ns := make([]int, 0, len(m))
	for n := range m {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	return ns
}

func orderedIntents(m map[int]eval.ScoreList) []eval.ScoreList {
	ns := make([]int, 0, len(m))
	for n := range m {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	out := make([]eval.ScoreList, 0, len(m))
	for _, n := range ns {
		out = append(out, m[n])
	}
	return out
}

// loadInitialRanking reads a TREC-format baseline-only file (the
// prf:initialRankingFile shape) into one Score-List per query id.
func loadInitialRanking(path string, facade index.Facade) (map[string]eval.ScoreList, error) {
	out := map[string]eval.ScoreList{}
	if path == "" {
		return out, nil
	}
	records, err := readTrecFile(path)
	if err != nil {
		return nil, err
	}
	baseline, _ := trec.GroupByQuery(records)
	for qid, recs := range baseline {
		out[qid] = recordsToScoreList(recs, facade)
	}
	return out, nil
}

// loadInitialRankingWithIntents reads the diversity:initialRankingFile
// shape, which carries both undotted baselines and dotted intent baselines.
func loadInitialRankingWithIntents(path string, facade index.Facade) (map[string]eval.ScoreList, map[string]map[int]eval.ScoreList, error) {
	baselineOut := map[string]eval.ScoreList{}
	intentsOut := map[string]map[int]eval.ScoreList{}
	if path == "" {
		return baselineOut, intentsOut, nil
	}
	records, err := readTrecFile(path)
	if err != nil {
		return nil, nil, err
	}
	baseline, intents := trec.GroupByQuery(records)
	for qid, recs := range baseline {
		baselineOut[qid] = recordsToScoreList(recs, facade)
	}
	for qid, byIntent := range intents {
		intentsOut[qid] = map[int]eval.ScoreList{}
		for n, recs := range byIntent {
			intentsOut[qid][n] = recordsToScoreList(recs, facade)
		}
	}
	return baselineOut, intentsOut, nil
}

func readTrecFile(path string) ([]trec.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.IOError{Op: "open", Path: path, Cause: err}
	}
	defer f.Close()
	records, err := trec.Read(f)
	if err != nil {
		return nil, &config.IOError{Op: "parse", Path: path, Cause: err}
	}
	return records, nil
}

func recordsToScoreList(recs []trec.Record, facade index.Facade) eval.ScoreList {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Rank < recs[j].Rank })
	sl := make(eval.ScoreList, 0, len(recs))
	for _, r := range recs {
		docid, ok := facade.InternalDocid(r.ExternalDocid)
		if !ok {
			log.Printf("qeval: initial ranking references unknown docid %q, skipping", r.ExternalDocid)
			continue
		}
		sl = append(sl, eval.ScoredDoc{Docid: docid, ExternalDocid: r.ExternalDocid, Score: r.Score})
	}
	return sl
}
