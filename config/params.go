// Package config parses the evaluator's parameter file — a line-oriented
// `key = value` format — into a typed Params struct, and offers an
// equivalent YAML sidecar loader for the richer prf/diversity sub-blocks.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PRFParams holds the prf:* parameter-file keys.
type PRFParams struct {
	Enabled            bool
	NumDocs            int     `yaml:"numDocs"`
	NumTerms           int     `yaml:"numTerms"`
	IndriMu            float64 `yaml:"indriMu"`
	OrigWeight         float64 `yaml:"origWeight"`
	ExpansionField     string  `yaml:"expansionField"`
	InitialRankingFile string  `yaml:"initialRankingFile"`
	ExpansionQueryFile string  `yaml:"expansionQueryFile"`
}

// DiversityParams holds the diversity:* parameter-file keys.
type DiversityParams struct {
	Enabled                 bool
	Algorithm               string  `yaml:"algorithm"`
	Lambda                  float64 `yaml:"lambda"`
	MaxInputRankingsLength  int     `yaml:"maxInputRankingsLength"`
	MaxResultRankingLength  int     `yaml:"maxResultRankingLength"`
	IntentsFile             string  `yaml:"intentsFile"`
	InitialRankingFile      string  `yaml:"initialRankingFile"`
}

// Params is the fully parsed run configuration.
type Params struct {
	IndexPath           string
	QueryFilePath       string
	TrecEvalOutputPath  string
	TrecEvalOutputLength int
	RetrievalAlgorithm  string

	BM25K1 float64
	BM25B  float64
	BM25K3 float64

	IndriMu     float64
	IndriLambda float64

	PRF       PRFParams
	Diversity DiversityParams

	// LTR carries every ltr:* key verbatim: the source treats svm_rank and
	// RankLib as opaque subprocesses, so there's no fixed schema to parse
	// beyond "some paths and flags", and passing them through lets cmd/qeval
	// hand them to the feature writer without this package needing to know
	// every trainer's option names.
	LTR map[string]string
}

// defaults mirrors the retrieval models' own defaults so a parameter file
// that omits BM25/Indri blocks still gets sane values.
func defaults() Params {
	return Params{
		TrecEvalOutputLength: 1000,
		BM25K1:               1.2,
		BM25B:                0.75,
		BM25K3:               0,
		IndriMu:              2500,
		IndriLambda:          0.4,
		PRF: PRFParams{
			NumDocs:        10,
			NumTerms:       20,
			IndriMu:        2500,
			OrigWeight:     0.5,
			ExpansionField: "body",
		},
		Diversity: DiversityParams{
			Algorithm:              "xQuAD",
			Lambda:                 0.5,
			MaxInputRankingsLength: 100,
			MaxResultRankingLength: 20,
		},
		LTR: map[string]string{},
	}
}

// ParseFile reads a line-oriented `key = value` parameter file.
func ParseFile(path string) (Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return Params{}, &IOError{Op: "open", Path: path, Cause: err}
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the `key = value` format from an already-open reader.
func Parse(r io.Reader) (Params, error) {
	p := defaults()
	raw := map[string]string{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i < 0 {
			return Params{}, &ParameterMalformedError{Key: line, Cause: fmt.Errorf("missing '='")}
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		raw[key] = val
	}
	if err := scanner.Err(); err != nil {
		return Params{}, &IOError{Op: "read", Cause: err}
	}

	if err := apply(&p, raw); err != nil {
		return Params{}, err
	}
	return p, validate(p)
}

// ParseYAMLFile loads the same Params struct from a YAML sidecar file, for
// operators who prefer structured config over the flat key=value form.
func ParseYAMLFile(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, &IOError{Op: "open", Path: path, Cause: err}
	}
	p := defaults()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, &ParameterMalformedError{Key: path, Cause: err}
	}
	return p, validate(p)
}

func apply(p *Params, raw map[string]string) error {
	for key, val := range raw {
		var err error
		switch {
		case key == "indexPath":
			p.IndexPath = val
		case key == "queryFilePath":
			p.QueryFilePath = val
		case key == "trecEvalOutputPath":
			p.TrecEvalOutputPath = val
		case key == "retrievalAlgorithm":
			p.RetrievalAlgorithm = val
		case key == "trecEvalOutputLength":
			p.TrecEvalOutputLength, err = atoi(key, val)
		case key == "BM25:k_1":
			p.BM25K1, err = atof(key, val)
		case key == "BM25:b":
			p.BM25B, err = atof(key, val)
		case key == "BM25:k_3":
			p.BM25K3, err = atof(key, val)
		case key == "Indri:mu":
			p.IndriMu, err = atof(key, val)
		case key == "Indri:lambda":
			p.IndriLambda, err = atof(key, val)
		case key == "prf":
			p.PRF.Enabled, err = atob(key, val)
		case key == "prf:numDocs":
			p.PRF.NumDocs, err = atoi(key, val)
		case key == "prf:numTerms":
			p.PRF.NumTerms, err = atoi(key, val)
		case key == "prf:Indri:mu":
			p.PRF.IndriMu, err = atof(key, val)
		case key == "prf:Indri:origWeight":
			p.PRF.OrigWeight, err = atof(key, val)
		case key == "prf:expansionField":
			p.PRF.ExpansionField = val
		case key == "prf:initialRankingFile":
			p.PRF.InitialRankingFile = val
		case key == "prf:expansionQueryFile":
			p.PRF.ExpansionQueryFile = val
		case key == "diversity":
			p.Diversity.Enabled, err = atob(key, val)
		case key == "diversity:algorithm":
			p.Diversity.Algorithm = val
		case key == "diversity:lambda":
			p.Diversity.Lambda, err = atof(key, val)
		case key == "diversity:maxInputRankingsLength":
			p.Diversity.MaxInputRankingsLength, err = atoi(key, val)
		case key == "diversity:maxResultRankingLength":
			p.Diversity.MaxResultRankingLength, err = atoi(key, val)
		case key == "diversity:intentsFile":
			p.Diversity.IntentsFile = val
		case key == "diversity:initialRankingFile":
			p.Diversity.InitialRankingFile = val
		case strings.HasPrefix(key, "ltr:"):
			p.LTR[key] = val
		default:
			// Unrecognized keys are ignored instead of rejected: the
			// parameter file format is shared with external tooling that may
			// carry keys this evaluator doesn't act on.
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func atoi(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, &ParameterMalformedError{Key: key, Value: val, Cause: err}
	}
	return n, nil
}

func atof(key, val string) (float64, error) {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, &ParameterMalformedError{Key: key, Value: val, Cause: err}
	}
	return f, nil
}

func atob(key, val string) (bool, error) {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, &ParameterMalformedError{Key: key, Value: val, Cause: err}
	}
	return b, nil
}

func validate(p Params) error {
	if p.IndexPath == "" {
		return &ParameterMissingError{Op: "validate", Key: "indexPath", Cause: errKeyMissing}
	}
	if p.QueryFilePath == "" {
		return &ParameterMissingError{Op: "validate", Key: "queryFilePath", Cause: errKeyMissing}
	}
	if p.TrecEvalOutputPath == "" {
		return &ParameterMissingError{Op: "validate", Key: "trecEvalOutputPath", Cause: errKeyMissing}
	}
	switch p.RetrievalAlgorithm {
	case "unrankedboolean", "rankedboolean", "bm25", "indri", "ltr":
	default:
		return &ParameterMalformedError{Key: "retrievalAlgorithm", Value: p.RetrievalAlgorithm, Cause: fmt.Errorf("unrecognized algorithm")}
	}
	return nil
}
