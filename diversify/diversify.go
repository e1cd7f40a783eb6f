// Package diversify re-ranks a query's baseline result list against a set
// of intent-specific baselines, using either the xQuAD or PM2 algorithm, so
// the top of the final list covers the query's likely intents rather than
// just the single highest-scoring interpretation.
package diversify

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/rekki/qeval/eval"
)

// Algorithm names accepted by Config.Algorithm.
const (
	XQuAD = "xQuAD"
	PM2   = "PM2"
)

// Config holds the diversity:* parameters.
type Config struct {
	Algorithm              string
	Lambda                 float64
	MaxInputRankingsLength int
	MaxResultRankingLength int
}

func truncate(sl eval.ScoreList, n int) eval.ScoreList {
	if n <= 0 || len(sl) <= n {
		return sl
	}
	return sl[:n]
}

// ranking is the normalized probability view of a Score-List: docid ->
// P(d|source), plus the docids in ranking order (the baseline's supplies
// the candidate set; ties are broken by docid, not by this order).
type ranking struct {
	order []uint32
	prob  map[uint32]float64
}

func newRanking(sl eval.ScoreList, largest float64) ranking {
	r := ranking{prob: map[uint32]float64{}}
	for _, d := range sl {
		r.order = append(r.order, d.Docid)
		r.prob[d.Docid] = d.Score / largest
	}
	return r
}

func (r ranking) P(d uint32) float64 {
	return r.prob[d]
}

// normalizationFactor computes the largest column-sum across the baseline
// and every intent ranking, unless every individual score is already ≤1.0,
// in which case normalization is skipped entirely.
func normalizationFactor(baseline eval.ScoreList, intents []eval.ScoreList) float64 {
	allAtMostOne := true
	check := func(sl eval.ScoreList) float64 {
		sum := 0.0
		for _, d := range sl {
			sum += d.Score
			if d.Score > 1.0 {
				allAtMostOne = false
			}
		}
		return sum
	}

	largest := check(baseline)
	for _, in := range intents {
		if s := check(in); s > largest {
			largest = s
		}
	}
	if allAtMostOne || largest == 0 {
		return 1.0
	}
	return largest
}

// Diversify reorders baseline to a length-capped result using cfg's
// algorithm, given one Score-List per intent. Every picked docid is a
// member of baseline.
func Diversify(baseline eval.ScoreList, intents []eval.ScoreList, cfg Config) eval.ScoreList {
	baseline = truncate(baseline, cfg.MaxInputRankingsLength)
	truncatedIntents := make([]eval.ScoreList, len(intents))
	for i, in := range intents {
		truncatedIntents[i] = truncate(in, cfg.MaxInputRankingsLength)
	}

	largest := normalizationFactor(baseline, truncatedIntents)
	q := newRanking(baseline, largest)
	iq := make([]ranking, len(truncatedIntents))
	for i, in := range truncatedIntents {
		iq[i] = newRanking(in, largest)
	}

	ext := map[uint32]string{}
	for _, d := range baseline {
		ext[d.Docid] = d.ExternalDocid
	}

	switch cfg.Algorithm {
	case PM2:
		return pm2(q, iq, ext, cfg)
	default:
		return xquad(q, iq, ext, cfg)
	}
}

func pickOrder(candidates []uint32) {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
}

func xquad(q ranking, intents []ranking, ext map[uint32]string, cfg Config) eval.ScoreList {
	k := len(intents)
	candidates := append([]uint32{}, q.order...)
	pickOrder(candidates)
	picked := bitset.New(uint(len(candidates)))
	indexOf := map[uint32]int{}
	for i, d := range candidates {
		indexOf[d] = i
	}

	intentPenalty := make([]float64, k)
	for i := range intentPenalty {
		intentPenalty[i] = 1.0
	}

	out := eval.ScoreList{}
	for len(out) < cfg.MaxResultRankingLength {
		var bestDocid uint32
		bestScore := -1.0
		found := false
		for _, d := range candidates {
			if picked.Test(uint(indexOf[d])) {
				continue
			}
			coverage := 0.0
			for i, in := range intents {
				coverage += (1.0 / float64(k)) * in.P(d) * intentPenalty[i]
			}
			score := (1-cfg.Lambda)*q.P(d) + cfg.Lambda*coverage
			if !found || score > bestScore || (score == bestScore && d < bestDocid) {
				bestDocid, bestScore, found = d, score, true
			}
		}
		if !found {
			break
		}
		picked.Set(uint(indexOf[bestDocid]))
		out = append(out, eval.ScoredDoc{Docid: bestDocid, ExternalDocid: ext[bestDocid], Score: bestScore})
		for i, in := range intents {
			intentPenalty[i] *= 1 - in.P(bestDocid)
		}
	}
	return out
}

func pm2(q ranking, intents []ranking, ext map[uint32]string, cfg Config) eval.ScoreList {
	k := len(intents)
	if k == 0 {
		return xquad(q, intents, ext, cfg)
	}
	candidates := append([]uint32{}, q.order...)
	pickOrder(candidates)
	picked := bitset.New(uint(len(candidates)))
	indexOf := map[uint32]int{}
	for i, d := range candidates {
		indexOf[d] = i
	}

	v := make([]float64, k)
	s := make([]float64, k)
	for i := range v {
		v[i] = float64(cfg.MaxResultRankingLength) / float64(k)
	}

	out := eval.ScoreList{}
	for len(out) < cfg.MaxResultRankingLength && len(out) < len(candidates) {
		qi := make([]float64, k)
		best := 0
		for i := range qi {
			qi[i] = v[i] / (2*s[i] + 1)
			if qi[i] > qi[best] {
				best = i
			}
		}

		var bestDocid uint32
		bestScore := -1.0
		found := false
		for _, d := range candidates {
			if picked.Test(uint(indexOf[d])) {
				continue
			}
			score := cfg.Lambda * qi[best] * intents[best].P(d)
			for j := range intents {
				if j == best {
					continue
				}
				score += (1 - cfg.Lambda) * qi[j] * intents[j].P(d)
			}
			if !found || score > bestScore || (score == bestScore && d < bestDocid) {
				bestDocid, bestScore, found = d, score, true
			}
		}
		if !found {
			break
		}
		picked.Set(uint(indexOf[bestDocid]))
		out = append(out, eval.ScoredDoc{Docid: bestDocid, ExternalDocid: ext[bestDocid], Score: bestScore})

		total := 0.0
		for _, in := range intents {
			total += in.P(bestDocid)
		}
		if total > 0 {
			for j, in := range intents {
				s[j] += in.P(bestDocid) / total
			}
		}
	}

	enforceStrictlyDecreasing(out)
	return out
}

// enforceStrictlyDecreasing applies the 0.999 rank-preserving tweak: PM2's
// raw scores aren't guaranteed monotonic, so any score that doesn't
// strictly decrease from the previous pick is nudged down.
func enforceStrictlyDecreasing(out eval.ScoreList) {
	for i := 1; i < len(out); i++ {
		if out[i].Score >= out[i-1].Score {
			out[i].Score = out[i-1].Score * 0.999
		}
	}
}
